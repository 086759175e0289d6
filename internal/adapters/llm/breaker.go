package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/fitrec/pkg/logger"
	"github.com/okian/fitrec/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Default breaker settings.
const (
	defaultBreakerName  = "plan-generator"
	defaultHalfOpen     = 1
	defaultOpenTimeout  = 30 * time.Second
	defaultMinRequests  = 5
	defaultFailureRatio = 0.6
	breakerInterval     = time.Minute
)

// Generator outcomes recorded in metrics.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeRejected = "rejected"
	outcomeCanceled = "canceled"
)

// Breaker is a Generator that stops calling a failing downstream generator
// for a while instead of piling up slow errors.
type Breaker struct {
	next         Generator
	cb           *gobreaker.CircuitBreaker[string]
	name         string
	maxRequests  uint32
	openTimeout  time.Duration
	minRequests  uint32
	failureRatio float64
	log          logger.Logger
}

// NewBreaker wraps next.
func NewBreaker(next Generator, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		next:         next,
		name:         defaultBreakerName,
		maxRequests:  defaultHalfOpen,
		openTimeout:  defaultOpenTimeout,
		minRequests:  defaultMinRequests,
		failureRatio: defaultFailureRatio,
		log:          logger.Default().Named("breaker"),
	}
	for _, opt := range opts {
		opt(b)
	}

	metrics.UpdateBreakerState(b.name, stateToFloat(gobreaker.StateClosed))
	b.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    breakerInterval,
		Timeout:     b.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= b.failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn(context.Background(), "breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateBreakerState(name, stateToFloat(to))
		},
		// A caller giving up says nothing about the downstream service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return b
}

// Generate calls the wrapped generator unless the breaker is open. Rejected
// calls return an error wrapping ErrUnavailable.
func (b *Breaker) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	metrics.RecordPromptSize(len(prompt))

	text, err := b.cb.Execute(func() (string, error) {
		return b.next.Generate(ctx, prompt)
	})
	ms := float64(time.Since(start).Milliseconds())

	switch {
	case err == nil:
		metrics.RecordGeneratorRequest(outcomeSuccess, ms)
		return text, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordGeneratorRequest(outcomeRejected, ms)
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, context.Canceled):
		metrics.RecordGeneratorRequest(outcomeCanceled, ms)
		return "", err
	default:
		metrics.RecordGeneratorRequest(outcomeFailure, ms)
		metrics.RecordErrorByComponent("llm", "generate")
		return "", err
	}
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
