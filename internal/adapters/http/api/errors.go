package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/fitrec/internal/adapters/llm"
	"github.com/okian/fitrec/internal/adapters/mq/queue"
	"github.com/okian/fitrec/internal/adapters/repository"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// KindError tags an error with the handler operation and an API kind.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of the given kind.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind tags err with kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// statusFor maps an error from the service layer to an HTTP status and
// the code placed in the error envelope.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrEmptyResponse):
		return http.StatusBadGateway, "generator_unavailable"
	case errors.Is(err, context.Canceled):
		return statusClientClosed, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
