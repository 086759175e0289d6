// Package loadtest drives concurrent traffic against a running fitrec
// service and checks its responses for ordering and idempotency violations.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/fitrec/internal/domain/types"
	"github.com/okian/fitrec/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	directoryPermission = 0o750
	idempotencyHeader   = "Idempotency-Key"
)

// ErrViolations is returned when any response breaks a checked guarantee.
var ErrViolations = errors.New("consistency violations detected")

// Run executes the complete load run and returns the collected statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadtest")

	log.Info(ctx, "starting fitrec load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("recommendations", config.Recommendations),
		logger.Int("plans", config.Plans),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := newHTTPClient(config.Timeout)
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	queries, err := generateQueries(ctx, max(config.Recommendations, config.Plans), config.Seed)
	if err != nil {
		return stats, fmt.Errorf("query generation failed: %w", err)
	}
	stats.QueriesGenerated = len(queries)

	if err := runRecommendations(ctx, client, config, queries[:config.Recommendations], stats); err != nil {
		return stats, fmt.Errorf("recommendation phase failed: %w", err)
	}

	if config.Plans > 0 {
		keys := idempotencyKeys(config.Plans, config.DuplicateEvery)
		ids, err := submitPlans(ctx, client, config, queries[:config.Plans], keys, stats)
		if err != nil {
			return stats, fmt.Errorf("plan submission failed: %w", err)
		}
		if err := verifyIdempotency(keys, ids); err != nil {
			stats.ViolationsDetected.Add(1)
			log.Error(ctx, "idempotency violation", logger.Error(err))
		}
		if err := pollPlans(ctx, client, config, ids, stats); err != nil {
			return stats, fmt.Errorf("plan polling failed: %w", err)
		}
	}

	if config.OutputFile != "" {
		if err := saveQueriesToFile(ctx, config.OutputFile, queries); err != nil {
			log.Warn(ctx, "failed to save queries to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if n := stats.ViolationsDetected.Load(); n > 0 {
		return stats, fmt.Errorf("%w: %d", ErrViolations, n)
	}
	log.Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	return decodeResponse(resp, nil, http.StatusOK)
}

// runRecommendations posts every query to /recommendations with a bounded
// number of in-flight requests and verifies each answer.
func runRecommendations(ctx context.Context, client *HTTPClient, config *Config, queries []Query, stats *Stats) error {
	log := logger.Get().Named("loadtest")
	url := config.BaseURL + "/recommendations"

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i, q := range queries {
		g.Go(func() error {
			resp, err := client.Post(gctx, url, q.preferences(), nil)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.RecommendFailed.Add(1)
				return nil
			}
			var rec types.Recommendation
			if err := decodeResponse(resp, &rec, http.StatusOK); err != nil {
				stats.RecommendFailed.Add(1)
				if config.Verbose {
					log.Warn(gctx, "recommendation failed", logger.Int("query", i), logger.Error(err))
				}
				return nil
			}
			stats.Recommended.Add(1)
			stats.RowsReturned.Add(int64(len(rec.Rows)))
			if len(rec.Rows) == 0 {
				stats.EmptyResults.Add(1)
			}
			if err := verifyRecommendation(rec, config.MaxResults); err != nil {
				stats.ViolationsDetected.Add(1)
				log.Error(gctx, "recommendation violation", logger.Int("query", i), logger.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// submitPlans posts plan jobs and returns the job id per submission; a
// rejected submission leaves its id empty.
func submitPlans(ctx context.Context, client *HTTPClient, config *Config, queries []Query, keys []string, stats *Stats) ([]string, error) {
	log := logger.Get().Named("loadtest")
	url := config.BaseURL + "/plans"
	ids := make([]string, len(queries))

	// Submissions sharing a key go through one worker in order so the
	// second one reliably observes the first.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for start := 0; start < len(queries); {
		end := start + 1
		for end < len(queries) && keys[end] == keys[start] {
			end++
		}
		lo, hi := start, end
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				resp, err := client.Post(gctx, url, queries[i], map[string]string{idempotencyHeader: keys[i]})
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					stats.PlansRejected.Add(1)
					continue
				}
				var ack SubmitResponse
				if err := decodeResponse(resp, &ack, http.StatusAccepted, http.StatusOK); err != nil {
					stats.PlansRejected.Add(1)
					if config.Verbose {
						log.Warn(gctx, "plan rejected", logger.String("key", keys[i]), logger.Error(err))
					}
					continue
				}
				stats.PlansSubmitted.Add(1)
				if ack.Duplicate {
					stats.PlansDuplicate.Add(1)
				}
				ids[i] = ack.ID
			}
			return nil
		})
		start = end
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// pollPlans waits until every accepted job reaches a final status or the
// poll timeout expires.
func pollPlans(ctx context.Context, client *HTTPClient, config *Config, ids []string, stats *Stats) error {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			pending[id] = struct{}{}
		}
	}

	deadline := time.Now().Add(config.PollTimeout)
	var succeeded, failed atomic.Int64
	for len(pending) > 0 && time.Now().Before(deadline) {
		done := make(chan string, len(pending))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(config.Workers)
		for id := range pending {
			g.Go(func() error {
				resp, err := client.Get(gctx, config.BaseURL+"/plans/"+id)
				if err != nil {
					return gctx.Err()
				}
				var job types.JobView
				if err := decodeResponse(resp, &job, http.StatusOK); err != nil {
					return nil
				}
				switch job.Status {
				case statusSucceeded:
					succeeded.Add(1)
				case statusFailed:
					failed.Add(1)
				default:
					return nil
				}
				done <- id
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		close(done)
		for id := range done {
			delete(pending, id)
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.PollInterval):
		}
	}

	stats.PlansSucceeded = int(succeeded.Load())
	stats.PlansFailed = int(failed.Load())
	stats.PlansPending = len(pending)
	return nil
}

// saveQueriesToFile writes the generated queries as a JSON array.
func saveQueriesToFile(ctx context.Context, filename string, queries []Query) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(queries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queries: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	logger.Get().Info(ctx, "queries saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	total := stats.Recommended.Load() + stats.RecommendFailed.Load()
	if total > 0 {
		successRate = float64(stats.Recommended.Load()) / float64(total) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(total+stats.PlansSubmitted.Load()) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("queriesGenerated", stats.QueriesGenerated),
		logger.Any("recommended", stats.Recommended.Load()),
		logger.Any("emptyResults", stats.EmptyResults.Load()),
		logger.Any("rowsReturned", stats.RowsReturned.Load()),
		logger.Any("recommendFailed", stats.RecommendFailed.Load()),
		logger.Any("plansSubmitted", stats.PlansSubmitted.Load()),
		logger.Any("plansDuplicate", stats.PlansDuplicate.Load()),
		logger.Any("plansRejected", stats.PlansRejected.Load()),
		logger.Int("plansSucceeded", stats.PlansSucceeded),
		logger.Int("plansFailed", stats.PlansFailed),
		logger.Int("plansPending", stats.PlansPending),
		logger.Any("violations", stats.ViolationsDetected.Load()),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", perSecond))
}
