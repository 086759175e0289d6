// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) returns a Config holding every default.
// - Load layers a YAML file and FITREC_* environment variables on top.
// - Validate reports every problem at once, wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the record encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Dataset files. The similarity matrix may be .npy or headerless .csv.
	ExercisesPath  string `koanf:"exercises_path"`
	JoinedPath     string `koanf:"joined_path"`
	SimilarityPath string `koanf:"similarity_path"`

	// SimilarityThreshold is the minimum score for a neighbor (inclusive).
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// NeighborLimit caps neighbors kept per seed.
	NeighborLimit int `koanf:"neighbor_limit"`

	// IncludeSelf keeps a seed's own row entry as a neighbor candidate.
	IncludeSelf bool `koanf:"include_self"`

	// MaxResults caps rows returned by a recommendation.
	MaxResults int `koanf:"max_results"`

	// CacheSize bounds the number of dataset snapshots held in memory.
	CacheSize int `koanf:"cache_size"`

	// QueueSize bounds the plan job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of plan workers; 0 scales with CPUs.
	WorkerCount int `koanf:"worker_count"`

	// JobStoreSize bounds the number of plan jobs kept for polling.
	JobStoreSize int `koanf:"job_store_size"`

	// DedupeSize bounds remembered idempotency keys.
	DedupeSize int `koanf:"dedupe_size"`

	OpenAIAPIKey     string `koanf:"openai_api_key"`
	OpenAIBaseURL    string `koanf:"openai_base_url"`
	OpenAIModel      string `koanf:"openai_model"`
	OpenAITimeoutMS  int    `koanf:"openai_timeout_ms"`
	OpenAIMaxTokens  int    `koanf:"openai_max_tokens"`
	OpenAIMaxRetries int    `koanf:"openai_max_retries"`

	// Circuit breaker around the generator.
	BreakerMaxRequests  int     `koanf:"breaker_max_requests"`
	BreakerMinRequests  int     `koanf:"breaker_min_requests"`
	BreakerTimeoutMS    int     `koanf:"breaker_timeout_ms"`
	BreakerFailureRatio float64 `koanf:"breaker_failure_ratio"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		ExercisesPath:       "data/exercises_difficulty_classification_full.csv",
		JoinedPath:          "data/merged_exercise_user_data.csv",
		SimilarityPath:      "data/cosine_similarity_train.npy",
		SimilarityThreshold: 0.65,
		NeighborLimit:       3,
		IncludeSelf:         true,
		MaxResults:          100,
		CacheSize:           4,
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		JobStoreSize:        10_000,
		DedupeSize:          50_000,
		OpenAIModel:         "gpt-4",
		OpenAITimeoutMS:     60_000,
		OpenAIMaxRetries:    2,
		BreakerMaxRequests:  1,
		BreakerMinRequests:  5,
		BreakerTimeoutMS:    30_000,
		BreakerFailureRatio: 0.6,
	}
}

// OpenAITimeout returns the per-call generator timeout.
func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAITimeoutMS) * time.Millisecond
}

// BreakerTimeout returns how long the breaker stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutMS) * time.Millisecond
}

// Validate checks value ranges. Every problem is reported; the result
// wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.LogFormat == "text" || c.LogFormat == "json", "log_format must be text or json, got %q", c.LogFormat)
	check(c.Addr != "", "addr must not be empty")
	check(c.ExercisesPath != "", "exercises_path must not be empty")
	check(c.JoinedPath != "", "joined_path must not be empty")
	check(c.SimilarityPath != "", "similarity_path must not be empty")
	check(c.SimilarityThreshold >= -1 && c.SimilarityThreshold <= 1,
		"similarity_threshold %v outside [-1, 1]", c.SimilarityThreshold)
	check(c.NeighborLimit > 0, "neighbor_limit must be positive, got %d", c.NeighborLimit)
	check(c.MaxResults > 0, "max_results must be positive, got %d", c.MaxResults)
	check(c.CacheSize > 0, "cache_size must be positive, got %d", c.CacheSize)
	check(c.QueueSize > 0, "queue_size must be positive, got %d", c.QueueSize)
	check(c.WorkerCount >= 0, "worker_count must not be negative, got %d", c.WorkerCount)
	check(c.JobStoreSize > 0, "job_store_size must be positive, got %d", c.JobStoreSize)
	check(c.DedupeSize > 0, "dedupe_size must be positive, got %d", c.DedupeSize)
	check(c.OpenAIModel != "", "openai_model must not be empty")
	check(c.OpenAITimeoutMS > 0, "openai_timeout_ms must be positive, got %d", c.OpenAITimeoutMS)
	check(c.OpenAIMaxTokens >= 0, "openai_max_tokens must not be negative, got %d", c.OpenAIMaxTokens)
	check(c.OpenAIMaxRetries >= 0, "openai_max_retries must not be negative, got %d", c.OpenAIMaxRetries)
	check(c.BreakerMaxRequests > 0, "breaker_max_requests must be positive, got %d", c.BreakerMaxRequests)
	check(c.BreakerMinRequests > 0, "breaker_min_requests must be positive, got %d", c.BreakerMinRequests)
	check(c.BreakerTimeoutMS > 0, "breaker_timeout_ms must be positive, got %d", c.BreakerTimeoutMS)
	check(c.BreakerFailureRatio > 0 && c.BreakerFailureRatio <= 1,
		"breaker_failure_ratio %v outside (0, 1]", c.BreakerFailureRatio)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
