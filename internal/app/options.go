package service

import (
	"github.com/okian/fitrec/internal/adapters/llm"
	"github.com/okian/fitrec/internal/adapters/repository"
	"github.com/okian/fitrec/internal/domain/prompt"
	"github.com/okian/fitrec/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSources sets the dataset files recommendations are computed from.
func WithSources(src repository.Sources) Option {
	return func(s *Service) {
		s.sources = src
	}
}

// WithSimilarityThreshold sets the minimum neighbor similarity.
func WithSimilarityThreshold(t float64) Option {
	return func(s *Service) {
		s.threshold = t
	}
}

// WithNeighborLimit caps neighbors kept per seed.
func WithNeighborLimit(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.neighborLimit = k
		}
	}
}

// WithIncludeSelf controls whether a seed may be its own neighbor.
func WithIncludeSelf(include bool) Option {
	return func(s *Service) {
		s.includeSelf = include
	}
}

// WithMaxResults caps rows per recommendation.
func WithMaxResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithCacheSize bounds the number of cached dataset snapshots.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithQueueSize sets the maximum number of queued plan jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of plan workers. Zero scales with CPUs.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count >= 0 {
			s.workerCount = count
		}
	}
}

// WithJobStoreSize bounds the number of plan jobs kept for polling.
func WithJobStoreSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.jobStoreSize = size
		}
	}
}

// WithDedupeSize sets the number of remembered idempotency keys.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithGenerator replaces the OpenAI client. The breaker still wraps it.
func WithGenerator(g llm.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithOpenAI configures the default OpenAI client.
func WithOpenAI(opts ...llm.Option) Option {
	return func(s *Service) {
		s.llmOpts = append(s.llmOpts, opts...)
	}
}

// WithBreaker configures the breaker around the generator.
func WithBreaker(opts ...llm.BreakerOption) Option {
	return func(s *Service) {
		s.breakerOpts = append(s.breakerOpts, opts...)
	}
}

// WithLoader replaces how snapshots are read from the sources.
func WithLoader(fn repository.LoadFunc) Option {
	return func(s *Service) {
		s.loader = fn
	}
}

// WithPromptBuilder replaces the default plan instructions.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.build = b.Build
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
