package worker

import (
	"time"

	"github.com/okian/fitrec/pkg/logger"
)

// Option configures an InMemoryWorker. Pool forwards its options to every
// worker it creates.
type Option func(*InMemoryWorker)

// WithName labels the worker in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger replaces the parent logger; the worker name is appended to it.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithJobTimeout bounds how long a single plan may take. Zero leaves only
// the caller's context in charge.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.jobTimeout = d
		}
	}
}
