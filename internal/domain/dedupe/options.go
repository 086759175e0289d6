// Package dedupe tracks keys that were already seen so that only their first
// occurrence is acted upon.
package dedupe

// Option applies a configuration option to an in-memory deduper.
type Option func(*settings)

type settings struct {
	maxSize int
}

// WithMaxSize sets the maximum number of keys to keep in memory.
// If maxSize > 0: bounded mode, the oldest key is evicted first.
// If maxSize <= 0: unbounded mode (no eviction, no size limit).
func WithMaxSize(maxSize int) Option {
	return func(s *settings) {
		s.maxSize = maxSize
	}
}
