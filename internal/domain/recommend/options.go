// Package recommend turns a categorical query into a ranked, deduplicated
// list of exercises.
package recommend

import "github.com/okian/fitrec/pkg/logger"

// DefaultMaxResults caps the final recommendation table.
const DefaultMaxResults = 100

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMaxResults sets the maximum number of rows returned. Non-positive
// values are ignored.
func WithMaxResults(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithLogger sets the logger used for skipped seeds and failures.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}
