// Package repository loads the exercise datasets, caches immutable
// snapshots of them and stores plan jobs.
package repository

import "github.com/okian/fitrec/pkg/logger"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithLoader replaces the function used to populate a cache miss.
func WithLoader(fn LoadFunc) Option {
	return func(c *Cache) {
		if fn != nil {
			c.load = fn
		}
	}
}

// WithSymmetryTolerance sets the tolerance used to validate loaded
// matrices. A negative tolerance disables validation.
func WithSymmetryTolerance(tol float64) Option {
	return func(c *Cache) {
		c.tolerance = tol
	}
}
