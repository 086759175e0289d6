// Package neighbors expands a seed exercise into its most similar exercises.
package neighbors

// Default expansion parameters.
const (
	DefaultThreshold = 0.65
	DefaultLimit     = 3
)

// Option applies a configuration option to the Expander.
type Option func(*Expander)

// WithThreshold sets the minimum similarity score a neighbor must reach.
// The comparison is inclusive.
func WithThreshold(t float64) Option {
	return func(e *Expander) {
		e.threshold = t
	}
}

// WithLimit caps the number of neighbors returned per seed. Non-positive
// values are ignored.
func WithLimit(k int) Option {
	return func(e *Expander) {
		if k > 0 {
			e.limit = k
		}
	}
}

// WithIncludeSelf controls whether the seed itself may appear among its own
// neighbors. Enabled by default.
func WithIncludeSelf(include bool) Option {
	return func(e *Expander) {
		e.includeSelf = include
	}
}
