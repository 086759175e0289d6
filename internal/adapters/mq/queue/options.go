package queue

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the queue; non-positive values keep the default.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithComponent sets the component label used when rejections are counted.
func WithComponent(name string) Option {
	return func(q *InMemoryQueue) {
		if name != "" {
			q.component = name
		}
	}
}
