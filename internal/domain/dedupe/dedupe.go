package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// Deduper records seen keys so callers act on the first occurrence only.
type Deduper[K comparable] interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key K) bool

	// Unrecord forgets key so that it can be recorded again. Used when work
	// claimed under the key could not be handed off (e.g. queue backpressure).
	Unrecord(ctx context.Context, key K)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. In bounded mode an
// insertion-ordered list drives eviction of the oldest key.
type inMemoryDeduper[K comparable] struct {
	mu      sync.Mutex
	seen    map[K]*list.Element // element is nil in unbounded mode
	order   *list.List          // oldest at the back; nil in unbounded mode
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper. Bounded to 50000 keys unless
// WithMaxSize says otherwise.
func NewInMemoryDeduper[K comparable](opts ...Option) Deduper[K] {
	s := settings{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&s)
	}
	return newInMemory[K](s.maxSize)
}

// NewUnbounded creates a deduper without eviction. Intended for
// request-scoped use where the key set is small and short lived.
func NewUnbounded[K comparable]() Deduper[K] {
	return newInMemory[K](0)
}

func newInMemory[K comparable](maxSize int) *inMemoryDeduper[K] {
	d := &inMemoryDeduper[K]{
		seen:    make(map[K]*list.Element),
		maxSize: maxSize,
	}
	if maxSize > 0 {
		d.order = list.New()
	}
	return d
}

func (d *inMemoryDeduper[K]) SeenAndRecord(_ context.Context, key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	if d.order == nil {
		d.seen[key] = nil
		d.size.Add(1)
		return false
	}

	if len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushFront(key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper[K]) Unrecord(_ context.Context, key K) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, exists := d.seen[key]
	if !exists {
		return
	}
	delete(d.seen, key)
	if el != nil {
		d.order.Remove(el)
	}
	d.size.Add(-1)
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper[K]) evictOldest() {
	back := d.order.Back()
	if back == nil {
		return
	}
	key := d.order.Remove(back).(K) //nolint:forcetypeassert // list only holds K
	delete(d.seen, key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper[K]) Size() int64 {
	return d.size.Load()
}

// FirstOccurrence returns items with later duplicates removed, where two
// items are duplicates when key returns the same value. Order is preserved.
func FirstOccurrence[T any, K comparable](ctx context.Context, items []T, key func(T) K) []T {
	d := NewUnbounded[K]()
	out := make([]T, 0, len(items))
	for _, it := range items {
		if d.SeenAndRecord(ctx, key(it)) {
			continue
		}
		out = append(out, it)
	}
	return out
}
