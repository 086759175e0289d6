// Package queue holds plan jobs waiting for a worker.
//
// The queue is in-memory and bounded; a full queue rejects new jobs so
// callers can report backpressure instead of blocking.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/pkg/metrics"
)

const (
	defaultQueueCapacity = 1024
	defaultComponent     = "queue"
)

// Job is the payload flowing through the queue.
type Job = model.Job

// Queue accepts plan jobs without blocking and hands them to consumers.
type Queue interface {
	// Enqueue returns ErrFull or ErrClosed when the job was not accepted.
	Enqueue(ctx context.Context, j Job) error
	// Dequeue streams jobs until the queue is closed and drained or ctx ends.
	Dequeue(ctx context.Context) <-chan Job
	Len(ctx context.Context) int
	// Close stops intake; jobs already accepted are still delivered.
	Close() error
	IsClosed() bool
}

// InMemoryQueue is a Queue over a buffered channel. The closed flag and
// the channel close are guarded together so Enqueue never sends on a
// closed channel.
type InMemoryQueue struct {
	pending   chan Job
	capacity  int
	component string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue builds a queue holding at most the configured capacity.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity, component: defaultComponent}
	for _, opt := range opts {
		opt(q)
	}
	q.pending = make(chan Job, q.capacity)
	metrics.UpdateQueueCapacity(q.capacity)
	q.report()
	return q
}

// Capacity is the number of jobs the queue holds before rejecting.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

func (q *InMemoryQueue) report() {
	depth := len(q.pending)
	metrics.UpdateQueueSize(depth)
	metrics.UpdateQueueUtilization(float64(depth) / float64(q.capacity))
}

func (q *InMemoryQueue) reject(reason string, err error) error {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent(q.component, reason)
	return err
}

// Enqueue offers j to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job travels by value
	began := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(began).Microseconds()) / 1000)
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	switch {
	case q.closed:
		return q.reject("closed", ErrClosed)
	case ctx.Err() != nil:
		return q.reject("context_cancelled", fmt.Errorf("enqueue %s: %w", j.ID, ctx.Err()))
	}

	select {
	case q.pending <- j:
		metrics.RecordQueueEnqueue()
		q.report()
		return nil
	default:
		return q.reject("queue_full", ErrFull)
	}
}

// Dequeue forwards queued jobs to the returned channel, which is closed
// once the queue is closed and empty or ctx is canceled.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-q.pending:
				if !ok {
					return
				}
				select {
				case out <- j:
					metrics.RecordQueueDequeue()
					q.report()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len reports the number of jobs waiting.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.report()
	return len(q.pending)
}

// Close is idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
