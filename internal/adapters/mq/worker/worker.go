// Package worker runs asynchronous plan jobs taken off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/fitrec/internal/adapters/mq/queue"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/pkg/logger"
	"github.com/okian/fitrec/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Planner produces the plan text for a request.
type Planner interface {
	Plan(ctx context.Context, req model.PlanRequest) (string, error)
}

// Recorder persists job state transitions.
type Recorder interface {
	Update(ctx context.Context, id string, fn func(*model.Job)) (model.Job, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue is drained or ctx is canceled.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown waits for the worker to finish the jobs it already received.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	planner  Planner
	recorder Recorder
	name     string

	jobTimeout time.Duration
	done       chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, planner Planner, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		planner:  planner,
		recorder: recorder,
		name:     "worker",
		done:     make(chan struct{}),
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "plan job failed", logger.String("job", j.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown waits for Run to return. Close the queue first so that Run can
// drain it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job and records its outcome. The returned error is the
// planning failure, already stored on the job.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	log := w.logger.With(logger.String("job", j.ID))
	metrics.IncWorkerActive()
	defer func() {
		metrics.DecWorkerActive()
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if _, err := w.recorder.Update(ctx, j.ID, func(job *model.Job) {
		job.Status = model.JobRunning
	}); err != nil {
		// The job was evicted from the store; nobody can read the result.
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "job_missing")
		return fmt.Errorf("mark job %s running: %w", j.ID, err)
	}

	planCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		planCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}
	plan, planErr := w.planner.Plan(planCtx, j.Request)

	status := model.JobSucceeded
	if planErr != nil {
		status = model.JobFailed
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "plan_error")
	}
	if _, err := w.recorder.Update(ctx, j.ID, func(job *model.Job) {
		job.Status = status
		job.Plan = plan
		if planErr != nil {
			job.Error = planErr.Error()
		}
	}); err != nil {
		metrics.RecordErrorByComponent("worker", "job_missing")
		log.Warn(ctx, "job evicted before completion")
	}
	metrics.RecordJobFinished(string(status))

	if planErr != nil {
		return fmt.Errorf("plan job %s: %w", j.ID, planErr)
	}
	log.Debug(ctx, "plan job done", logger.Duration("took", time.Since(start)))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count
// scales with the number of CPUs. Each worker gets opts followed by its
// own name.
func NewPool(workerCount int, q Queue, planner Planner, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Default().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append(opts[:len(opts):len(opts)], WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, planner, recorder, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut++
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
