// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fitrec/internal/adapters/llm"
	"github.com/okian/fitrec/internal/adapters/mq/queue"
	"github.com/okian/fitrec/internal/adapters/mq/worker"
	"github.com/okian/fitrec/internal/adapters/repository"
	"github.com/okian/fitrec/internal/domain/dedupe"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/neighbors"
	"github.com/okian/fitrec/internal/domain/prompt"
	"github.com/okian/fitrec/internal/domain/recommend"
	"github.com/okian/fitrec/internal/domain/types"
	"github.com/okian/fitrec/pkg/logger"
	"github.com/okian/fitrec/pkg/metrics"
)

// planNamespace derives job IDs from idempotency keys, so a key always
// maps to the same job.
var planNamespace = uuid.MustParse("6f1d2c8e-4b7a-5d3e-9c1f-2a8b7e6d5c4b")

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Service runs the recommendation pipeline and the plan jobs built on it.
type Service struct {
	mu    sync.RWMutex
	state lifecycle

	// submitMu makes claiming an idempotency key and storing its job one step.
	submitMu sync.Mutex

	// Configuration
	sources       repository.Sources
	threshold     float64
	neighborLimit int
	includeSelf   bool
	maxResults    int
	cacheSize     int
	queueSize     int
	workerCount   int
	jobStoreSize  int
	dedupeSize    int
	llmOpts       []llm.Option
	breakerOpts   []llm.BreakerOption
	loader        repository.LoadFunc
	build         func(model.PlanRequest, []types.Row) (string, error)

	// Components
	cache     *repository.Cache
	jobs      *repository.JobStore
	keys      dedupe.Deduper[string]
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	generator llm.Generator
	breaker   *llm.Breaker

	logger logger.Logger
}

// New constructs a Service. Components are ready on return; Start launches
// the plan workers.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		threshold:     neighbors.DefaultThreshold,
		neighborLimit: neighbors.DefaultLimit,
		includeSelf:   true,
		maxResults:    recommend.DefaultMaxResults,
		cacheSize:     4,
		queueSize:     1024,
		jobStoreSize:  10_000,
		dedupeSize:    50_000,
		build:         prompt.Build,
		logger:        logger.Default().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	cacheOpts := []repository.Option{repository.WithLogger(s.logger.Named("snapshot"))}
	if s.loader != nil {
		cacheOpts = append(cacheOpts, repository.WithLoader(s.loader))
	}
	cache, err := repository.NewCache(s.cacheSize, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	jobs, err := repository.NewJobStore(s.jobStoreSize)
	if err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	s.cache = cache
	s.jobs = jobs
	s.keys = dedupe.NewInMemoryDeduper[string](dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize), queue.WithComponent("plan_queue"))

	if s.generator == nil {
		s.generator = llm.NewOpenAI(append([]llm.Option{llm.WithLogger(s.logger.Named("llm"))}, s.llmOpts...)...)
	}
	s.breaker = llm.NewBreaker(s.generator, append([]llm.BreakerOption{llm.WithBreakerLogger(s.logger.Named("breaker"))}, s.breakerOpts...)...)
	s.pool = worker.NewPool(s.workerCount, s.queue, s, s.jobs, worker.WithLogger(s.logger))
	return s, nil
}

// Start launches the worker pool and loads the dataset ahead of the first
// request. A failed warm-up is logged, not fatal: the next request retries.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case running:
		return nil
	case stopped:
		return fmt.Errorf("start: %w", ErrNotStarted)
	}

	s.logger.Info(ctx, "starting recommender service...")
	// Workers drain the queue on Stop even after ctx is canceled.
	s.pool.Start(context.WithoutCancel(ctx))
	s.state = running

	if snap, err := s.cache.Get(ctx, s.sources); err != nil {
		s.logger.Warn(ctx, "dataset warm-up failed", logger.Error(err))
	} else {
		s.logger.Info(ctx, "dataset loaded",
			logger.Int("exercises", len(snap.Exercises)),
			logger.Int("filter_keys", snap.Index.Keys()),
			logger.Int("matrix_size", snap.Matrix.Len()))
	}

	s.logger.Info(ctx, "recommender service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("threshold", s.threshold),
		logger.Int("neighborLimit", s.neighborLimit))
	return nil
}

// Stop stops accepting plan jobs and waits for queued ones to finish or
// ctx to expire.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != running {
		s.state = stopped
		return nil
	}
	s.logger.Info(ctx, "stopping recommender service...")
	s.state = stopped
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	s.logger.Info(ctx, "recommender service stopped")
	return nil
}

func (s *Service) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == running
}

// Recommend returns the ranked exercises for q.
func (s *Service) Recommend(ctx context.Context, q model.Query) (types.Recommendation, error) {
	res, err := s.recommend(ctx, q)
	if err != nil {
		return types.Recommendation{}, err
	}
	return types.Recommendation{Rows: res.Rows(), Seeds: res.Seeds, SkippedSeeds: res.SkippedSeeds}, nil
}

func (s *Service) recommend(ctx context.Context, q model.Query) (recommend.Result, error) {
	snap, err := s.cache.Get(ctx, s.sources)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("recommend: %w", err)
	}
	expander := neighbors.New(snap.Matrix,
		neighbors.WithThreshold(s.threshold),
		neighbors.WithLimit(s.neighborLimit),
		neighbors.WithIncludeSelf(s.includeSelf))
	agg := recommend.New(snap.Index, expander, snap.Catalogue,
		recommend.WithMaxResults(s.maxResults),
		recommend.WithLogger(s.logger.Named("recommend")))

	res, err := agg.Recommend(ctx, q)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("recommend: %w", err)
	}
	return res, nil
}

// Plan runs the whole flow inline: recommend, build the prompt and call the
// generator. The worker pool uses it for queued jobs.
func (s *Service) Plan(ctx context.Context, req model.PlanRequest) (string, error) {
	res, err := s.recommend(ctx, req.Query)
	if err != nil {
		return "", err
	}
	text, err := s.build(req, res.Rows())
	if err != nil {
		return "", fmt.Errorf("plan: %w", err)
	}
	s.logger.Debug(ctx, "prompt built",
		logger.Int("rows", len(res.Entries)),
		logger.Int("bytes", len(text)))

	plan, err := s.breaker.Generate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("plan: %w", err)
	}
	return plan, nil
}

// SubmitPlan stores a queued job and hands it to the worker pool. With a
// non-empty key, repeated submissions return the first job and report
// duplicate; a rejected submission releases the key for a retry.
func (s *Service) SubmitPlan(ctx context.Context, key string, req model.PlanRequest) (model.Job, bool, error) {
	if !s.isRunning() {
		return model.Job{}, false, fmt.Errorf("submit plan: %w: %w", ErrNotStarted, queue.ErrClosed)
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	id := uuid.NewString()
	if key != "" {
		id = uuid.NewSHA1(planNamespace, []byte(key)).String()
		if s.keys.SeenAndRecord(ctx, key) {
			if job, err := s.jobs.Get(ctx, id); err == nil {
				s.logger.Debug(ctx, "duplicate plan submission", logger.String("job", id))
				return job, true, nil
			}
			// The job aged out of the store; submit it again under the same id.
		}
	}

	now := time.Now().UTC()
	job := model.Job{ID: id, Status: model.JobQueued, Request: req, CreatedAt: now, UpdatedAt: now}
	s.jobs.Put(ctx, job)

	cause := s.queue.Enqueue(ctx, job)
	if cause == nil {
		return job, false, nil
	}
	if key != "" {
		s.keys.Unrecord(ctx, key)
	}
	_, _ = s.jobs.Update(ctx, id, func(j *model.Job) {
		j.Status = model.JobFailed
		j.Error = cause.Error()
	})
	metrics.RecordErrorByComponent("service", "plan_rejected")
	return model.Job{}, false, fmt.Errorf("submit plan: %w", cause)
}

// Job returns a plan job by id.
func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return model.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	return job, nil
}

// Reload reads the dataset files again and swaps in the new snapshot.
// On failure the cache is left empty and the next request retries.
func (s *Service) Reload(ctx context.Context) error {
	snap, err := s.cache.Refresh(ctx, s.sources)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.logger.Info(ctx, "dataset reloaded", logger.Int("exercises", len(snap.Exercises)))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	jobs := s.jobs.Len()

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateJobsStored(jobs)

	return map[string]interface{}{
		"started":         s.isRunning(),
		"workerCount":     s.pool.Size(),
		"queueSize":       s.queueSize,
		"queueLength":     queueLen,
		"jobsStored":      jobs,
		"idempotencyKeys": s.keys.Size(),
		"snapshotsCached": s.cache.Len(),
		"breakerState":    s.breaker.State(),
		"threshold":       s.threshold,
		"neighborLimit":   s.neighborLimit,
		"maxResults":      s.maxResults,
		"datasetKey":      s.sources.Key(),
	}
}
