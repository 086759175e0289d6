package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/pkg/metrics"
)

const defaultJobStoreSize = 10000

// JobStore keeps the most recent plan jobs in memory. The least recently
// used job is evicted when the store is full.
type JobStore struct {
	mu   sync.Mutex // serialises read-modify-write in Update
	jobs *lru.Cache[string, model.Job]
}

// NewJobStore creates a store holding up to size jobs.
func NewJobStore(size int) (*JobStore, error) {
	if size <= 0 {
		size = defaultJobStoreSize
	}
	jobs, err := lru.New[string, model.Job](size)
	if err != nil {
		return nil, fmt.Errorf("job store: %w", err)
	}
	return &JobStore{jobs: jobs}, nil
}

// Put stores job, replacing any job with the same ID.
func (s *JobStore) Put(_ context.Context, job model.Job) {
	s.mu.Lock()
	s.jobs.Add(job.ID, job)
	n := s.jobs.Len()
	s.mu.Unlock()
	metrics.UpdateJobsStored(n)
}

// Get returns the job with id or ErrNotFound.
func (s *JobStore) Get(_ context.Context, id string) (model.Job, error) {
	job, ok := s.jobs.Get(id)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// Update applies fn to the stored job and bumps UpdatedAt. Returns
// ErrNotFound when the job was never stored or has been evicted.
func (s *JobStore) Update(_ context.Context, id string, fn func(*model.Job)) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs.Peek(id)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&job)
	job.UpdatedAt = time.Now()
	s.jobs.Add(id, job)
	return job, nil
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	return s.jobs.Len()
}
