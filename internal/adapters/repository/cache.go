package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/fitrec/pkg/logger"
	"github.com/okian/fitrec/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize         = 4
	defaultSymmetryTolerance = 1e-6
)

// Cache keeps recently used snapshots in memory. Concurrent misses for the
// same sources share a single load. Cached snapshots are never mutated.
type Cache struct {
	entries   *lru.Cache[string, *Snapshot]
	group     singleflight.Group
	gen       atomic.Uint64
	load      LoadFunc
	tolerance float64
	log       logger.Logger
}

// NewCache creates a cache holding up to size snapshots. Non-positive sizes
// fall back to a small default.
func NewCache(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, *Snapshot](size)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	c := &Cache{
		entries:   entries,
		load:      LoadFiles,
		tolerance: defaultSymmetryTolerance,
		log:       logger.Default().Named("snapshot"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the snapshot for src, loading it on a miss. Waiting callers
// give up when ctx is done; the shared load itself keeps running for the
// others.
func (c *Cache) Get(ctx context.Context, src Sources) (*Snapshot, error) {
	key := src.Key()
	if s, ok := c.entries.Get(key); ok {
		metrics.RecordSnapshotCacheHit()
		return s, nil
	}
	metrics.RecordSnapshotCacheMiss()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if s, ok := c.entries.Get(key); ok {
			return s, nil
		}
		return c.populate(context.WithoutCancel(ctx), src)
	})
	return wait(ctx, ch)
}

// Refresh reads src again and replaces the cached snapshot. It never joins
// a load that was already running, and such a load finishing later does
// not overwrite the refreshed entry.
func (c *Cache) Refresh(ctx context.Context, src Sources) (*Snapshot, error) {
	gen := c.gen.Add(1)
	c.entries.Remove(src.Key())
	ch := c.group.DoChan("refresh:"+strconv.FormatUint(gen, 10)+":"+src.Key(), func() (interface{}, error) {
		return c.populate(context.WithoutCancel(ctx), src)
	})
	return wait(ctx, ch)
}

func wait(ctx context.Context, ch <-chan singleflight.Result) (*Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil //nolint:forcetypeassert // group only returns *Snapshot
	}
}

func (c *Cache) populate(ctx context.Context, src Sources) (*Snapshot, error) {
	gen := c.gen.Load()
	start := time.Now()
	s, err := c.load(ctx, src)
	if err != nil {
		c.log.Error(ctx, "snapshot load failed", logger.String("key", src.Key()), logger.Error(err))
		metrics.RecordErrorByComponent("repository", "load")
		return nil, err
	}
	if c.tolerance >= 0 && s.Matrix != nil {
		if err := s.Matrix.Validate(c.tolerance); err != nil {
			c.log.Error(ctx, "similarity matrix rejected", logger.String("path", src.Similarity), logger.Error(err))
			metrics.RecordErrorByComponent("repository", "validate")
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, src.Similarity, err)
		}
	}

	if c.gen.Load() == gen {
		c.entries.Add(src.Key(), s)
	}
	elapsed := time.Since(start)
	metrics.RecordSnapshotLoad(len(s.Exercises), float64(elapsed.Milliseconds()))
	c.log.Info(ctx, "snapshot loaded",
		logger.Int("exercises", len(s.Exercises)),
		logger.Int("join_rows", s.Index.Rows()),
		logger.Int("join_keys", s.Index.Keys()),
		logger.Int("matrix", s.Matrix.Len()),
		logger.Duration("took", elapsed))
	return s, nil
}

// Invalidate drops the cached snapshot for src so the next Get reloads it.
func (c *Cache) Invalidate(src Sources) {
	c.entries.Remove(src.Key())
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	return c.entries.Len()
}
