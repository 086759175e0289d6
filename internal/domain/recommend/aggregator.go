package recommend

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/okian/fitrec/internal/domain/dedupe"
	"github.com/okian/fitrec/internal/domain/filter"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/similarity"
	"github.com/okian/fitrec/internal/domain/types"
	"github.com/okian/fitrec/pkg/logger"
	"github.com/okian/fitrec/pkg/metrics"
)

// Expander returns the neighbors of one seed.
type Expander interface {
	Expand(id int, name string) ([]model.Neighbor, error)
}

// Result is the outcome of one recommendation request.
type Result struct {
	// Entries are ranked by rating descending, distinct by exercise index.
	Entries []model.Ranked
	// Seeds is the number of seeds the filter produced.
	Seeds int
	// SkippedSeeds lists seeds whose index is unknown to the matrix.
	SkippedSeeds []int
}

// Rows projects the entries to the public (name, rating) table.
func (r Result) Rows() []types.Row {
	rows := make([]types.Row, len(r.Entries))
	for i, e := range r.Entries {
		rows[i] = types.Row{Name: e.Exercise.Name, Rating: e.Exercise.Rating}
	}
	return rows
}

// Aggregator runs the filter, expands every seed and ranks the union.
// It holds read-only references to a dataset snapshot and is safe for
// concurrent use.
type Aggregator struct {
	filter     filter.Filter
	expander   Expander
	catalogue  map[int]model.Exercise
	maxResults int
	log        logger.Logger
}

// New creates an Aggregator. catalogue maps exercise index to its row.
func New(f filter.Filter, e Expander, catalogue map[int]model.Exercise, opts ...Option) *Aggregator {
	a := &Aggregator{
		filter:     f,
		expander:   e,
		catalogue:  catalogue,
		maxResults: DefaultMaxResults,
		log:        logger.Default().Named("recommend"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recommend produces the ranked exercises for q.
//
// Seeds are expanded in filter order. A seed unknown to the similarity
// matrix is skipped and reported in Result.SkippedSeeds. A neighbor without
// a catalogue row fails the whole request with *MissingMetadataError. No
// matching seeds is not an error.
func (a *Aggregator) Recommend(ctx context.Context, q model.Query) (Result, error) {
	start := time.Now()

	seeds := a.filter.Seeds(q)
	res := Result{Entries: []model.Ranked{}, Seeds: len(seeds)}
	if len(seeds) == 0 {
		a.log.Debug(ctx, "no seeds for query",
			logger.String("experience", q.Experience),
			logger.String("muscle", q.MuscleGroups),
			logger.String("type", q.WorkoutType),
			logger.String("equipment", q.Equipment))
		metrics.RecordRecommendation(0, 0, float64(time.Since(start).Milliseconds()))
		return res, nil
	}

	pool := make([]model.Ranked, 0, len(seeds))
	for _, s := range seeds {
		found, err := a.expander.Expand(s.Index, s.Name)
		if err != nil {
			if errors.Is(err, similarity.ErrOutOfRange) {
				a.log.Warn(ctx, "skipping seed outside similarity matrix",
					logger.Int("seed", s.Index),
					logger.String("name", s.Name),
					logger.Error(err))
				metrics.RecordSeedSkipped()
				res.SkippedSeeds = append(res.SkippedSeeds, s.Index)
				continue
			}
			return Result{}, err
		}

		for _, n := range found {
			ex, ok := a.catalogue[n.Index]
			if !ok {
				err := &MissingMetadataError{ID: n.Index, Seed: n.Seed}
				a.log.Error(ctx, "similarity matrix and catalogue out of sync", logger.Error(err))
				metrics.RecordMissingMetadata()
				return Result{}, err
			}
			pool = append(pool, model.Ranked{Neighbor: n, Exercise: ex})
		}
	}

	ranked := dedupe.FirstOccurrence(ctx, pool, func(r model.Ranked) int { return r.Index })
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Exercise.Rating > ranked[j].Exercise.Rating
	})
	if len(ranked) > a.maxResults {
		ranked = ranked[:a.maxResults]
	}
	res.Entries = ranked

	a.log.Debug(ctx, "recommendation ready",
		logger.Int("seeds", res.Seeds),
		logger.Int("skipped", len(res.SkippedSeeds)),
		logger.Int("candidates", len(pool)),
		logger.Int("rows", len(ranked)))
	metrics.RecordRecommendation(res.Seeds, len(ranked), float64(time.Since(start).Milliseconds()))
	return res, nil
}
