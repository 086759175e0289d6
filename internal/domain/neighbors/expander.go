package neighbors

import (
	"fmt"
	"sort"

	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/similarity"
)

// Expander returns the top-k neighbors of a seed that clear a similarity
// threshold. It holds no mutable state and is safe for concurrent use.
type Expander struct {
	store       similarity.Store
	threshold   float64
	limit       int
	includeSelf bool
}

// New creates an Expander over store.
func New(store similarity.Store, opts ...Option) *Expander {
	e := &Expander{
		store:       store,
		threshold:   DefaultThreshold,
		limit:       DefaultLimit,
		includeSelf: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured similarity threshold.
func (e *Expander) Threshold() float64 { return e.threshold }

// Limit returns the configured per-seed cap.
func (e *Expander) Limit() int { return e.limit }

// Expand returns up to Limit neighbors of id with score >= Threshold,
// ordered by score descending and then by ascending item id. Every entry is
// tagged with name. An id outside the matrix yields an error wrapping
// *similarity.OutOfRangeError; an empty result is not an error.
func (e *Expander) Expand(id int, name string) ([]model.Neighbor, error) {
	row, err := e.store.Row(id)
	if err != nil {
		return nil, fmt.Errorf("expand seed %d: %w", id, err)
	}

	kept := row[:0]
	for _, s := range row {
		// Written as a negated >= so NaN scores are dropped.
		if !(s.Value >= e.threshold) {
			continue
		}
		if !e.includeSelf && s.Index == id {
			continue
		}
		kept = append(kept, s)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Value != kept[j].Value {
			return kept[i].Value > kept[j].Value
		}
		return kept[i].Index < kept[j].Index
	})

	if len(kept) > e.limit {
		kept = kept[:e.limit]
	}

	out := make([]model.Neighbor, len(kept))
	for i, s := range kept {
		out[i] = model.Neighbor{Index: s.Index, Score: s.Value, Seed: name}
	}
	return out, nil
}
