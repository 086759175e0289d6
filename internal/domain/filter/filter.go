// Package filter selects seed exercises from the user × exercise join by
// exact match on the four categorical preference columns.
package filter

import (
	"github.com/okian/fitrec/internal/domain/model"
)

// Filter returns the distinct seeds matching a query.
type Filter interface {
	Seeds(q model.Query) []model.Seed
}

// Index is a Filter backed by a composite-key index over the join, built
// once per dataset snapshot. It is read-only after construction and safe
// for concurrent use.
type Index struct {
	byKey map[[4]string][]model.Seed
	rows  int
}

// NewIndex indexes rows by (experience, muscle groups, workout type,
// equipment). Within a key, seeds are distinct on (index, name, rating) and
// keep the order in which they first appear in rows.
func NewIndex(rows []model.JoinRow) *Index {
	idx := &Index{
		byKey: make(map[[4]string][]model.Seed),
		rows:  len(rows),
	}
	seen := make(map[[4]string]map[model.Seed]struct{})
	for i := range rows {
		key := model.KeyOf(rows[i])
		seed := model.Seed{Index: rows[i].Index, Name: rows[i].Name, Rating: rows[i].Rating}

		set, ok := seen[key]
		if !ok {
			set = make(map[model.Seed]struct{})
			seen[key] = set
		}
		if _, dup := set[seed]; dup {
			continue
		}
		set[seed] = struct{}{}
		idx.byKey[key] = append(idx.byKey[key], seed)
	}
	return idx
}

// Seeds returns the distinct seeds whose join rows match q on all four
// columns. No match yields an empty slice. The returned slice is a copy.
func (x *Index) Seeds(q model.Query) []model.Seed {
	seeds := x.byKey[q.Key()]
	out := make([]model.Seed, len(seeds))
	copy(out, seeds)
	return out
}

// Keys returns the number of distinct preference combinations indexed.
func (x *Index) Keys() int {
	return len(x.byKey)
}

// Rows returns the number of join rows the index was built from.
func (x *Index) Rows() int {
	return x.rows
}

// Match is the conjunctive predicate the index implements: every column
// must equal the query value exactly.
func Match(q model.Query, r *model.JoinRow) bool {
	return r.Experience == q.Experience &&
		r.MuscleGroups == q.MuscleGroups &&
		r.WorkoutType == q.WorkoutType &&
		r.Equipment == q.Equipment
}

// Scan applies Match in a single pass over rows and returns the distinct
// seeds in first-appearance order. It yields the same result as
// NewIndex(rows).Seeds(q) and is meant for one-off queries.
func Scan(rows []model.JoinRow, q model.Query) []model.Seed {
	out := []model.Seed{}
	seen := make(map[model.Seed]struct{})
	for i := range rows {
		if !Match(q, &rows[i]) {
			continue
		}
		seed := model.Seed{Index: rows[i].Index, Name: rows[i].Name, Rating: rows[i].Rating}
		if _, dup := seen[seed]; dup {
			continue
		}
		seen[seed] = struct{}{}
		out = append(out, seed)
	}
	return out
}
