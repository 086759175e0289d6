// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strings"
)

// SelectionDelimiter joins multi-select filter values into one canonical string.
const SelectionDelimiter = ", "

// Exercise is one recommendable catalogue entry. Index is the row/column
// of the exercise in the similarity matrix.
type Exercise struct {
	Index       int
	Name        string
	Rating      float64 // 0 means unrated
	Level       string
	MuscleGroup string
	Type        string
	Equipment   string
}

// JoinRow is one row of the user preference × exercise join. The same
// exercise appears once per synthetic user that selected it.
type JoinRow struct {
	UserID       string
	Experience   string
	MuscleGroups string
	WorkoutType  string
	Equipment    string
	Frequency    string
	Index        int
	Name         string
	Rating       float64
}

// Query is an exact-match filter over the four categorical join columns.
// Multi-select values must already be in canonical form (see NewQuery).
type Query struct {
	Experience   string
	MuscleGroups string
	WorkoutType  string
	Equipment    string
}

// Key returns the composite lookup key for the query.
func (q Query) Key() [4]string {
	return [4]string{q.Experience, q.MuscleGroups, q.WorkoutType, q.Equipment}
}

// KeyOf returns the composite key a join row is indexed under.
func KeyOf(r JoinRow) [4]string { //nolint:gocritic // hugeParam: rows are iterated by value
	return [4]string{r.Experience, r.MuscleGroups, r.WorkoutType, r.Equipment}
}

// NewQuery builds a canonical query from raw form selections.
func NewQuery(experience string, muscles, types, equipment []string) Query {
	return Query{
		Experience:   strings.TrimSpace(experience),
		MuscleGroups: JoinSelection(muscles),
		WorkoutType:  JoinSelection(types),
		Equipment:    JoinSelection(equipment),
	}
}

// JoinSelection sorts the selected values and joins them with
// SelectionDelimiter. The input slice is not modified.
func JoinSelection(values []string) string {
	sorted := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			sorted = append(sorted, v)
		}
	}
	sort.Strings(sorted)
	return strings.Join(sorted, SelectionDelimiter)
}

// Seed is a distinct exercise selected directly by the categorical filter.
type Seed struct {
	Index  int
	Name   string
	Rating float64
}

// Neighbor is an exercise found similar to a seed.
type Neighbor struct {
	Index int
	Score float64
	Seed  string // display name of the seed it was expanded from
}

// Ranked is a neighbor joined to its catalogue row.
type Ranked struct {
	Neighbor
	Exercise Exercise
}
