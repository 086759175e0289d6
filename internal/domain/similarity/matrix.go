// Package similarity holds the precomputed exercise × exercise cosine
// similarity matrix and answers row lookups against it.
package similarity

import (
	"fmt"
	"math"
)

// Score is one (other item, similarity) pair of a matrix row.
type Score struct {
	Index int
	Value float64
}

// Store gives read-only access to a similarity matrix.
type Store interface {
	// Row returns the full similarity row of id, self included, ordered by
	// item identifier. Returns an *OutOfRangeError for unknown ids.
	Row(id int) ([]Score, error)

	// Len returns the number of items covered by the matrix.
	Len() int
}

// Matrix is a dense, square, read-only similarity matrix. Row and column i
// both correspond to item identifier i.
type Matrix struct {
	n    int
	data []float64 // row-major, n*n
}

// NewMatrix copies rows into a dense Matrix. Every row must have len(rows)
// entries.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	data := make([]float64, 0, n*n)
	for i, r := range rows {
		if len(r) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), n, ErrNotSquare)
		}
		data = append(data, r...)
	}
	return &Matrix{n: n, data: data}, nil
}

// NewMatrixFromFlat wraps a row-major buffer of n*n values. The buffer is
// owned by the Matrix afterwards.
func NewMatrixFromFlat(n int, data []float64) (*Matrix, error) {
	if n < 0 || len(data) != n*n {
		return nil, fmt.Errorf("%d values cannot form a %dx%d matrix: %w", len(data), n, n, ErrNotSquare)
	}
	return &Matrix{n: n, data: data}, nil
}

// Len returns the matrix dimension.
func (m *Matrix) Len() int {
	return m.n
}

// At returns the similarity between items i and j.
func (m *Matrix) At(i, j int) (float64, error) {
	if i < 0 || i >= m.n {
		return 0, &OutOfRangeError{ID: i, Size: m.n}
	}
	if j < 0 || j >= m.n {
		return 0, &OutOfRangeError{ID: j, Size: m.n}
	}
	return m.data[i*m.n+j], nil
}

// Row returns a fresh copy of row id as (index, score) pairs.
func (m *Matrix) Row(id int) ([]Score, error) {
	if id < 0 || id >= m.n {
		return nil, &OutOfRangeError{ID: id, Size: m.n}
	}
	row := m.data[id*m.n : (id+1)*m.n]
	out := make([]Score, m.n)
	for j, v := range row {
		out[j] = Score{Index: j, Value: v}
	}
	return out, nil
}

// Validate checks that the matrix is symmetric within tolerance and holds
// no NaN values.
func (m *Matrix) Validate(tolerance float64) error {
	for i := 0; i < m.n; i++ {
		for j := i; j < m.n; j++ {
			a, b := m.data[i*m.n+j], m.data[j*m.n+i]
			if math.IsNaN(a) || math.IsNaN(b) {
				return fmt.Errorf("NaN at (%d,%d): %w", i, j, ErrInvalidValue)
			}
			if math.Abs(a-b) > tolerance {
				return fmt.Errorf("(%d,%d)=%g but (%d,%d)=%g: %w", i, j, a, j, i, b, ErrAsymmetric)
			}
		}
	}
	return nil
}
