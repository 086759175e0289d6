package similarity

import (
	"errors"
	"fmt"
)

// Sentinel kinds for similarity errors.
var (
	ErrOutOfRange   = errors.New("item outside similarity matrix")
	ErrNotSquare    = errors.New("similarity matrix is not square")
	ErrAsymmetric   = errors.New("similarity matrix is not symmetric")
	ErrInvalidValue = errors.New("invalid similarity value")
)

// OutOfRangeError reports a lookup for an identifier the matrix does not cover.
type OutOfRangeError struct {
	ID   int
	Size int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("item %d outside similarity matrix of size %d", e.ID, e.Size)
}

// Unwrap lets errors.Is match ErrOutOfRange.
func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}
