package recommend

import (
	"errors"
	"fmt"
)

// ErrMissingMetadata means the similarity matrix and the catalogue are out
// of sync: a neighbor id has no catalogue row.
var ErrMissingMetadata = errors.New("missing exercise metadata")

// MissingMetadataError identifies the neighbor that could not be joined and
// the seed it was expanded from.
type MissingMetadataError struct {
	ID   int
	Seed string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("no catalogue row for exercise %d (neighbor of %q)", e.ID, e.Seed)
}

// Unwrap lets errors.Is match ErrMissingMetadata.
func (e *MissingMetadataError) Unwrap() error {
	return ErrMissingMetadata
}
