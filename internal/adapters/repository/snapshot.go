package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/fitrec/internal/domain/filter"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/similarity"
	"golang.org/x/sync/errgroup"
)

// Sources names the three files a snapshot is built from.
type Sources struct {
	Exercises  string
	Joined     string
	Similarity string
}

// Key identifies the snapshot built from s in the cache.
func (s Sources) Key() string {
	return s.Exercises + "|" + s.Joined + "|" + s.Similarity
}

// Snapshot is an immutable, fully indexed copy of the datasets. It is
// shared read-only by concurrent requests.
type Snapshot struct {
	Exercises []model.Exercise
	Catalogue map[int]model.Exercise
	Index     *filter.Index
	Matrix    *similarity.Matrix
	LoadedAt  time.Time
}

// NewSnapshot indexes already decoded datasets. Later catalogue rows with
// a duplicate index are ignored.
func NewSnapshot(exercises []model.Exercise, join []model.JoinRow, m *similarity.Matrix) *Snapshot {
	cat := make(map[int]model.Exercise, len(exercises))
	for _, e := range exercises {
		if _, dup := cat[e.Index]; !dup {
			cat[e.Index] = e
		}
	}
	return &Snapshot{
		Exercises: exercises,
		Catalogue: cat,
		Index:     filter.NewIndex(join),
		Matrix:    m,
		LoadedAt:  time.Now(),
	}
}

// LoadFunc builds a fully populated snapshot for the given sources.
type LoadFunc func(ctx context.Context, src Sources) (*Snapshot, error)

// LoadFiles reads the three dataset files concurrently and indexes them.
// The similarity file is decoded by extension: .npy or .csv.
func LoadFiles(ctx context.Context, src Sources) (*Snapshot, error) {
	var (
		exercises []model.Exercise
		join      []model.JoinRow
		matrix    *similarity.Matrix
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		exercises, err = readFile(src.Exercises, ReadCatalogue)
		return err
	})
	g.Go(func() error {
		var err error
		join, err = readFile(src.Joined, ReadJoin)
		return err
	})
	g.Go(func() error {
		var err error
		matrix, err = LoadMatrix(src.Similarity)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewSnapshot(exercises, join, matrix), nil
}

// LoadMatrix opens path and decodes it according to its extension.
func LoadMatrix(path string) (*similarity.Matrix, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".npy":
		return readFile(path, ReadMatrixNPY)
	case ".csv":
		return readFile(path, ReadMatrixCSV)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported matrix format %q", ErrLoad, path, ext)
	}
}

func readFile[T any](path string, decode func(r io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer func() { _ = f.Close() }()

	v, err := decode(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
