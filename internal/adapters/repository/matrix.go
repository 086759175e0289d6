package repository

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/fitrec/internal/domain/similarity"
	"github.com/sbinet/npyio"
)

// ReadMatrixNPY decodes a 2-D float64 or float32 NumPy array.
func ReadMatrixNPY(r io.Reader) (*similarity.Matrix, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: npy header: %v", ErrLoad, err)
	}
	shape := nr.Header.Descr.Shape
	if len(shape) != 2 || shape[0] != shape[1] {
		return nil, fmt.Errorf("%w: npy shape %v: %w", ErrLoad, shape, similarity.ErrNotSquare)
	}
	n := shape[0]

	var data []float64
	switch dtype := nr.Header.Descr.Type; dtype {
	case "<f8", "f8", "float64":
		data = make([]float64, n*n)
		if err := nr.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: npy data: %v", ErrLoad, err)
		}
	case "<f4", "f4", "float32":
		f32 := make([]float32, n*n)
		if err := nr.Read(&f32); err != nil {
			return nil, fmt.Errorf("%w: npy data: %v", ErrLoad, err)
		}
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported npy dtype %q", ErrLoad, dtype)
	}

	if nr.Header.Descr.Fortran {
		transpose(n, data)
	}
	return similarity.NewMatrixFromFlat(n, data)
}

func transpose(n int, data []float64) {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			data[i*n+j], data[j*n+i] = data[j*n+i], data[i*n+j]
		}
	}
}

// ReadMatrixCSV decodes a headerless CSV with one matrix row per line.
func ReadMatrixCSV(r io.Reader) (*similarity.Matrix, error) {
	cr := newCSVReader(r)
	var rows [][]float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrLoad, line, err)
		}
		row := make([]float64, len(rec))
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: bad value %q", ErrLoad, line, j+1, cell)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	m, err := similarity.NewMatrix(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return m, nil
}
