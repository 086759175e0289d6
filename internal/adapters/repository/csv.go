package repository

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/fitrec/internal/domain/model"
)

// Catalogue columns.
const (
	colIndex     = "index"
	colName      = "Name"
	colRating    = "Rating"
	colLevel     = "Level"
	colBodyPart  = "BodyPart"
	colType      = "Type"
	colEquipment = "Equipment"
)

// Join columns (besides index, Name and Rating).
const (
	colUserID     = "User_ID"
	colExperience = "Fitness_Experience"
	colMuscles    = "Desired_Muscle_Groups"
	colWorkout    = "Workout_Type"
	colAvailable  = "Available_Equipment"
	colFrequency  = "Workout_Frequency"
)

// header maps column names to their position in a record.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrLoad)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrLoad, err)
	}
	h := make(header, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		if _, dup := h[n]; !dup {
			h[n] = i
		}
	}
	for _, c := range required {
		if _, ok := h[c]; !ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrLoad, ErrColumn, c)
		}
	}
	return h, nil
}

// get returns the trimmed value of column c, or "" when the column is absent.
func (h header) get(rec []string, c string) string {
	i, ok := h[c]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

func parseIndex(s string, line int) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: line %d: empty %s", ErrLoad, line, colIndex)
	}
	// Exports sometimes write integer columns as floats.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: line %d: bad %s %q", ErrLoad, line, colIndex, s)
}

// parseRating treats empty and NaN cells as unrated.
func parseRating(s string, line int) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: bad %s %q", ErrLoad, line, colRating, s)
	}
	return v, nil
}

// ReadCatalogue decodes the exercise catalogue CSV. Columns are located by
// header name; extra columns are ignored.
func ReadCatalogue(r io.Reader) ([]model.Exercise, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr, colIndex, colName, colRating)
	if err != nil {
		return nil, err
	}

	var out []model.Exercise
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrLoad, line, err)
		}
		idx, err := parseIndex(h.get(rec, colIndex), line)
		if err != nil {
			return nil, err
		}
		rating, err := parseRating(h.get(rec, colRating), line)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Exercise{
			Index:       idx,
			Name:        h.get(rec, colName),
			Rating:      rating,
			Level:       h.get(rec, colLevel),
			MuscleGroup: h.get(rec, colBodyPart),
			Type:        h.get(rec, colType),
			Equipment:   h.get(rec, colEquipment),
		})
	}
	return out, nil
}

// ReadJoin decodes the user preference × exercise join CSV.
func ReadJoin(r io.Reader) ([]model.JoinRow, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr, colExperience, colMuscles, colWorkout, colAvailable, colIndex, colName, colRating)
	if err != nil {
		return nil, err
	}

	var out []model.JoinRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrLoad, line, err)
		}
		idx, err := parseIndex(h.get(rec, colIndex), line)
		if err != nil {
			return nil, err
		}
		rating, err := parseRating(h.get(rec, colRating), line)
		if err != nil {
			return nil, err
		}
		out = append(out, model.JoinRow{
			UserID:       h.get(rec, colUserID),
			Experience:   h.get(rec, colExperience),
			MuscleGroups: h.get(rec, colMuscles),
			WorkoutType:  h.get(rec, colWorkout),
			Equipment:    h.get(rec, colAvailable),
			Frequency:    h.get(rec, colFrequency),
			Index:        idx,
			Name:         h.get(rec, colName),
			Rating:       rating,
		})
	}
	return out, nil
}
