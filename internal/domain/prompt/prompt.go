// Package prompt renders a ranked recommendation table into the instruction
// text sent to the plan generator.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/types"
	"github.com/valyala/fasttemplate"
)

// ErrTemplate reports an instruction template that cannot be rendered.
var ErrTemplate = errors.New("invalid prompt template")

const (
	startTag = "{{"
	endTag   = "}}"
)

// Workout splits offered by the form.
const (
	SplitFullBody      = "Full Body Workout"
	SplitUpperLower    = "Upper/Lower Split"
	SplitPushPull      = "Push/Pull Split"
	SplitPushPullLegs  = "Push/Pull/Legs Split"
	SplitBro           = "Bro Split"
	noConsecutiveSplit = "Avoid consecutive days that train the same split."
)

// SplitGuidance returns the scheduling rule for a workout split. Unknown or
// empty splits let the model pick the layout.
func SplitGuidance(split string) string {
	var rule string
	switch split {
	case SplitFullBody:
		return "Ensure the exercises target all muscle groups for every workout day."
	case SplitUpperLower:
		rule = "Ensure upper body exercises and lower body exercises are trained on separate days. Do not combine upper body and lower body exercises for a given day."
	case SplitPushPull:
		rule = "Ensure push exercises and pull exercises are trained on separate days. Do not combine push and pull exercises for a given day."
	case SplitPushPullLegs:
		rule = "Ensure push exercises, pull exercises and leg exercises are trained on separate days. Do not combine push, pull or legs exercises for a given day."
	case SplitBro:
		rule = "Ensure each individual muscle group is trained on a separate day. Do not combine multiple major muscle groups for a given day."
	default:
		return "Determine the best workout plan given the list of exercises, either separating the days by muscle group or a combination each day."
	}
	return rule + " " + noConsecutiveSplit
}

// Table renders rows as a right-aligned text table with a positional index
// column. An empty slice renders the header only.
func Table(rows []types.Row) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\tName\tRating\t\n")
	for i, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t\n", i, r.Name, formatRating(r.Rating))
	}
	_ = w.Flush() // writes to a bytes.Buffer cannot fail
	return strings.TrimRight(buf.String(), "\n")
}

func formatRating(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Builder renders plan requests through a parsed instruction template.
// It is immutable and safe for concurrent use.
type Builder struct {
	tmpl *fasttemplate.Template
}

// NewBuilder parses text. Placeholders are written as {{name}}; see
// Placeholders for the supported names.
func NewBuilder(text string) (*Builder, error) {
	t, err := fasttemplate.NewTemplate(text, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return &Builder{tmpl: t}, nil
}

// Placeholders lists the names a template may reference.
var Placeholders = []string{ //nolint:gochecknoglobals // read-only list
	"split", "split_guidance", "frequency", "equipment", "types", "experience", "muscle", "repeat", "table"}

// Build fills the template for req with the recommendation table. An empty
// table is accepted.
func (b *Builder) Build(req model.PlanRequest, rows []types.Row) (string, error) {
	values := map[string]string{
		"split":          req.Split,
		"split_guidance": SplitGuidance(req.Split),
		"frequency":      req.Frequency,
		"equipment":      req.Query.Equipment,
		"types":          req.Query.WorkoutType,
		"experience":     req.Query.Experience,
		"muscle":         req.Query.MuscleGroups,
		"repeat":         req.Repeat,
		"table":          Table(rows),
	}
	out, err := b.tmpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, ok := values[strings.TrimSpace(tag)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown placeholder %q", ErrTemplate, tag)
		}
		return w.Write([]byte(v))
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

var defaultBuilder = func() *Builder { //nolint:gochecknoglobals // parsed once
	b, err := NewBuilder(Instructions)
	if err != nil {
		panic(err)
	}
	return b
}()

// Build renders req with the default Instructions.
func Build(req model.PlanRequest, rows []types.Row) (string, error) {
	return defaultBuilder.Build(req, rows)
}
