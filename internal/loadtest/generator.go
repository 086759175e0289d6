package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/fitrec/pkg/logger"
)

// Form vocabulary, matching the choices offered on the plan form.
var (
	experiences = []string{"Beginner", "Intermediate", "Expert"}
	muscles     = []string{"Abdominals", "Arms", "Back", "Chest", "Legs", "Shoulders"}
	workouts    = []string{"Cardio", "Plyometrics", "Powerlifting", "Strength", "Stretching"}
	equipment   = []string{"Bands", "Barbell", "Body Only", "Cable", "Dumbbell", "Kettlebells", "Machine"}
	frequencies = []string{"1 day/week", "2 days/week", "3 days/week", "4 days/week", "5 days/week", "6 days/week", "7 days/week"}
	splits      = []string{"", "Full Body Workout", "Upper/Lower Split", "Push/Pull Split", "Push/Pull/Legs Split", "Bro Split"}
	repeats     = []string{"0%", "25%", "50%", "75%", "100%"}
)

// maxSelection caps how many values a generated multi-select carries.
const maxSelection = 3

// generateQueries creates n queries from a seeded source so a run can be
// replayed with the same -seed.
func generateQueries(ctx context.Context, n int, seed uint64) ([]Query, error) {
	logger.Get().Info(ctx, "generating queries", logger.Int("count", n), logger.Any("seed", seed))

	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible load, not security
	out := make([]Query, n)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during query generation: %w", err)
		}
		out[i] = generateSingleQuery(r)
	}
	return out, nil
}

func generateSingleQuery(r *rand.Rand) Query {
	return Query{
		Experience: pick(r, experiences),
		Muscle:     subset(r, muscles),
		Types:      subset(r, workouts),
		Equipment:  subset(r, equipment),
		Frequency:  pick(r, frequencies),
		Split:      pick(r, splits),
		Repeat:     pick(r, repeats),
	}
}

func pick(r *rand.Rand, values []string) string {
	return values[r.IntN(len(values))]
}

// subset returns between one and maxSelection distinct values.
func subset(r *rand.Rand, values []string) []string {
	k := 1 + r.IntN(min(maxSelection, len(values)))
	out := make([]string, 0, k)
	for _, i := range r.Perm(len(values))[:k] {
		out = append(out, values[i])
	}
	return out
}

// idempotencyKeys returns one key per plan submission. Every dupEvery-th
// submission repeats the key of the submission before it.
func idempotencyKeys(n, dupEvery int) []string {
	keys := make([]string, n)
	for i := range keys {
		if dupEvery > 0 && i > 0 && i%dupEvery == 0 {
			keys[i] = keys[i-1]
			continue
		}
		keys[i] = uuid.NewString()
	}
	return keys
}
