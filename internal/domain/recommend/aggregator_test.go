package recommend_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/fitrec/internal/domain/filter"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/neighbors"
	"github.com/okian/fitrec/internal/domain/recommend"
	"github.com/okian/fitrec/internal/domain/similarity"
	"github.com/okian/fitrec/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var chestQuery = model.Query{
	Experience: "Beginner", MuscleGroups: "Chest", WorkoutType: "Strength", Equipment: "Body Only",
}

func seedRows(q model.Query, seeds ...model.Seed) []model.JoinRow {
	rows := make([]model.JoinRow, 0, len(seeds))
	for i, s := range seeds {
		rows = append(rows, model.JoinRow{
			UserID: fmt.Sprintf("u%d", i), Experience: q.Experience, MuscleGroups: q.MuscleGroups,
			WorkoutType: q.WorkoutType, Equipment: q.Equipment,
			Index: s.Index, Name: s.Name, Rating: s.Rating,
		})
	}
	return rows
}

func catalogueOf(ex ...model.Exercise) map[int]model.Exercise {
	out := make(map[int]model.Exercise, len(ex))
	for _, e := range ex {
		out[e.Index] = e
	}
	return out
}

func mustMatrix(rows [][]float64) *similarity.Matrix {
	m, err := similarity.NewMatrix(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// stubExpander returns canned neighbors per seed id.
type stubExpander map[int][]model.Neighbor

func (s stubExpander) Expand(id int, name string) ([]model.Neighbor, error) {
	found, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("stub: %w", &similarity.OutOfRangeError{ID: id, Size: len(s)})
	}
	out := make([]model.Neighbor, len(found))
	for i, n := range found {
		n.Seed = name
		out[i] = n
	}
	return out, nil
}

func TestRecommendScenarios(t *testing.T) {
	ctx := context.Background()

	Convey("Given the push-up dataset", t, func() {
		m := mustMatrix([][]float64{
			{1.0, 0.7, 0.2},
			{0.7, 1.0, 0.9},
			{0.2, 0.9, 1.0},
		})
		cat := catalogueOf(
			model.Exercise{Index: 0, Name: "Push-up", Rating: 4.0},
			model.Exercise{Index: 1, Name: "Bench Press", Rating: 3.0},
			model.Exercise{Index: 2, Name: "Fly", Rating: 5.0},
		)
		idx := filter.NewIndex(seedRows(chestQuery, model.Seed{Index: 0, Name: "Push-up", Rating: 4.0}))
		a := recommend.New(idx, neighbors.New(m), cat)

		Convey("When recommending for the matching query", func() {
			res, err := a.Recommend(ctx, chestQuery)

			Convey("Then the seed and its neighbor are ranked by rating", func() {
				So(err, ShouldBeNil)
				So(res.Seeds, ShouldEqual, 1)
				So(res.SkippedSeeds, ShouldBeEmpty)
				So(res.Rows(), ShouldResemble, []types.Row{
					{Name: "Push-up", Rating: 4.0},
					{Name: "Bench Press", Rating: 3.0},
				})
			})

			Convey("And the internal entries keep id and score", func() {
				So(res.Entries[0].Index, ShouldEqual, 0)
				So(res.Entries[0].Score, ShouldEqual, 1.0)
				So(res.Entries[1].Index, ShouldEqual, 1)
				So(res.Entries[1].Score, ShouldEqual, 0.7)
				So(res.Entries[1].Seed, ShouldEqual, "Push-up")
			})
		})

		Convey("When the query matches nothing", func() {
			q := chestQuery
			q.Equipment = "Kettlebells"
			res, err := a.Recommend(ctx, q)

			Convey("Then an empty, well-formed result comes back", func() {
				So(err, ShouldBeNil)
				So(res.Seeds, ShouldEqual, 0)
				So(res.Entries, ShouldNotBeNil)
				So(res.Rows(), ShouldBeEmpty)
			})
		})

		Convey("When recommending repeatedly", func() {
			first, _ := a.Recommend(ctx, chestQuery)
			second, _ := a.Recommend(ctx, chestQuery)

			Convey("Then the output is identical", func() {
				So(second, ShouldResemble, first)
			})
		})
	})

	Convey("Given two seeds that both reach item 5", t, func() {
		exp := stubExpander{
			1: {{Index: 1, Score: 1.0}, {Index: 5, Score: 0.9}},
			2: {{Index: 2, Score: 1.0}, {Index: 5, Score: 0.8}},
		}
		cat := catalogueOf(
			model.Exercise{Index: 1, Name: "Squat", Rating: 2.0},
			model.Exercise{Index: 2, Name: "Lunge", Rating: 2.0},
			model.Exercise{Index: 5, Name: "Step-up", Rating: 2.0},
		)
		idx := filter.NewIndex(seedRows(chestQuery,
			model.Seed{Index: 1, Name: "Squat", Rating: 2.0},
			model.Seed{Index: 2, Name: "Lunge", Rating: 2.0},
		))
		res, err := recommend.New(idx, exp, cat).Recommend(ctx, chestQuery)

		Convey("Then item 5 appears once, taken from the first seed", func() {
			So(err, ShouldBeNil)
			count := 0
			for _, e := range res.Entries {
				if e.Index == 5 {
					count++
					So(e.Seed, ShouldEqual, "Squat")
					So(e.Score, ShouldEqual, 0.9)
				}
			}
			So(count, ShouldEqual, 1)
		})

		Convey("And equal ratings keep the pre-sort order", func() {
			So([]int{res.Entries[0].Index, res.Entries[1].Index, res.Entries[2].Index}, ShouldResemble, []int{1, 5, 2})
		})
	})

	Convey("Given a seed unknown to the matrix", t, func() {
		exp := stubExpander{1: {{Index: 1, Score: 1.0}}}
		cat := catalogueOf(model.Exercise{Index: 1, Name: "Squat", Rating: 3.0})
		idx := filter.NewIndex(seedRows(chestQuery,
			model.Seed{Index: 99, Name: "Ghost", Rating: 1.0},
			model.Seed{Index: 1, Name: "Squat", Rating: 3.0},
		))
		res, err := recommend.New(idx, exp, cat).Recommend(ctx, chestQuery)

		Convey("Then that seed is skipped and the rest is processed", func() {
			So(err, ShouldBeNil)
			So(res.Seeds, ShouldEqual, 2)
			So(res.SkippedSeeds, ShouldResemble, []int{99})
			So(res.Rows(), ShouldResemble, []types.Row{{Name: "Squat", Rating: 3.0}})
		})
	})

	Convey("Given a neighbor without catalogue metadata", t, func() {
		exp := stubExpander{1: {{Index: 1, Score: 1.0}, {Index: 8, Score: 0.7}}}
		cat := catalogueOf(model.Exercise{Index: 1, Name: "Squat", Rating: 3.0})
		idx := filter.NewIndex(seedRows(chestQuery, model.Seed{Index: 1, Name: "Squat", Rating: 3.0}))
		_, err := recommend.New(idx, exp, cat).Recommend(ctx, chestQuery)

		Convey("Then the request fails with the offending id", func() {
			var mm *recommend.MissingMetadataError
			So(errors.As(err, &mm), ShouldBeTrue)
			So(mm.ID, ShouldEqual, 8)
			So(mm.Seed, ShouldEqual, "Squat")
			So(errors.Is(err, recommend.ErrMissingMetadata), ShouldBeTrue)
		})
	})
}

func TestRecommendProperties(t *testing.T) {
	ctx := context.Background()

	Convey("Given a dense catalogue larger than the result cap", t, func() {
		const n = 150
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = make([]float64, n)
			for j := range rows[i] {
				rows[i][j] = 0.5
				if i == j || (j-i+n)%n <= 2 {
					rows[i][j] = 0.9
				}
				if i == j {
					rows[i][j] = 1.0
				}
			}
		}
		m := mustMatrix(rows)

		exercises := make([]model.Exercise, n)
		seeds := make([]model.Seed, n)
		for i := 0; i < n; i++ {
			exercises[i] = model.Exercise{Index: i, Name: fmt.Sprintf("ex-%03d", i), Rating: float64(i % 10)}
			seeds[i] = model.Seed{Index: i, Name: exercises[i].Name, Rating: exercises[i].Rating}
		}
		idx := filter.NewIndex(seedRows(chestQuery, seeds...))
		a := recommend.New(idx, neighbors.New(m), catalogueOf(exercises...))

		res, err := a.Recommend(ctx, chestQuery)
		So(err, ShouldBeNil)

		Convey("Then the output is capped at the default maximum", func() {
			So(len(res.Entries), ShouldEqual, recommend.DefaultMaxResults)
		})

		Convey("Then no exercise is repeated", func() {
			seen := map[int]bool{}
			for _, e := range res.Entries {
				So(seen[e.Index], ShouldBeFalse)
				seen[e.Index] = true
			}
		})

		Convey("Then ratings never increase down the table", func() {
			for i := 1; i < len(res.Entries); i++ {
				So(res.Entries[i-1].Exercise.Rating, ShouldBeGreaterThanOrEqualTo, res.Entries[i].Exercise.Rating)
			}
		})

		Convey("Then every entry cleared the threshold", func() {
			for _, e := range res.Entries {
				So(e.Score, ShouldBeGreaterThanOrEqualTo, neighbors.DefaultThreshold)
			}
		})

		Convey("When a smaller cap is configured", func() {
			small, err := recommend.New(idx, neighbors.New(m), catalogueOf(exercises...),
				recommend.WithMaxResults(5)).Recommend(ctx, chestQuery)

			Convey("Then it is honoured", func() {
				So(err, ShouldBeNil)
				So(len(small.Entries), ShouldEqual, 5)
			})
		})
	})
}
