package types_test

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	types "github.com/okian/fitrec/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecommendationJSON(t *testing.T) {
	Convey("Given a recommendation with rows", t, func() {
		rec := types.Recommendation{
			Rows:  []types.Row{{Name: "Push-up", Rating: 4}, {Name: "Bench Press", Rating: 3}},
			Seeds: 1,
		}

		Convey("When encoding it", func() {
			data, err := json.Marshal(rec)

			Convey("Then field names follow the API contract", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, `{"rows":[{"name":"Push-up","rating":4},{"name":"Bench Press","rating":3}],"seeds":1}`)
			})
		})
	})

	Convey("Given an empty recommendation", t, func() {
		rec := types.Recommendation{Rows: []types.Row{}}

		Convey("Then rows encode as an empty array, not null", func() {
			data, err := json.Marshal(rec)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"rows":[]`)
		})
	})
}

func TestJobViewJSON(t *testing.T) {
	Convey("Given a failed job view", t, func() {
		ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		view := types.JobView{ID: "abc", Status: "failed", Error: "generator unavailable", CreatedAt: ts, UpdatedAt: ts}

		Convey("Then the plan is omitted and the error kept", func() {
			data, err := json.Marshal(view)
			So(err, ShouldBeNil)
			So(string(data), ShouldNotContainSubstring, `"plan"`)
			So(string(data), ShouldContainSubstring, `"error":"generator unavailable"`)
			So(string(data), ShouldContainSubstring, `"created_at":"2026-01-02T03:04:05Z"`)
		})
	})
}
