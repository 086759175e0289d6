package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/fitrec/internal/adapters/llm"
	"github.com/okian/fitrec/internal/adapters/mq/queue"
	"github.com/okian/fitrec/internal/adapters/repository"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/recommend"
	"github.com/okian/fitrec/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	mu sync.Mutex

	rec     types.Recommendation
	recErr  error
	plan    string
	planErr error
	subErr  error
	jobs    map[string]model.Job
	keys    map[string]string

	lastQuery model.Query
	lastPlan  model.PlanRequest
}

func newMockDeps() *mockDeps {
	return &mockDeps{jobs: map[string]model.Job{}, keys: map[string]string{}}
}

func (m *mockDeps) Recommend(_ context.Context, q model.Query) (types.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	return m.rec, m.recErr
}

func (m *mockDeps) Plan(_ context.Context, req model.PlanRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPlan = req
	return m.plan, m.planErr
}

func (m *mockDeps) SubmitPlan(_ context.Context, key string, req model.PlanRequest) (model.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return model.Job{}, false, m.subErr
	}
	if id, ok := m.keys[key]; ok && key != "" {
		return m.jobs[id], true, nil
	}
	id := fmt.Sprintf("job-%d", len(m.jobs)+1)
	j := model.Job{ID: id, Status: model.JobQueued, Request: req, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.jobs[id] = j
	if key != "" {
		m.keys[key] = id
	}
	m.lastPlan = req
	return j, false, nil
}

func (m *mockDeps) Job(_ context.Context, id string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	return j, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDeps, opts ...Option) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, opts...).
		Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(w *httptest.ResponseRecorder) errorResponse {
	var e errorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e
}

const validRecommendation = `{"experience":"Beginner","muscle":["Legs","Chest"],"types":["Strength"],"equipment":["Body Only"]}`

const validPlan = `{"experience":"Beginner","muscle":["Chest"],"types":["Strength"],"equipment":["Body Only"],"frequency":"3 days/week","split":"Push/Pull Split","repeat":"25%"}`

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(newMockDeps())

		Convey("Then the health endpoint serves metrics", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And the stats endpoint serves JSON", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("And wrong methods are not found", func() {
			So(do(mux, httptest.NewRequest(http.MethodGet, "/recommendations", nil)).Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, httptest.NewRequest(http.MethodGet, "/generate", nil)).Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, httptest.NewRequest(http.MethodDelete, "/plans/x", nil)).Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, httptest.NewRequest(http.MethodPost, "/stats", nil)).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRecommendations(t *testing.T) {
	Convey("Given the recommendations endpoint", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When the request is valid", func() {
			deps.rec = types.Recommendation{
				Rows:  []types.Row{{Name: "Push-up", Rating: 4}, {Name: "Bench Press", Rating: 3}},
				Seeds: 1,
			}
			w := do(mux, postJSON("/recommendations", validRecommendation))

			Convey("Then the rows are returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got types.Recommendation
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Rows, ShouldResemble, deps.rec.Rows)
				So(got.Seeds, ShouldEqual, 1)
			})

			Convey("And the query reaches the service in canonical form", func() {
				So(deps.lastQuery.MuscleGroups, ShouldEqual, "Chest, Legs")
				So(deps.lastQuery.Equipment, ShouldEqual, "Body Only")
			})
		})

		Convey("When nothing matches", func() {
			w := do(mux, postJSON("/recommendations", validRecommendation))

			Convey("Then an empty row list is returned, not null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"rows":[]`)
			})
		})

		Convey("When required fields are missing", func() {
			w := do(mux, postJSON("/recommendations", `{"experience":"","muscle":[],"types":["Strength"],"equipment":["Body Only"]}`))

			Convey("Then 400 names the fields", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				e := decodeError(w)
				So(e.Code, ShouldEqual, "bad_request")
				So(e.Message, ShouldContainSubstring, "experience is required")
				So(e.Message, ShouldContainSubstring, "muscle")
			})
		})

		Convey("When a selection is blank", func() {
			w := do(mux, postJSON("/recommendations", `{"experience":"Beginner","muscle":[""],"types":["Strength"],"equipment":["Body Only"]}`))

			Convey("Then the element is reported", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Message, ShouldContainSubstring, "muscle[0] is required")
			})
		})

		Convey("When the body is not JSON or has unknown fields", func() {
			So(do(mux, postJSON("/recommendations", `{`)).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, postJSON("/recommendations", `{"experience":"Beginner","colour":"red"}`)).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is larger than allowed", func() {
			small := newMux(deps, WithMaxBodyBytes(16))
			w := do(small, postJSON("/recommendations", validRecommendation))

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Message, ShouldContainSubstring, "exceeds 16 bytes")
			})
		})

		Convey("When metadata is missing for a neighbor", func() {
			deps.recErr = &recommend.MissingMetadataError{ID: 8, Seed: "Push-up"}
			w := do(mux, postJSON("/recommendations", validRecommendation))

			Convey("Then 500 is returned without internal details", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				e := decodeError(w)
				So(e.Code, ShouldEqual, "internal_error")
				So(e.Message, ShouldNotContainSubstring, "Push-up")
			})
		})
	})
}

func generateForm(v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestGenerate(t *testing.T) {
	Convey("Given the generate endpoint", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)
		form := url.Values{
			"experience": {"Intermediate"},
			"muscle":     {"Chest", "Arms"},
			"types":      {"Strength"},
			"equipment":  {"Dumbbell"},
			"frequency":  {"4 days/week"},
			"split":      {"Upper/Lower Split"},
			"repeat":     {"50%"},
		}

		Convey("When the form is complete", func() {
			deps.plan = "Day 1:\n  Exercise 1: Push-up"
			w := do(mux, generateForm(form))

			Convey("Then the plan is returned as text", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
				So(w.Body.String(), ShouldEqual, deps.plan)
			})

			Convey("And repeated form values become one canonical selection", func() {
				So(deps.lastPlan.Query.MuscleGroups, ShouldEqual, "Arms, Chest")
				So(deps.lastPlan.Frequency, ShouldEqual, "4 days/week")
				So(deps.lastPlan.Split, ShouldEqual, "Upper/Lower Split")
				So(deps.lastPlan.Repeat, ShouldEqual, "50%")
			})
		})

		Convey("When the frequency is missing", func() {
			form.Del("frequency")
			w := do(mux, generateForm(form))

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Message, ShouldContainSubstring, "frequency is required")
			})
		})

		Convey("When the generator is unavailable", func() {
			deps.planErr = fmt.Errorf("generate: %w", llm.ErrUnavailable)
			w := do(mux, generateForm(form))

			Convey("Then 502 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(decodeError(w).Code, ShouldEqual, "generator_unavailable")
			})
		})
	})
}

func TestPlans(t *testing.T) {
	Convey("Given the plans endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a plan is submitted", func() {
			w := do(mux, postJSON("/plans", validPlan))

			Convey("Then it is accepted with a job id", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var got submitResponse
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, "job-1")
				So(got.Status, ShouldEqual, "queued")
				So(got.Duplicate, ShouldBeFalse)
				So(w.Header().Get("Location"), ShouldEqual, "/plans/job-1")
			})

			Convey("And the job can be read back", func() {
				r := do(mux, httptest.NewRequest(http.MethodGet, "/plans/job-1", nil))
				So(r.Code, ShouldEqual, http.StatusOK)
				var view types.JobView
				So(json.Unmarshal(r.Body.Bytes(), &view), ShouldBeNil)
				So(view.ID, ShouldEqual, "job-1")
				So(view.Status, ShouldEqual, "queued")
			})
		})

		Convey("When the same idempotency key is used twice", func() {
			first := postJSON("/plans", validPlan)
			first.Header.Set(IdempotencyHeader, "abc")
			second := postJSON("/plans", validPlan)
			second.Header.Set(IdempotencyHeader, "abc")

			w1 := do(mux, first)
			w2 := do(mux, second)

			Convey("Then the second call returns the first job", func() {
				So(w1.Code, ShouldEqual, http.StatusAccepted)
				So(w2.Code, ShouldEqual, http.StatusOK)
				var got submitResponse
				So(json.Unmarshal(w2.Body.Bytes(), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, "job-1")
				So(got.Duplicate, ShouldBeTrue)
				So(len(deps.jobs), ShouldEqual, 1)
			})
		})

		Convey("When the idempotency key is too long", func() {
			req := postJSON("/plans", validPlan)
			req.Header.Set(IdempotencyHeader, strings.Repeat("k", maxIdempotencyKey+1))

			Convey("Then 400 is returned", func() {
				So(do(mux, req).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the queue is full", func() {
			deps.subErr = queue.ErrFull
			w := do(mux, postJSON("/plans", validPlan))

			Convey("Then 429 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w).Code, ShouldEqual, "backpressure")
			})
		})

		Convey("When the queue is closed", func() {
			deps.subErr = queue.ErrClosed

			Convey("Then 503 is returned", func() {
				So(do(mux, postJSON("/plans", validPlan)).Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When an unknown job is requested", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/plans/missing", nil))

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When the job path is malformed", func() {
			So(do(mux, httptest.NewRequest(http.MethodGet, "/plans/a/b", nil)).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatusFor(t *testing.T) {
	Convey("Given service errors", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{NewKind("op", ErrBadRequest), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("x: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
			{queue.ErrFull, http.StatusTooManyRequests, "backpressure"},
			{fmt.Errorf("x: %w", llm.ErrEmptyResponse), http.StatusBadGateway, "generator_unavailable"},
			{fmt.Errorf("x: %w", repository.ErrLoad), http.StatusInternalServerError, "internal_error"},
			{recommend.ErrMissingMetadata, http.StatusInternalServerError, "internal_error"},
			{context.Canceled, statusClientClosed, "canceled"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}

		Convey("Then each maps to its status and code", func() {
			for _, c := range cases {
				status, code := statusFor(c.err)
				So(status, ShouldEqual, c.status)
				So(code, ShouldEqual, c.code)
			}
		})
	})

	Convey("Given a kind error wrapping a cause", t, func() {
		cause := errors.New("bad field")
		err := WrapKind("api.op", ErrBadRequest, cause)

		Convey("Then both the kind and the cause are visible", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: bad field")
		})
	})
}

func TestErrorClassification(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		So(getErrorType(502), ShouldEqual, "upstream_error")
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(429), ShouldEqual, "rate_limit")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(400), ShouldEqual, "client_error")
		So(getErrorType(499), ShouldEqual, "canceled")
		So(getErrorType(503), ShouldEqual, "shutting_down")
		So(getErrorSeverity(499), ShouldEqual, "low")
		So(getErrorSeverity(503), ShouldEqual, "high")
		So(getErrorSeverity(400), ShouldEqual, "medium")
		So(getErrorSeverity(200), ShouldEqual, "low")
	})
}
