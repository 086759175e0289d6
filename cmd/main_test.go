package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/fitrec/internal/config"
	"github.com/okian/fitrec/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const (
	exercisesCSV = `index,Name,Rating,Level,BodyPart,Type,Equipment
0,Push-up,4.0,Beginner,Chest,Strength,Body Only
1,Bench Press,3.0,Intermediate,Chest,Strength,Barbell
2,Squat,5.0,Intermediate,Quadriceps,Strength,Barbell
`
	joinedCSV = `User_ID,Fitness_Experience,Desired_Muscle_Groups,Workout_Type,Available_Equipment,Workout_Frequency,index,Name,Rating
u1,Beginner,Chest,Strength,Body Only,3 days/week,0,Push-up,4.0
`
	similarityCSV = `1.0,0.7,0.2
0.7,1.0,0.1
0.2,0.1,1.0
`
	completionBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Day 1:\n    Exercise 1: Push-up"}}]}`
)

func init() {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
}

// writeDataset writes the three dataset files and points the FITREC_*
// path variables at them.
func writeDataset(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"exercises.csv":  exercisesCSV,
		"joined.csv":     joinedCSV,
		"similarity.csv": similarityCSV,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	t.Setenv("FITREC_EXERCISES_PATH", filepath.Join(dir, "exercises.csv"))
	t.Setenv("FITREC_JOINED_PATH", filepath.Join(dir, "joined.csv"))
	t.Setenv("FITREC_SIMILARITY_PATH", filepath.Join(dir, "similarity.csv"))
}

// fakeOpenAI answers chat completions with a fixed plan and counts calls.
func fakeOpenAI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewService(t *testing.T) {
	convey.Convey("Given configuration pointing at a small dataset", t, func() {
		writeDataset(t)
		var calls atomic.Int32
		openAI := fakeOpenAI(t, &calls)
		t.Setenv("FITREC_OPENAI_BASE_URL", openAI.URL+"/")
		t.Setenv("FITREC_OPENAI_API_KEY", "test-key")
		t.Setenv("FITREC_OPENAI_MAX_RETRIES", "0")
		t.Setenv("FITREC_WORKER_COUNT", "2")

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		svc, err := newService(cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newMux(ctx, svc))
		defer srv.Close()

		convey.Convey("When recommendations are requested", func() {
			body := `{"experience":"Beginner","muscle":["Chest"],"types":["Strength"],"equipment":["Body Only"]}`
			resp, err := http.Post(srv.URL+"/recommendations", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then the ranked rows come from the files", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var got struct {
					Rows []struct {
						Name   string  `json:"name"`
						Rating float64 `json:"rating"`
					} `json:"rows"`
				}
				convey.So(json.NewDecoder(resp.Body).Decode(&got), convey.ShouldBeNil)
				convey.So(len(got.Rows), convey.ShouldEqual, 2)
				convey.So(got.Rows[0].Name, convey.ShouldEqual, "Push-up")
				convey.So(got.Rows[1].Name, convey.ShouldEqual, "Bench Press")
			})
		})

		convey.Convey("When the plan form is posted", func() {
			form := url.Values{
				"experience": {"Beginner"},
				"muscle":     {"Chest"},
				"types":      {"Strength"},
				"equipment":  {"Body Only"},
				"frequency":  {"3 days/week"},
			}
			resp, err := http.PostForm(srv.URL+"/generate", form)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			text, _ := io.ReadAll(resp.Body)

			convey.Convey("Then the generated plan is returned", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(string(text), convey.ShouldStartWith, "Day 1:")
				convey.So(calls.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a plan job is submitted and polled", func() {
			body := `{"experience":"Beginner","muscle":["Chest"],"types":["Strength"],"equipment":["Body Only"],"frequency":"3 days/week"}`
			resp, err := http.Post(srv.URL+"/plans", "application/json", strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
			location := resp.Header.Get("Location")

			var status string
			for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
				r, err := http.Get(srv.URL + location)
				convey.So(err, convey.ShouldBeNil)
				var job struct {
					Status string `json:"status"`
				}
				_ = json.NewDecoder(r.Body).Decode(&job)
				_ = r.Body.Close()
				status = job.Status
				if status == "succeeded" || status == "failed" {
					break
				}
			}

			convey.Convey("Then the job succeeds", func() {
				convey.So(location, convey.ShouldStartWith, "/plans/")
				convey.So(status, convey.ShouldEqual, "succeeded")
			})
		})

		convey.Convey("When the other routes are requested", func() {
			for _, path := range []string{"/", "/healthz", "/stats", "/api-docs", "/openapi.yaml"} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a valid configuration", t, func() {
		writeDataset(t)
		t.Setenv("FITREC_ADDR", "127.0.0.1:0")
		t.Setenv("FITREC_WORKER_COUNT", "1")

		convey.Convey("When run is canceled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			convey.Convey("Then it shuts down cleanly", func() {
				convey.So(run(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("FITREC_NEIGHBOR_LIMIT", "0")

		convey.Convey("Then run fails before serving", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "neighbor_limit")
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background updaters", t, func() {
		writeDataset(t)
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		svc, err := newService(cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then they return once the context is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("And single updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

type countingReloader struct {
	calls atomic.Int32
	err   error
	done  chan struct{}
}

func (r *countingReloader) Reload(context.Context) error {
	r.calls.Add(1)
	r.done <- struct{}{}
	return r.err
}

func TestReloadOnSignal(t *testing.T) {
	convey.Convey("Given the reload watcher", t, func() {
		sig := make(chan os.Signal, 1)
		rel := &countingReloader{done: make(chan struct{}, 2)}
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		go func() {
			reloadOnSignal(ctx, sig, rel, logger.Get())
			close(stopped)
		}()

		convey.Convey("When two signals arrive, the first failing", func() {
			rel.err = errors.New("bad file")
			sig <- syscall.SIGHUP
			<-rel.done
			sig <- syscall.SIGHUP
			<-rel.done
			cancel()
			<-stopped

			convey.Convey("Then both trigger a reload and the watcher exits with ctx", func() {
				convey.So(rel.calls.Load(), convey.ShouldEqual, 2)
			})
		})

		convey.Reset(cancel)
	})
}
