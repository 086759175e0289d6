package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/fitrec/internal/adapters/mq/queue"
	"github.com/okian/fitrec/internal/adapters/mq/worker"
	"github.com/okian/fitrec/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockPlanner struct {
	fail  map[string]error // keyed by Frequency
	delay time.Duration
	calls atomic.Int32
}

func (p *mockPlanner) Plan(ctx context.Context, req model.PlanRequest) (string, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if err, ok := p.fail[req.Frequency]; ok {
		return "", err
	}
	return "plan for " + req.Frequency, nil
}

type mockRecorder struct {
	mu      sync.Mutex
	jobs    map[string]model.Job
	history map[string][]model.JobStatus
}

func newMockRecorder(ids ...string) *mockRecorder {
	r := &mockRecorder{jobs: map[string]model.Job{}, history: map[string][]model.JobStatus{}}
	for _, id := range ids {
		r.jobs[id] = model.Job{ID: id, Status: model.JobQueued}
	}
	return r
}

func (r *mockRecorder) Update(_ context.Context, id string, fn func(*model.Job)) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return model.Job{}, errors.New("not found")
	}
	fn(&j)
	r.jobs[id] = j
	r.history[id] = append(r.history[id], j.Status)
	return j, nil
}

func (r *mockRecorder) get(id string) model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *mockRecorder) statuses(id string) []model.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.JobStatus(nil), r.history[id]...)
}

func planJob(id, frequency string) queue.Job {
	return queue.Job{ID: id, Status: model.JobQueued, Request: model.PlanRequest{Frequency: frequency}}
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker", t, func() {
		q := newMockQueue()
		planner := &mockPlanner{fail: map[string]error{"7 days/week": errors.New("generator down")}}
		rec := newMockRecorder("ok", "bad")
		w := worker.NewInMemoryWorker(q, planner, rec, worker.WithName("test"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		Convey("When a job succeeds", func() {
			q.jobs <- planJob("ok", "3 days/week")
			So(q.Close(), ShouldBeNil)
			So(w.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then it goes through running to succeeded with the plan stored", func() {
				So(rec.statuses("ok"), ShouldResemble, []model.JobStatus{model.JobRunning, model.JobSucceeded})
				So(rec.get("ok").Plan, ShouldEqual, "plan for 3 days/week")
				So(rec.get("ok").Error, ShouldBeEmpty)
			})
		})

		Convey("When a job fails", func() {
			q.jobs <- planJob("bad", "7 days/week")
			So(q.Close(), ShouldBeNil)
			So(w.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then the failure is recorded on the job", func() {
				j := rec.get("bad")
				So(j.Status, ShouldEqual, model.JobFailed)
				So(j.Error, ShouldContainSubstring, "generator down")
			})
		})

		Convey("When a job is unknown to the recorder", func() {
			q.jobs <- planJob("ghost", "3 days/week")
			So(q.Close(), ShouldBeNil)
			So(w.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then the planner is not called", func() {
				So(planner.calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the context is canceled", func() {
			cancel()

			Convey("Then the worker stops", func() {
				So(w.Shutdown(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestWorkerShutdownTimeout(t *testing.T) {
	Convey("Given a worker whose queue never closes", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, &mockPlanner{}, newMockRecorder())
		go w.Run(context.Background())

		Convey("When shutdown is bounded by a short deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := w.Shutdown(ctx)

			Convey("Then the deadline error is returned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Reset(func() { _ = q.Close() })
	})
}

func TestWorkerPool(t *testing.T) {
	Convey("Given a pool sharing a real queue", t, func() {
		const jobs = 40
		ids := make([]string, jobs)
		for i := range ids {
			ids[i] = fmt.Sprintf("job-%d", i)
		}
		q := queue.NewInMemoryQueue(queue.WithCapacity(jobs))
		rec := newMockRecorder(ids...)
		planner := &mockPlanner{delay: time.Millisecond}
		pool := worker.NewPool(4, q, planner, rec)
		So(pool.Size(), ShouldEqual, 4)

		pool.Start(context.Background())
		for _, id := range ids {
			So(q.Enqueue(context.Background(), planJob(id, "4 days/week")), ShouldBeNil)
		}

		Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			Convey("Then every queued job was processed exactly once", func() {
				So(err, ShouldBeNil)
				So(planner.calls.Load(), ShouldEqual, jobs)
				for _, id := range ids {
					So(rec.get(id).Status, ShouldEqual, model.JobSucceeded)
				}
				So(q.IsClosed(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), &mockPlanner{}, newMockRecorder())

		Convey("Then the pool sizes itself from the CPU count", func() {
			So(pool.Size(), ShouldBeGreaterThan, 0)
		})
	})
}

// stallingPlanner blocks until its context ends.
type stallingPlanner struct{}

func (stallingPlanner) Plan(ctx context.Context, _ model.PlanRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWorkerJobTimeout(t *testing.T) {
	Convey("Given a worker with a per-job deadline and a stalled generator", t, func() {
		q := newMockQueue()
		rec := newMockRecorder("slow")
		w := worker.NewInMemoryWorker(q, stallingPlanner{}, rec, worker.WithJobTimeout(20*time.Millisecond))
		go w.Run(context.Background())

		Convey("When a job is processed", func() {
			q.jobs <- planJob("slow", "3 days/week")
			So(q.Close(), ShouldBeNil)
			So(w.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then the job fails with the deadline instead of hanging", func() {
				job := rec.get("slow")
				So(job.Status, ShouldEqual, model.JobFailed)
				So(job.Error, ShouldContainSubstring, context.DeadlineExceeded.Error())
			})
		})
	})
}
