package model

import "time"

// PlanRequest is everything needed to build a weekly workout plan prompt.
type PlanRequest struct {
	Query     Query
	Frequency string // e.g. "3 days/week"
	Split     string // e.g. "Push/Pull Split"; empty lets the model decide
	Repeat    string // allowed exercise repetition, e.g. "25%"
}

// JobStatus is the lifecycle state of an asynchronous plan job.
type JobStatus string

// Job statuses.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the status is final.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is a plan generation request processed by the worker pool.
type Job struct {
	ID        string
	Status    JobStatus
	Request   PlanRequest
	Plan      string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
