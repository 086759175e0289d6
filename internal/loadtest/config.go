package loadtest

import (
	"sync/atomic"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL         string        // Base URL of the service
	Recommendations int           // Number of /recommendations requests
	Plans           int           // Number of /plans submissions; 0 skips the plan phase
	DuplicateEvery  int           // Every Nth plan reuses an earlier idempotency key; 0 disables
	MaxResults      int           // Row cap the service is configured with
	Workers         int           // Number of concurrent workers
	Seed            uint64        // Seed for query generation
	Timeout         time.Duration // HTTP request timeout
	PollInterval    time.Duration // Delay between plan status polls
	PollTimeout     time.Duration // How long to wait for plan jobs to finish
	OutputFile      string        // Output file for generated queries
	LogFile         string        // Log file for run output
	Verbose         bool          // Enable verbose logging
}

// Query is the JSON body shared by /recommendations and /plans.
type Query struct {
	Experience string   `json:"experience"`
	Muscle     []string `json:"muscle"`
	Types      []string `json:"types"`
	Equipment  []string `json:"equipment"`
	Frequency  string   `json:"frequency,omitempty"`
	Split      string   `json:"split,omitempty"`
	Repeat     string   `json:"repeat,omitempty"`
}

// preferences is the /recommendations body; the endpoint rejects the plan
// fields.
type preferences struct {
	Experience string   `json:"experience"`
	Muscle     []string `json:"muscle"`
	Types      []string `json:"types"`
	Equipment  []string `json:"equipment"`
}

func (q *Query) preferences() preferences {
	return preferences{Experience: q.Experience, Muscle: q.Muscle, Types: q.Types, Equipment: q.Equipment}
}

// SubmitResponse is the body returned by POST /plans.
type SubmitResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics. Counters are updated by concurrent workers.
type Stats struct {
	QueriesGenerated   int
	Recommended        atomic.Int64
	EmptyResults       atomic.Int64
	RowsReturned       atomic.Int64
	RecommendFailed    atomic.Int64
	PlansSubmitted     atomic.Int64
	PlansDuplicate     atomic.Int64
	PlansRejected      atomic.Int64
	PlansSucceeded     int
	PlansFailed        int
	PlansPending       int
	ViolationsDetected atomic.Int64
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
