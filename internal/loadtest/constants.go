package loadtest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner defaults.
const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultPollTimeout   = 2 * time.Minute
	PercentageMultiplier = 100
)

// Job statuses reported by GET /plans/{id}.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)
