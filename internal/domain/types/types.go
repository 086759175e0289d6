// Package types contains common types used across the application
package types

import "time"

// Row is one ranked recommendation as handed to the prompt builder and API.
type Row struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// Recommendation is the API shape of a recommendation result.
type Recommendation struct {
	Rows         []Row `json:"rows"`
	Seeds        int   `json:"seeds"`
	SkippedSeeds []int `json:"skipped_seeds,omitempty"`
}

// JobView is the API shape of an asynchronous plan job.
type JobView struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Plan      string    `json:"plan,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
