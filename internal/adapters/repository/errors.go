package repository

import "errors"

// Sentinel kinds for dataset and job store errors.
var (
	ErrLoad     = errors.New("dataset load failed")
	ErrColumn   = errors.New("required column missing")
	ErrNotFound = errors.New("job not found")
)
