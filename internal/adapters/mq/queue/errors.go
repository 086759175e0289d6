package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("plan queue is full")
	ErrClosed = errors.New("plan queue is closed")
)
