package llm

import "errors"

// Sentinel kinds for generator errors.
var (
	ErrUnavailable   = errors.New("plan generator unavailable")
	ErrEmptyResponse = errors.New("plan generator returned no content")
)
