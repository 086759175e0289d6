package config

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInvalidConfig wraps every range or presence check failed by Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, environment and decode failures in Load.
	ErrLoadConfig = errors.New("load config failed")
)
