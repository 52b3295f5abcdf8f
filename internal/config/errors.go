package config

import (
	"errors"
)

// Sentinel error kinds for this package. Callers match them with errors.Is.
var (
	// ErrInvalidConfig marks a configuration the pipeline cannot run with.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig wraps file and environment loading failures.
	ErrLoadConfig = errors.New("load config failed")
)
