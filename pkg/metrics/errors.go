package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors. Recording helpers never fail the
// pipeline; this surfaces only from explicit registry operations.
var (
	ErrObserveFailed = errors.New("metrics observe failed")
)
