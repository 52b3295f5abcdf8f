package worker

import "errors"

// Sentinel kinds for evaluation worker failures.
var (
	ErrNoEvaluator = errors.New("no evaluator for event type")
)
