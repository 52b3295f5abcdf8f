// Package rules implements the offside and handball evaluators.
package rules

import "errors"

// Sentinel kinds for evaluator misuse. Data quality problems never error;
// they downgrade the assessment to inconclusive instead.
var (
	// ErrWrongEventType is returned when an event reaches the wrong evaluator.
	ErrWrongEventType = errors.New("event type does not match evaluator")
)
