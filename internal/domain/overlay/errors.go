// Package overlay projects ruling geometry back into replay frames.
package overlay

import "errors"

// Sentinel kinds for overlay projection failures.
var (
	// ErrStaleCalibration marks frames no valid calibration covers. The
	// frame ships without artifacts; the replay window never aborts.
	ErrStaleCalibration = errors.New("no valid calibration covers the frame")
)
