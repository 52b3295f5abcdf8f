package calib

import "errors"

// Sentinel kinds for calibration errors. The first three mark a segment
// uncalibrated; evaluators downgrade such segments to inconclusive rather
// than aborting the run.
var (
	ErrInsufficientLandmarks = errors.New("not enough landmark correspondences")
	ErrDegenerateLandmarks   = errors.New("landmark configuration is degenerate")
	ErrResidualTooHigh       = errors.New("calibration residual exceeds tolerance")
	ErrOutOfCalibratedRange  = errors.New("frame outside calibrated range")
)
