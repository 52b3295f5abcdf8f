// Package track stitches calibrated detections into continuous player and
// ball tracks.
package track

import "errors"

// Sentinel kinds for track stitching failures.
var (
	// ErrTrackGap signals a frame gap too wide to interpolate across. The
	// track is split at the gap; the error never aborts stitching.
	ErrTrackGap = errors.New("track gap exceeds interpolation limit")

	// ErrFrameOrder is returned when observations arrive out of frame order.
	ErrFrameOrder = errors.New("observations must arrive in ascending frame order")

	// ErrBuilderFrozen is returned when observations arrive after Freeze.
	ErrBuilderFrozen = errors.New("track builder is frozen")
)
