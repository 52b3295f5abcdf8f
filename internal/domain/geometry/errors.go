package geometry

import "errors"

// Sentinel kinds for projective solver errors.
var (
	ErrInsufficientPoints = errors.New("not enough point correspondences")
	ErrPointCountMismatch = errors.New("source and destination point counts differ")
	ErrDegeneratePoints   = errors.New("point configuration is degenerate")
	ErrSingularTransform  = errors.New("transform is singular")
)
