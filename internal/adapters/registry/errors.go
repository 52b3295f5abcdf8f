package registry

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrNotFound         = errors.New("reference not found")
	ErrNilValue         = errors.New("nil value registered")
	ErrDuplicateID      = errors.New("id already registered")
	ErrOverlappingRange = errors.New("calibration ranges overlap")
)
