package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrNotFound = errors.New("analysis not cached")
)
