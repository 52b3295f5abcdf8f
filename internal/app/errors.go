package app

import "errors"

// Sentinel kinds for analyzer lifecycle and run failures.
var (
	// ErrNotStarted is returned when Analyze is called before Start.
	ErrNotStarted = errors.New("analyzer not started")

	// ErrNoProvider is returned by Start when no vision provider was wired.
	ErrNoProvider = errors.New("no vision provider configured")

	// ErrNoObservations marks a segment whose frames produced nothing the
	// pipeline can work with. The segment rules inconclusive; siblings
	// continue.
	ErrNoObservations = errors.New("segment produced no observations")
)
