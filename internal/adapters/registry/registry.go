// Package registry resolves id references between frozen pipeline outputs.
package registry

import (
	"context"

	"github.com/offsidezero/varcore/internal/domain/model"
)

// Stats summarizes what a registry currently holds.
type Stats struct {
	Tracks       int
	Calibrations int
	Rulings      int
}

// Registry provides read access to frozen pipeline outputs by reference.
// Stages exchange ids, never object graphs; the registry is the one place
// an id turns back into a value.
type Registry interface {
	// Track returns the frozen track with the given id.
	// Returns ErrNotFound if the id is unknown.
	Track(ctx context.Context, id string) (*model.Track, error)

	// TracksBySegment returns every frozen track of one segment in
	// registration order.
	TracksBySegment(ctx context.Context, segmentID string) []*model.Track

	// Calibration returns the calibration fitted for one segment.
	// Returns ErrNotFound if the segment never calibrated.
	Calibration(ctx context.Context, segmentID string) (*model.Calibration, error)

	// CalibrationAt returns the calibration whose valid range covers frame.
	// Returns ErrNotFound if no range covers it.
	CalibrationAt(ctx context.Context, frame int64) (*model.Calibration, error)

	// Ruling returns the ruling composed for one decision event.
	// Returns ErrNotFound if the event was never ruled.
	Ruling(ctx context.Context, eventID string) (*model.Ruling, error)

	// Rulings returns all rulings in registration order.
	Rulings(ctx context.Context) []*model.Ruling

	// Stats returns current registry counts.
	Stats(ctx context.Context) Stats
}
