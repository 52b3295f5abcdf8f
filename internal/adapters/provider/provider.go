// Package provider is the boundary to the external vision collaborator
// that turns encoded video frames into per-frame observations.
package provider

import (
	"context"

	"github.com/offsidezero/varcore/internal/domain/model"
)

// Frame is one encoded video frame awaiting observation.
type Frame struct {
	Index int64  `json:"index"`
	JPEG  []byte `json:"jpeg,omitempty"`
}

// FrameBatch is one request unit: a run of frames from a single clip plus
// the context the provider needs to report consistent observations.
type FrameBatch struct {
	ClipID    string
	SegmentID string
	FrameRate float64
	Frames    []Frame

	// Prior carries the most recent canonical observations so the provider
	// can keep track hints stable across batch boundaries.
	Prior []model.FrameObservation
}

// Provider reports per-frame observations for a batch of frames.
type Provider interface {
	// Observe sends one batch and returns canonical observations for its
	// frames. Retried batches may repeat frames the caller already
	// ingested; the idempotency guard downstream drops the repeats.
	Observe(ctx context.Context, batch FrameBatch) ([]model.FrameObservation, error)
}
