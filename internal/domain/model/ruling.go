package model

import (
	"time"

	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// DecisionEvent nominates an instant and its surrounding window for rule
// evaluation. It references tracks and the calibration segment by id only;
// the shared registry resolves ids, never back-pointers.
type DecisionEvent struct {
	ID             string           `json:"id"`
	Type           types.EventType  `json:"type"`
	InstantFrame   int64            `json:"instant_frame"`
	Window         types.FrameRange `json:"window"`
	SubjectTrackID string           `json:"subject_track_id,omitempty"`
	TrackIDs       []string         `json:"track_ids"`
	SegmentID      string           `json:"segment_id"`
}

// ExplanationStep is one atomic, ordered piece of evidence behind a
// verdict. Reliability bounds how much trust the step can pass downstream.
type ExplanationStep struct {
	Claim       string  `json:"claim"`
	Measurement float64 `json:"measurement"`
	Unit        string  `json:"unit"`
	Weight      float64 `json:"weight"`
	Reliability float64 `json:"reliability"`
}

// ArtifactKind tags the drawable shape of an artifact.
type ArtifactKind string

// Artifact kinds understood by renderers.
const (
	ArtifactLine  ArtifactKind = "line"
	ArtifactZone  ArtifactKind = "zone"
	ArtifactPoint ArtifactKind = "point"
	ArtifactLabel ArtifactKind = "label"
)

// Artifact is a drawable element in pitch coordinates: a line or zone
// outline as an ordered point list, a point marker with a radius, or a
// positioned label.
type Artifact struct {
	Kind   ArtifactKind     `json:"kind"`
	Label  string           `json:"label,omitempty"`
	Points []geometry.Point `json:"points"`
	Radius float64          `json:"radius,omitempty"`
}

// Ruling is the immutable outcome of evaluating one DecisionEvent.
type Ruling struct {
	EventID     string            `json:"event_id"`
	Type        types.EventType   `json:"type"`
	Verdict     types.Verdict     `json:"verdict"`
	Confidence  float64           `json:"confidence"`
	Explanation []ExplanationStep `json:"explanation"`
	Geometry    []Artifact        `json:"geometry,omitempty"`
}

// ImageArtifact is an Artifact projected into pixel coordinates.
type ImageArtifact struct {
	Kind   ArtifactKind     `json:"kind"`
	Label  string           `json:"label,omitempty"`
	Points []geometry.Point `json:"points"`
	Radius float64          `json:"radius,omitempty"`
}

// OverlayFrame carries the pixel-space artifacts for one replay frame.
// Presentation is the slow-motion playback timestamp assigned by the
// overlay synchronizer; IsKeyInstant marks the decision instant itself.
type OverlayFrame struct {
	FrameIndex   int64           `json:"frame_index"`
	Artifacts    []ImageArtifact `json:"artifacts,omitempty"`
	IsKeyInstant bool            `json:"is_key_instant"`
	Presentation time.Duration   `json:"presentation"`
}
