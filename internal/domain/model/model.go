// Package model contains domain models passed between pipeline stages.
package model

import (
	"sort"
	"time"

	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// FrameObservation is the canonical record of everything the vision
// provider reported for a single frame. Immutable once produced.
type FrameObservation struct {
	FrameIndex int64             `json:"frame_index"`
	Timestamp  time.Duration     `json:"timestamp"`
	Players    []PlayerDetection `json:"players,omitempty"`
	Ball       *BallDetection    `json:"ball,omitempty"`
	Landmarks  []PitchLandmark   `json:"landmarks,omitempty"`
}

// PlayerDetection is one player sighting within a frame.
type PlayerDetection struct {
	TrackHint  string                            `json:"track_hint,omitempty"`
	Team       types.Team                        `json:"team"`
	ImagePoint geometry.Point                    `json:"image_point"`
	Keypoints  map[types.Keypoint]geometry.Point `json:"keypoints,omitempty"`
	Confidence float64                           `json:"confidence"`
}

// BallDetection is the ball sighting within a frame.
type BallDetection struct {
	ImagePoint geometry.Point `json:"image_point"`
	Confidence float64        `json:"confidence"`
}

// PitchLandmark is a canonical field marking seen at a pixel position.
type PitchLandmark struct {
	ID         types.LandmarkID `json:"id"`
	ImagePoint geometry.Point   `json:"image_point"`
}

// Calibration maps image pixels to pitch coordinates for one camera-stable
// segment. Immutable after the fit. Inverse is precomputed at fit time so
// both projection directions stay pure and bit-stable across runs.
type Calibration struct {
	SegmentID  string              `json:"segment_id"`
	Homography geometry.Homography `json:"homography"`
	Inverse    geometry.Homography `json:"inverse"`
	ValidRange types.FrameRange    `json:"valid_range"`
	Residual   float64             `json:"residual"`
}

// TrackPoint is one time-ordered sample of a track.
type TrackPoint struct {
	FrameIndex   int64          `json:"frame_index"`
	Pitch        geometry.Point `json:"pitch"`
	Confidence   float64        `json:"confidence"`
	Interpolated bool           `json:"interpolated,omitempty"`
}

// Track is a time-ordered sequence of pitch positions believed to belong
// to one physical entity. The track builder mutates tracks only while
// stitching; evaluators receive them frozen and treat them as read-only.
// Keypoints carries per-body-point sub-series for player tracks (hand,
// elbow, head, hip and so on); it is nil for the ball.
type Track struct {
	ID        string                          `json:"id"`
	Kind      types.TrackKind                 `json:"kind"`
	Team      types.Team                      `json:"team"`
	SegmentID string                          `json:"segment_id"`
	Points    []TrackPoint                    `json:"points"`
	Keypoints map[types.Keypoint][]TrackPoint `json:"keypoints,omitempty"`
}

// At returns the sample at frame. Points are ordered by frame index.
func (t *Track) At(frame int64) (TrackPoint, bool) {
	i := sort.Search(len(t.Points), func(i int) bool {
		return t.Points[i].FrameIndex >= frame
	})
	if i < len(t.Points) && t.Points[i].FrameIndex == frame {
		return t.Points[i], true
	}
	return TrackPoint{}, false
}

// KeypointAt returns the sample of one body-point series at frame.
func (t *Track) KeypointAt(kp types.Keypoint, frame int64) (TrackPoint, bool) {
	series, ok := t.Keypoints[kp]
	if !ok {
		return TrackPoint{}, false
	}
	i := sort.Search(len(series), func(i int) bool {
		return series[i].FrameIndex >= frame
	})
	if i < len(series) && series[i].FrameIndex == frame {
		return series[i], true
	}
	return TrackPoint{}, false
}

// Range returns the inclusive frame range covered by the track. Empty
// tracks return an inverted range with zero length.
func (t *Track) Range() types.FrameRange {
	if len(t.Points) == 0 {
		return types.FrameRange{Start: 0, End: -1}
	}
	return types.FrameRange{
		Start: t.Points[0].FrameIndex,
		End:   t.Points[len(t.Points)-1].FrameIndex,
	}
}

// MeanConfidence averages the per-sample confidence over the whole track.
// Interpolated samples count with their discounted confidence.
func (t *Track) MeanConfidence() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range t.Points {
		sum += p.Confidence
	}
	return sum / float64(len(t.Points))
}
