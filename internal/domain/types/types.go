// Package types contains the shared vocabulary used across the pipeline.
package types

// Team classifies a detected player relative to the side in possession.
type Team string

// Team values as reported by the vision provider.
const (
	TeamAttacking Team = "attacking"
	TeamDefending Team = "defending"
	TeamUnknown   Team = "unknown"
)

// EventType identifies which rule a decision event nominates for evaluation.
type EventType string

// Supported decision event types.
const (
	EventOffside  EventType = "offside"
	EventHandball EventType = "handball"
)

// Verdict is the outcome of evaluating a decision event.
type Verdict string

// Verdict values.
const (
	VerdictYes          Verdict = "yes"
	VerdictNo           Verdict = "no"
	VerdictInconclusive Verdict = "inconclusive"
)

// TrackKind distinguishes player tracks from the ball track.
type TrackKind string

// Track kinds.
const (
	TrackPlayer TrackKind = "player"
	TrackBall   TrackKind = "ball"
)

// Keypoint names a body point reported per player detection.
type Keypoint string

// Keypoints the evaluators know how to use. Providers may report more;
// unknown ones are dropped at the adapter boundary.
const (
	KeypointHead     Keypoint = "head"
	KeypointShoulder Keypoint = "shoulder"
	KeypointElbow    Keypoint = "elbow"
	KeypointHand     Keypoint = "hand"
	KeypointTorso    Keypoint = "torso"
	KeypointHip      Keypoint = "hip"
	KeypointFoot     Keypoint = "foot"
)

// LandmarkID names a canonical pitch marking with known template coordinates.
type LandmarkID string

// Canonical pitch landmarks. Coordinates for each live in the calibrator's
// template table.
const (
	LandmarkCornerNW        LandmarkID = "corner_nw"
	LandmarkCornerNE        LandmarkID = "corner_ne"
	LandmarkCornerSW        LandmarkID = "corner_sw"
	LandmarkCornerSE        LandmarkID = "corner_se"
	LandmarkCenterSpot      LandmarkID = "center_spot"
	LandmarkHalfwayNorth    LandmarkID = "halfway_north"
	LandmarkHalfwaySouth    LandmarkID = "halfway_south"
	LandmarkPenaltySpotW    LandmarkID = "penalty_spot_w"
	LandmarkPenaltySpotE    LandmarkID = "penalty_spot_e"
	LandmarkPenaltyBoxWNW   LandmarkID = "penalty_box_w_nw"
	LandmarkPenaltyBoxWSW   LandmarkID = "penalty_box_w_sw"
	LandmarkPenaltyBoxENE   LandmarkID = "penalty_box_e_ne"
	LandmarkPenaltyBoxESE   LandmarkID = "penalty_box_e_se"
	LandmarkGoalAreaWNW     LandmarkID = "goal_area_w_nw"
	LandmarkGoalAreaWSW     LandmarkID = "goal_area_w_sw"
	LandmarkGoalAreaENE     LandmarkID = "goal_area_e_ne"
	LandmarkGoalAreaESE     LandmarkID = "goal_area_e_se"
	LandmarkCenterCircleN   LandmarkID = "center_circle_n"
	LandmarkCenterCircleS   LandmarkID = "center_circle_s"
	LandmarkGoalLineCenterW LandmarkID = "goal_line_center_w"
	LandmarkGoalLineCenterE LandmarkID = "goal_line_center_e"
)

// PlayDirection is the attacking team's direction of play along the pitch
// Y axis. Clips are normalized upstream so attack always advances on Y.
type PlayDirection int

// Play directions.
const (
	PlayTowardPositiveY PlayDirection = 1
	PlayTowardNegativeY PlayDirection = -1
)

// Sign returns +1 or -1 for use as an advance multiplier. Zero values
// default to +1 so an unset direction never silently inverts geometry.
func (d PlayDirection) Sign() float64 {
	if d == PlayTowardNegativeY {
		return -1
	}
	return 1
}

// FrameRange is an inclusive range of frame indices.
type FrameRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether frame lies inside the range.
func (r FrameRange) Contains(frame int64) bool {
	return frame >= r.Start && frame <= r.End
}

// Overlaps reports whether the two ranges share at least one frame.
func (r FrameRange) Overlaps(o FrameRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Len returns the number of frames covered by the range.
func (r FrameRange) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}
