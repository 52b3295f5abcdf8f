package calib

import (
	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// Pitch template measurements in meters, per the standard 105x68 field.
// The west goal line sits at X=0, the east at X=105; south touchline at
// Y=0, north at Y=68.
const (
	penaltyBoxDepth   = 16.5
	penaltyBoxHalf    = 20.16
	goalAreaDepth     = 5.5
	goalAreaHalf      = 9.16
	penaltySpotDepth  = 11.0
	centerCircleR     = 9.15
	halfLength        = geometry.PitchLength / 2
	halfWidth         = geometry.PitchWidth / 2
)

// PitchTemplate returns the canonical pitch coordinates for every known
// landmark. The map is freshly allocated so callers may customize it.
func PitchTemplate() map[types.LandmarkID]geometry.Point {
	return map[types.LandmarkID]geometry.Point{
		types.LandmarkCornerSW: {X: 0, Y: 0},
		types.LandmarkCornerNW: {X: 0, Y: geometry.PitchWidth},
		types.LandmarkCornerSE: {X: geometry.PitchLength, Y: 0},
		types.LandmarkCornerNE: {X: geometry.PitchLength, Y: geometry.PitchWidth},

		types.LandmarkCenterSpot:   {X: halfLength, Y: halfWidth},
		types.LandmarkHalfwayNorth: {X: halfLength, Y: geometry.PitchWidth},
		types.LandmarkHalfwaySouth: {X: halfLength, Y: 0},

		types.LandmarkPenaltySpotW: {X: penaltySpotDepth, Y: halfWidth},
		types.LandmarkPenaltySpotE: {X: geometry.PitchLength - penaltySpotDepth, Y: halfWidth},

		types.LandmarkPenaltyBoxWNW: {X: penaltyBoxDepth, Y: halfWidth + penaltyBoxHalf},
		types.LandmarkPenaltyBoxWSW: {X: penaltyBoxDepth, Y: halfWidth - penaltyBoxHalf},
		types.LandmarkPenaltyBoxENE: {X: geometry.PitchLength - penaltyBoxDepth, Y: halfWidth + penaltyBoxHalf},
		types.LandmarkPenaltyBoxESE: {X: geometry.PitchLength - penaltyBoxDepth, Y: halfWidth - penaltyBoxHalf},

		types.LandmarkGoalAreaWNW: {X: goalAreaDepth, Y: halfWidth + goalAreaHalf},
		types.LandmarkGoalAreaWSW: {X: goalAreaDepth, Y: halfWidth - goalAreaHalf},
		types.LandmarkGoalAreaENE: {X: geometry.PitchLength - goalAreaDepth, Y: halfWidth + goalAreaHalf},
		types.LandmarkGoalAreaESE: {X: geometry.PitchLength - goalAreaDepth, Y: halfWidth - goalAreaHalf},

		types.LandmarkCenterCircleN: {X: halfLength, Y: halfWidth + centerCircleR},
		types.LandmarkCenterCircleS: {X: halfLength, Y: halfWidth - centerCircleR},

		types.LandmarkGoalLineCenterW: {X: 0, Y: halfWidth},
		types.LandmarkGoalLineCenterE: {X: geometry.PitchLength, Y: halfWidth},
	}
}
