package simclip

import (
	"math"

	"github.com/offsidezero/varcore/internal/adapters/provider"
	"github.com/offsidezero/varcore/internal/app"
	"github.com/offsidezero/varcore/internal/domain/calib"
	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// Synthetic clip geometry constants. The camera is a plain scale-and-flip
// view so every scripted position has an exact pixel counterpart.
const (
	clipFrames     = 60
	clipFrameRate  = 25.0
	cameraScale    = 10.0 // pixels per meter
	cameraOffsetX  = 100.0
	cameraOffsetY  = 800.0
	releaseFrame   = 30
	kickSpeed      = 0.9  // meters per frame off the boot
	kickDecay      = 0.92 // per-frame speed decay after release
	detectionConf  = 0.9
	ballConf       = 0.85
	handballKickAt = 25
)

// Scenario is one scripted clip with a known correct outcome.
type Scenario struct {
	Name        string
	Description string
	Clip        app.Clip

	// Observations holds the canonical per-frame truth the scripted
	// provider serves, keyed by frame index.
	Observations map[int64]model.FrameObservation

	// FailBatch injects a provider failure on the n-th batch (0-based)
	// of the clip; -1 disables injection.
	FailBatch int
	FailWith  error

	// Expectations verified against the analysis result.
	ExpectType    types.EventType
	ExpectVerdict types.Verdict

	// ExpectSegmentFailure marks scenarios whose only ruling is the
	// segment-scope inconclusive downgrade.
	ExpectSegmentFailure bool
}

// Scenarios returns every scripted scenario, in run order.
func Scenarios() []*Scenario {
	return []*Scenario{
		CleanOffside(),
		TightOnside(),
		BlatantHandball(),
		MalformedBatch(),
		UncalibratedSegment(),
	}
}

// ScenarioByName returns the named scenario, or nil.
func ScenarioByName(name string) *Scenario {
	for _, s := range Scenarios() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// camera projects a pitch position into the synthetic pixel view.
func camera(pitch geometry.Point) geometry.Point {
	return geometry.Point{
		X: cameraOffsetX + cameraScale*pitch.X,
		Y: cameraOffsetY - cameraScale*pitch.Y,
	}
}

// actor is one scripted player: a fixed position plus named keypoints given
// as offsets from that position.
type actor struct {
	team      types.Team
	pos       geometry.Point
	keypoints map[types.Keypoint]geometry.Point
}

// outfieldKeypoints is the keypoint set for players whose arms play no role
// in the scenario.
func outfieldKeypoints() map[types.Keypoint]geometry.Point {
	return map[types.Keypoint]geometry.Point{
		types.KeypointFoot: {},
		types.KeypointHead: {X: 0.15},
		types.KeypointHip:  {X: -0.15},
	}
}

// ballPath returns the scripted ball position at a frame: parked at rest
// until the kick frame, then launched toward target with decaying speed.
func ballPath(frame, kickFrame int64, rest, target geometry.Point) geometry.Point {
	if frame <= kickFrame {
		return rest
	}
	dir := target.Sub(rest)
	norm := dir.Norm()
	if norm == 0 {
		return rest
	}
	dir = dir.Scale(1 / norm)

	dist := 0.0
	speed := kickSpeed
	for f := kickFrame + 1; f <= frame; f++ {
		dist += speed
		speed *= kickDecay
	}
	return rest.Add(dir.Scale(dist))
}

// cornerLandmarks are the four pitch corners seen every frame.
func cornerLandmarks(ids []types.LandmarkID, template map[types.LandmarkID]geometry.Point) []model.PitchLandmark {
	out := make([]model.PitchLandmark, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.PitchLandmark{ID: id, ImagePoint: camera(template[id])})
	}
	return out
}

// script builds the full observation map for a cast of static actors and a
// scripted ball path.
func script(actors []actor, landmarkIDs []types.LandmarkID, template map[types.LandmarkID]geometry.Point, ballAt func(frame int64) geometry.Point) map[int64]model.FrameObservation {
	obs := make(map[int64]model.FrameObservation, clipFrames)
	for f := int64(0); f < clipFrames; f++ {
		frame := model.FrameObservation{
			FrameIndex: f,
			Landmarks:  cornerLandmarks(landmarkIDs, template),
		}
		for _, a := range actors {
			det := model.PlayerDetection{
				Team:       a.team,
				ImagePoint: camera(a.pos),
				Confidence: detectionConf,
				Keypoints:  make(map[types.Keypoint]geometry.Point, len(a.keypoints)),
			}
			for kp, off := range a.keypoints {
				det.Keypoints[kp] = camera(a.pos.Add(off))
			}
			frame.Players = append(frame.Players, det)
		}
		frame.Ball = &model.BallDetection{
			ImagePoint: camera(ballAt(f)),
			Confidence: ballConf,
		}
		obs[f] = frame
	}
	return obs
}

// newClip wraps the frame range into a one-segment clip.
func newClip(id string) app.Clip {
	frames := make([]provider.Frame, clipFrames)
	for i := range frames {
		frames[i] = provider.Frame{Index: int64(i)}
	}
	return app.Clip{
		ID:        id,
		FrameRate: clipFrameRate,
		Segments:  []app.Segment{{ID: id + "-seg", Frames: frames}},
	}
}

// fourCorners is the default landmark set.
func fourCorners() []types.LandmarkID {
	return []types.LandmarkID{
		types.LandmarkCornerSW,
		types.LandmarkCornerNW,
		types.LandmarkCornerSE,
		types.LandmarkCornerNE,
	}
}

// CleanOffside scripts the textbook case: defenders hold a line at Y=15,
// the receiver waits at Y=20 and the pass releases at frame 30 with the
// ball at Y=11. The expected ruling is offside, verdict yes.
func CleanOffside() *Scenario {
	passer := geometry.Point{X: 20, Y: 11}
	receiver := geometry.Point{X: 25, Y: 20}
	rest := passer.Add(geometry.Point{X: 0.3})

	actors := []actor{
		{team: types.TeamAttacking, pos: passer, keypoints: outfieldKeypoints()},
		{team: types.TeamAttacking, pos: receiver, keypoints: outfieldKeypoints()},
		{team: types.TeamDefending, pos: geometry.Point{X: 30, Y: 10}, keypoints: outfieldKeypoints()},
		{team: types.TeamDefending, pos: geometry.Point{X: 40, Y: 15}, keypoints: outfieldKeypoints()},
	}
	ballAt := func(f int64) geometry.Point {
		return ballPath(f, releaseFrame, rest, receiver)
	}

	return &Scenario{
		Name:          "clean-offside",
		Description:   "receiver two meters beyond the second defender at the release",
		Clip:          newClip("sim-clean-offside"),
		Observations:  script(actors, fourCorners(), calib.PitchTemplate(), ballAt),
		FailBatch:     -1,
		ExpectType:    types.EventOffside,
		ExpectVerdict: types.VerdictYes,
	}
}

// TightOnside keeps the same pass but parks the receiver half a meter
// inside the line, so the expected verdict flips to no.
func TightOnside() *Scenario {
	passer := geometry.Point{X: 20, Y: 11}
	receiver := geometry.Point{X: 25, Y: 14.5}
	rest := passer.Add(geometry.Point{X: 0.3})

	actors := []actor{
		{team: types.TeamAttacking, pos: passer, keypoints: outfieldKeypoints()},
		{team: types.TeamAttacking, pos: receiver, keypoints: outfieldKeypoints()},
		{team: types.TeamDefending, pos: geometry.Point{X: 30, Y: 10}, keypoints: outfieldKeypoints()},
		{team: types.TeamDefending, pos: geometry.Point{X: 40, Y: 15}, keypoints: outfieldKeypoints()},
	}
	ballAt := func(f int64) geometry.Point {
		return ballPath(f, releaseFrame, rest, receiver)
	}

	return &Scenario{
		Name:          "tight-onside",
		Description:   "receiver half a meter inside the second defender at the release",
		Clip:          newClip("sim-tight-onside"),
		Observations:  script(actors, fourCorners(), calib.PitchTemplate(), ballAt),
		FailBatch:     -1,
		ExpectType:    types.EventOffside,
		ExpectVerdict: types.VerdictNo,
	}
}

// BlatantHandball fires the ball into a defender's fully extended arm. The
// hand sits 1.6m from the torso against a 1.76m height estimate, an
// extension ratio of 0.9 against the 0.6 natural threshold.
func BlatantHandball() *Scenario {
	kicker := geometry.Point{X: 50, Y: 30}
	defender := geometry.Point{X: 50, Y: 40}
	hand := defender.Add(geometry.Point{X: 1.6})
	rest := kicker.Add(geometry.Point{X: 0.3})

	actors := []actor{
		{team: types.TeamAttacking, pos: kicker, keypoints: outfieldKeypoints()},
		{team: types.TeamDefending, pos: defender, keypoints: map[types.Keypoint]geometry.Point{
			types.KeypointTorso: {},
			types.KeypointHand:  {X: 1.6},
			types.KeypointElbow: {X: 0.8},
			types.KeypointHead:  {X: 0.2},
			types.KeypointHip:   {X: -0.2},
			types.KeypointFoot:  {},
		}},
		{team: types.TeamDefending, pos: geometry.Point{X: 60, Y: 45}, keypoints: outfieldKeypoints()},
	}
	ballAt := func(f int64) geometry.Point {
		return handballBallPath(f, rest, hand)
	}

	return &Scenario{
		Name:          "blatant-handball",
		Description:   "ball driven into a defender's arm extended 0.9 of body height",
		Clip:          newClip("sim-blatant-handball"),
		Observations:  script(actors, fourCorners(), calib.PitchTemplate(), ballAt),
		FailBatch:     -1,
		ExpectType:    types.EventHandball,
		ExpectVerdict: types.VerdictYes,
	}
}

// handballBallPath launches earlier and harder than the offside pass so the
// ball crosses ten meters inside the clip.
func handballBallPath(frame int64, rest, target geometry.Point) geometry.Point {
	if frame <= handballKickAt {
		return rest
	}
	dir := target.Sub(rest)
	norm := dir.Norm()
	dir = dir.Scale(1 / norm)

	dist := 0.0
	speed := 1.0
	for f := int64(handballKickAt + 1); f <= frame; f++ {
		dist += speed
		speed *= 0.95
	}
	// Hold at the hand once reached instead of flying off the pitch.
	return rest.Add(dir.Scale(math.Min(dist, norm)))
}

// MalformedBatch replays the clean offside but the provider garbles the
// first batch. The segment continues with a gap and the ruling must still
// land.
func MalformedBatch() *Scenario {
	s := CleanOffside()
	s.Name = "malformed-batch"
	s.Description = "first provider batch dropped mid-segment; analysis continues with a gap"
	s.Clip = newClip("sim-malformed-batch")
	s.FailBatch = 0
	s.FailWith = provider.ErrProviderMalformed
	return s
}

// UncalibratedSegment shows only three corner flags, one short of a fit.
// The whole segment downgrades to an inconclusive ruling naming the cause.
func UncalibratedSegment() *Scenario {
	s := CleanOffside()
	s.Name = "uncalibrated-segment"
	s.Description = "three landmarks only; calibration fails and the segment rules inconclusive"
	s.Clip = newClip("sim-uncalibrated-segment")
	s.Observations = script(
		[]actor{
			{team: types.TeamAttacking, pos: geometry.Point{X: 20, Y: 11}, keypoints: outfieldKeypoints()},
			{team: types.TeamDefending, pos: geometry.Point{X: 40, Y: 15}, keypoints: outfieldKeypoints()},
		},
		[]types.LandmarkID{
			types.LandmarkCornerSW,
			types.LandmarkCornerNW,
			types.LandmarkCornerSE,
		},
		calib.PitchTemplate(),
		func(int64) geometry.Point { return geometry.Point{X: 20.3, Y: 11} },
	)
	s.FailBatch = -1
	s.ExpectType = ""
	s.ExpectVerdict = types.VerdictInconclusive
	s.ExpectSegmentFailure = true
	return s
}
