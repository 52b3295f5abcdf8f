package rules_test

import (
	"context"
	"errors"
	"testing"

	geometry "github.com/offsidezero/varcore/internal/domain/geometry"
	model "github.com/offsidezero/varcore/internal/domain/model"
	rules "github.com/offsidezero/varcore/internal/domain/rules"
	types "github.com/offsidezero/varcore/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// poseTrack builds a player track pinned at (x, y) with keypoints placed at
// fixed offsets from the body position for frames from..to.
func poseTrack(id string, x, y float64, offsets map[types.Keypoint]geometry.Point, from, to int64) *model.Track {
	tr := staticTrack(id, types.TeamDefending, x, y, from, to)
	tr.Keypoints = make(map[types.Keypoint][]model.TrackPoint, len(offsets))
	for kp, off := range offsets {
		series := make([]model.TrackPoint, 0, to-from+1)
		for f := from; f <= to; f++ {
			series = append(series, model.TrackPoint{
				FrameIndex: f,
				Pitch:      geometry.Point{X: x + off.X, Y: y + off.Y},
				Confidence: 0.85,
			})
		}
		tr.Keypoints[kp] = series
	}
	return tr
}

func handballEvent(instant int64, subject string) *model.DecisionEvent {
	return &model.DecisionEvent{
		ID:             "ev-hb-1",
		Type:           types.EventHandball,
		InstantFrame:   instant,
		Window:         types.FrameRange{Start: 0, End: 20},
		SubjectTrackID: subject,
		SegmentID:      "seg-1",
	}
}

func TestHandballExtendedArm(t *testing.T) {
	Convey("Given a ball striking a fully extended arm", t, func() {
		ctx := context.Background()
		eval := rules.NewHandball()
		cal := calibrationWithResidual(0.1)

		// Head-hip separation 0.42m estimates height at 1.848m; the hand
		// sits 1.6632m from the torso, a 0.9 extension ratio.
		subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
			types.KeypointTorso: {X: 0, Y: 0},
			types.KeypointHead:  {X: 0, Y: 0.21},
			types.KeypointHip:   {X: 0, Y: -0.21},
			types.KeypointHand:  {X: 1.6632, Y: 0},
		}, 0, 20)

		// Ball closes in along X at half a meter per frame, then rests
		// 0.2m off the hand from the contact instant on.
		ball := &model.Track{ID: "ball", Kind: types.TrackBall, Team: types.TeamUnknown, SegmentID: "seg-1"}
		for f := int64(0); f <= 20; f++ {
			x := 30 + 1.6632 + 0.2
			if f < 10 {
				x += 0.5 * float64(10-f)
			}
			ball.Points = append(ball.Points, model.TrackPoint{
				FrameIndex: f,
				Pitch:      geometry.Point{X: x, Y: 20},
				Confidence: 0.8,
			})
		}

		Convey("When evaluating", func() {
			a, err := eval.Evaluate(ctx, handballEvent(10, "blocker"), cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)

			Convey("Then the verdict is handball with the ratio past natural as margin", func() {
				So(a.Verdict, ShouldEqual, types.VerdictYes)
				So(a.Margin, ShouldAlmostEqual, 0.3)
				So(a.MarginUnit, ShouldEqual, rules.UnitRatio)
			})

			Convey("Then the steps carry incoming speed, contact distance and extension", func() {
				So(len(a.Steps), ShouldEqual, 3)
				So(a.Steps[0].Measurement, ShouldAlmostEqual, 0.5)
				So(a.Steps[0].Unit, ShouldEqual, "m/frame")
				So(a.Steps[1].Measurement, ShouldAlmostEqual, 0.2)
				So(a.Steps[1].Reliability, ShouldAlmostEqual, 0.8)
				So(a.Steps[2].Measurement, ShouldAlmostEqual, 0.9)
				So(a.Steps[2].Reliability, ShouldAlmostEqual, 0.85*0.85)
			})

			Convey("Then the geometry marks the contact and the arm line", func() {
				So(len(a.Artifacts), ShouldEqual, 2)

				contact, ok := artifactByLabel(a.Artifacts, "contact_point")
				So(ok, ShouldBeTrue)
				So(contact.Kind, ShouldEqual, model.ArtifactPoint)
				So(contact.Points[0].X, ShouldAlmostEqual, 31.6632)

				arm, ok := artifactByLabel(a.Artifacts, "arm_extension")
				So(ok, ShouldBeTrue)
				So(arm.Kind, ShouldEqual, model.ArtifactLine)
				So(arm.Points[0].X, ShouldAlmostEqual, 30)
				So(arm.Points[1].X, ShouldAlmostEqual, 31.6632)
			})

			Convey("Then re-evaluating the same inputs yields the same assessment", func() {
				again, err := eval.Evaluate(ctx, handballEvent(10, "blocker"), cal, ball, []*model.Track{subject})
				So(err, ShouldBeNil)
				So(again, ShouldResemble, a)
			})
		})
	})

	Convey("Given a pose too upright to measure height from", t, func() {
		ctx := context.Background()
		eval := rules.NewHandball()
		cal := calibrationWithResidual(0.1)

		// Head and hip project almost on top of each other, so height falls
		// back to the average build. No torso keypoint either; the body
		// position anchors the centerline.
		subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
			types.KeypointHead: {X: 0, Y: 0.05},
			types.KeypointHip:  {X: 0, Y: -0.05},
			types.KeypointHand: {X: 1.62, Y: 0},
		}, 0, 20)
		ball := staticBall(30+1.62+0.2, 20, 21)

		Convey("When evaluating", func() {
			a, err := eval.Evaluate(ctx, handballEvent(10, "blocker"), cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)

			Convey("Then the fallback height rules and discounts the extension step", func() {
				So(a.Verdict, ShouldEqual, types.VerdictYes)
				So(a.Margin, ShouldAlmostEqual, 1.62/1.80-0.6)

				ext := a.Steps[len(a.Steps)-1]
				So(ext.Measurement, ShouldAlmostEqual, 0.9)
				So(ext.Reliability, ShouldAlmostEqual, 0.85*0.8)
			})
		})
	})
}

func TestHandballNaturalPosition(t *testing.T) {
	Convey("Given a ball striking an arm held close to the body", t, func() {
		ctx := context.Background()
		eval := rules.NewHandball()
		cal := calibrationWithResidual(0.1)

		subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
			types.KeypointTorso: {X: 0, Y: 0},
			types.KeypointHead:  {X: 0, Y: 0.21},
			types.KeypointHip:   {X: 0, Y: -0.21},
			types.KeypointHand:  {X: 0.5, Y: 0},
		}, 0, 20)
		ball := staticBall(30.7, 20, 21)

		Convey("When evaluating", func() {
			a, err := eval.Evaluate(ctx, handballEvent(10, "blocker"), cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)

			Convey("Then the verdict is no handball with the shortfall as margin", func() {
				So(a.Verdict, ShouldEqual, types.VerdictNo)
				So(a.Margin, ShouldAlmostEqual, 0.6-0.5/1.848)
				So(a.MarginUnit, ShouldEqual, rules.UnitRatio)
			})
		})
	})

	Convey("Given a ball taken on the foot next to a hanging arm", t, func() {
		ctx := context.Background()
		eval := rules.NewHandball()
		cal := calibrationWithResidual(0.1)

		subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
			types.KeypointTorso: {X: 0, Y: 0},
			types.KeypointFoot:  {X: 0.45, Y: 0},
			types.KeypointHand:  {X: -0.5, Y: 0},
		}, 0, 20)
		ball := staticBall(30.45, 20, 21)

		Convey("When evaluating", func() {
			a, err := eval.Evaluate(ctx, handballEvent(10, "blocker"), cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)

			Convey("Then the non-hand contact clears the player", func() {
				So(a.Verdict, ShouldEqual, types.VerdictNo)
				So(a.Margin, ShouldAlmostEqual, 0.95/0.45)

				contact, ok := artifactByLabel(a.Artifacts, "contact_point")
				So(ok, ShouldBeTrue)
				So(contact.Points[0].X, ShouldAlmostEqual, 30.45)

				_, arm := artifactByLabel(a.Artifacts, "arm_extension")
				So(arm, ShouldBeFalse)
			})
		})
	})
}

func TestHandballInconclusive(t *testing.T) {
	Convey("Given a handball event", t, func() {
		ctx := context.Background()
		eval := rules.NewHandball()
		cal := calibrationWithResidual(0.1)
		ev := handballEvent(10, "blocker")

		Convey("When arm and foot are equally near the ball", func() {
			subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
				types.KeypointTorso: {X: 0, Y: 0},
				types.KeypointFoot:  {X: 0.65, Y: 0},
				types.KeypointHand:  {X: 0.3, Y: 0},
			}, 0, 20)
			ball := staticBall(30.5, 20, 21)

			a, err := eval.Evaluate(ctx, ev, cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)

			Convey("Then the contacting part cannot be named", func() {
				So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
				So(a.Margin, ShouldAlmostEqual, 0.0)
				So(a.Steps[0].Claim, ShouldContainSubstring, "disambiguated")
				So(a.Steps[0].Measurement, ShouldAlmostEqual, 0.05)
			})
		})

		Convey("When no hand or elbow keypoint is tracked", func() {
			subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
				types.KeypointTorso: {X: 0, Y: 0},
				types.KeypointHead:  {X: 0, Y: 0.21},
			}, 0, 20)
			ball := staticBall(30.2, 20, 21)

			a, err := eval.Evaluate(ctx, ev, cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "no hand or elbow keypoint")
		})

		Convey("When the ball is out of contact range of every body part", func() {
			subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
				types.KeypointTorso: {X: 0, Y: 0},
				types.KeypointHand:  {X: 0.3, Y: 0},
			}, 0, 20)
			ball := staticBall(32.5, 20, 21)

			a, err := eval.Evaluate(ctx, ev, cal, ball, []*model.Track{subject})
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "contact range")
		})

		Convey("When the subject track is missing", func() {
			ball := staticBall(30.5, 20, 21)

			a, err := eval.Evaluate(ctx, ev, cal, ball, nil)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "player track unavailable")
		})

		Convey("When the segment is uncalibrated", func() {
			subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
				types.KeypointHand: {X: 0.3, Y: 0},
			}, 0, 20)
			ball := staticBall(30.5, 20, 21)

			a, err := eval.Evaluate(ctx, ev, nil, ball, []*model.Track{subject})
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "uncalibrated")
		})

		Convey("When the ball track does not cover the instant", func() {
			subject := poseTrack("blocker", 30, 20, map[types.Keypoint]geometry.Point{
				types.KeypointHand: {X: 0.3, Y: 0},
			}, 0, 20)

			a, err := eval.Evaluate(ctx, ev, cal, staticBall(30.5, 20, 5), []*model.Track{subject})
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "ball position unknown")

			a, err = eval.Evaluate(ctx, ev, cal, nil, []*model.Track{subject})
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "no ball track")
		})
	})
}

func TestHandballContracts(t *testing.T) {
	Convey("Given an offside event handed to the handball evaluator", t, func() {
		ctx := context.Background()

		Convey("When evaluating", func() {
			a, err := rules.NewHandball().Evaluate(ctx, offsideEvent(10, 20), calibrationWithResidual(0.1), nil, nil)

			Convey("Then the mismatch is an error, not a verdict", func() {
				So(a, ShouldBeNil)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, rules.ErrWrongEventType), ShouldBeTrue)
			})
		})
	})
}
