package rules_test

import (
	"context"
	"errors"
	"testing"

	geometry "github.com/offsidezero/varcore/internal/domain/geometry"
	model "github.com/offsidezero/varcore/internal/domain/model"
	rules "github.com/offsidezero/varcore/internal/domain/rules"
	types "github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func calibrationWithResidual(r float64) *model.Calibration {
	return &model.Calibration{
		SegmentID:  "seg-1",
		Homography: geometry.IdentityHomography(),
		Inverse:    geometry.IdentityHomography(),
		ValidRange: types.FrameRange{Start: 0, End: 999},
		Residual:   r,
	}
}

// staticTrack pins a player at one pitch position for frames from..to.
func staticTrack(id string, team types.Team, x, y float64, from, to int64) *model.Track {
	tr := &model.Track{ID: id, Kind: types.TrackPlayer, Team: team, SegmentID: "seg-1"}
	for f := from; f <= to; f++ {
		tr.Points = append(tr.Points, model.TrackPoint{
			FrameIndex: f,
			Pitch:      geometry.Point{X: x, Y: y},
			Confidence: 0.9,
		})
	}
	return tr
}

// ballFromY builds the ball track along a fixed x with one Y value per
// frame, starting at frame zero.
func ballFromY(x float64, ys []float64) *model.Track {
	tr := &model.Track{ID: "ball", Kind: types.TrackBall, Team: types.TeamUnknown, SegmentID: "seg-1"}
	for i, y := range ys {
		tr.Points = append(tr.Points, model.TrackPoint{
			FrameIndex: int64(i),
			Pitch:      geometry.Point{X: x, Y: y},
			Confidence: 0.8,
		})
	}
	return tr
}

func staticBall(x, y float64, frames int) *model.Track {
	ys := make([]float64, frames)
	for i := range ys {
		ys[i] = y
	}
	return ballFromY(x, ys)
}

func offsideEvent(instant, end int64) *model.DecisionEvent {
	return &model.DecisionEvent{
		ID:           "ev-off-1",
		Type:         types.EventOffside,
		InstantFrame: instant,
		Window:       types.FrameRange{Start: 0, End: end},
		SegmentID:    "seg-1",
	}
}

func artifactByLabel(arts []model.Artifact, label string) (model.Artifact, bool) {
	for _, art := range arts {
		if art.Label == label {
			return art, true
		}
	}
	return model.Artifact{}, false
}

func TestOffsideEvaluation(t *testing.T) {
	Convey("Given defenders at 10 and 15 meters, an attacker at 20 and the ball at 12", t, func() {
		ctx := context.Background()
		eval := rules.NewOffside()
		cal := calibrationWithResidual(0.1)
		ball := staticBall(30, 12, 21)
		players := []*model.Track{
			staticTrack("def-a", types.TeamDefending, 30, 10, 0, 20),
			staticTrack("def-b", types.TeamDefending, 35, 15, 0, 20),
			staticTrack("att-a", types.TeamAttacking, 30, 20, 0, 20),
		}
		ev := offsideEvent(10, 20)

		Convey("When evaluating", func() {
			a, err := eval.Evaluate(ctx, ev, cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then the verdict is offside with the distance past the line as margin", func() {
				So(a.Verdict, ShouldEqual, types.VerdictYes)
				So(a.Margin, ShouldAlmostEqual, 5.0)
				So(a.MarginUnit, ShouldEqual, rules.UnitMeters)
				So(a.EventID, ShouldEqual, "ev-off-1")
			})

			Convey("Then the line sits on the second defending player", func() {
				So(len(a.Steps), ShouldEqual, 3)
				So(a.Steps[0].Measurement, ShouldAlmostEqual, 15.0)
				So(a.Steps[1].Measurement, ShouldAlmostEqual, 12.0)
				So(a.Steps[2].Measurement, ShouldAlmostEqual, 5.0)
			})

			Convey("Then the geometry carries the line, the ball and the flagged attacker", func() {
				So(len(a.Artifacts), ShouldEqual, 3)

				line, ok := artifactByLabel(a.Artifacts, "offside_line")
				So(ok, ShouldBeTrue)
				So(line.Kind, ShouldEqual, model.ArtifactLine)
				So(line.Points[0].Y, ShouldAlmostEqual, 15.0)
				So(line.Points[1].Y, ShouldAlmostEqual, 15.0)
				So(line.Points[1].X, ShouldAlmostEqual, geometry.PitchLength)

				flagged, ok := artifactByLabel(a.Artifacts, "offside_player")
				So(ok, ShouldBeTrue)
				So(flagged.Points[0], ShouldResemble, geometry.Point{X: 30, Y: 20})
			})

			Convey("Then re-evaluating the same inputs yields the same assessment", func() {
				again, err := eval.Evaluate(ctx, ev, cal, ball, players)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, a)
			})
		})
	})

	Convey("Given an attacker reached by the ball only later in the window", t, func() {
		ctx := context.Background()
		eval := rules.NewOffside()
		cal := calibrationWithResidual(0.1)

		ys := make([]float64, 21)
		for f := 0; f <= 10; f++ {
			ys[f] = 12
		}
		for f := 11; f <= 20; f++ {
			ys[f] = 12 + 1.4*float64(f-10)
		}
		ball := ballFromY(30, ys)
		players := []*model.Track{
			staticTrack("def-a", types.TeamDefending, 30, 10, 0, 20),
			staticTrack("def-b", types.TeamDefending, 35, 15, 0, 20),
			staticTrack("striker", types.TeamAttacking, 30, 26, 0, 20),
		}

		Convey("When the window runs past the instant", func() {
			a, err := eval.Evaluate(ctx, offsideEvent(10, 20), cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then the attacker counts as involved and the verdict is offside", func() {
				So(a.Verdict, ShouldEqual, types.VerdictYes)
				So(a.Margin, ShouldAlmostEqual, 11.0)
			})
		})

		Convey("When the window stops at the instant", func() {
			a, err := eval.Evaluate(ctx, offsideEvent(10, 10), cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then the attacker never comes close enough and the verdict is onside", func() {
				So(a.Verdict, ShouldEqual, types.VerdictNo)
				So(a.Margin, ShouldAlmostEqual, 5.0)
			})
		})
	})

	Convey("Given play running toward negative Y", t, func() {
		ctx := context.Background()
		eval := rules.NewOffside(rules.WithPlayDirection(types.PlayTowardNegativeY))
		cal := calibrationWithResidual(0.1)
		ball := staticBall(30, 56, 21)
		players := []*model.Track{
			staticTrack("def-a", types.TeamDefending, 30, 58, 0, 20),
			staticTrack("def-b", types.TeamDefending, 35, 53, 0, 20),
			staticTrack("att-a", types.TeamAttacking, 30, 48, 0, 20),
		}

		Convey("When evaluating", func() {
			a, err := eval.Evaluate(ctx, offsideEvent(10, 20), cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then geometry mirrors cleanly", func() {
				So(a.Verdict, ShouldEqual, types.VerdictYes)
				So(a.Margin, ShouldAlmostEqual, 5.0)

				line, ok := artifactByLabel(a.Artifacts, "offside_line")
				So(ok, ShouldBeTrue)
				So(line.Points[0].Y, ShouldAlmostEqual, 53.0)
			})
		})
	})
}

func TestOffsideOnside(t *testing.T) {
	Convey("Given defenders at 10 and 15 meters", t, func() {
		ctx := context.Background()
		eval := rules.NewOffside()
		cal := calibrationWithResidual(0.1)
		defenders := []*model.Track{
			staticTrack("def-a", types.TeamDefending, 30, 10, 0, 20),
			staticTrack("def-b", types.TeamDefending, 35, 15, 0, 20),
		}

		Convey("When the attacker is exactly level with the line", func() {
			ball := staticBall(30, 12, 21)
			players := append(defenders, staticTrack("att-a", types.TeamAttacking, 30, 15, 0, 20))
			a, err := eval.Evaluate(ctx, offsideEvent(10, 20), cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then level is onside with zero margin", func() {
				So(a.Verdict, ShouldEqual, types.VerdictNo)
				So(a.Margin, ShouldAlmostEqual, 0.0)

				_, flagged := artifactByLabel(a.Artifacts, "offside_player")
				So(flagged, ShouldBeFalse)
			})
		})

		Convey("When the attacker is past the line but behind the ball", func() {
			ball := staticBall(30, 22, 21)
			players := append(defenders, staticTrack("att-a", types.TeamAttacking, 30, 20, 0, 20))
			a, err := eval.Evaluate(ctx, offsideEvent(10, 20), cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then the ball is the binding boundary", func() {
				So(a.Verdict, ShouldEqual, types.VerdictNo)
				So(a.Margin, ShouldAlmostEqual, 2.0)
			})
		})

		Convey("When an offside-positioned attacker never nears the ball", func() {
			ball := staticBall(30, 12, 21)
			players := append(defenders, staticTrack("att-a", types.TeamAttacking, 30, 22, 0, 20))
			a, err := eval.Evaluate(ctx, offsideEvent(10, 20), cal, ball, players)
			So(err, ShouldBeNil)

			Convey("Then the position alone does not make the verdict", func() {
				So(a.Verdict, ShouldEqual, types.VerdictNo)
				So(a.Margin, ShouldAlmostEqual, 1.0)

				_, flagged := artifactByLabel(a.Artifacts, "offside_player")
				So(flagged, ShouldBeTrue)
			})
		})
	})
}

func TestOffsideInconclusive(t *testing.T) {
	Convey("Given a well-formed offside event", t, func() {
		ctx := context.Background()
		ev := offsideEvent(10, 20)
		ball := staticBall(30, 12, 21)
		defenders := []*model.Track{
			staticTrack("def-a", types.TeamDefending, 30, 10, 0, 20),
			staticTrack("def-b", types.TeamDefending, 35, 15, 0, 20),
		}
		attacker := staticTrack("att-a", types.TeamAttacking, 30, 20, 0, 20)
		players := append(append([]*model.Track{}, defenders...), attacker)

		Convey("When the segment is uncalibrated", func() {
			a, err := rules.NewOffside().Evaluate(ctx, ev, nil, ball, players)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Margin, ShouldAlmostEqual, 0.0)
			So(a.Steps[0].Claim, ShouldContainSubstring, "uncalibrated")
		})

		Convey("When the calibration residual is above decision grade", func() {
			a, err := rules.NewOffside().Evaluate(ctx, ev, calibrationWithResidual(0.6), ball, players)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "residual")
			So(a.Steps[0].Measurement, ShouldAlmostEqual, 0.6)
		})

		Convey("When only one defending player is tracked", func() {
			short := []*model.Track{defenders[0], attacker}
			a, err := rules.NewOffside().Evaluate(ctx, ev, calibrationWithResidual(0.1), ball, short)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "fewer than two defending")
			So(a.Steps[0].Measurement, ShouldAlmostEqual, 1.0)
		})

		Convey("When excluding the keeper leaves too few defenders", func() {
			a, err := rules.NewOffside(rules.WithKeeperExcluded()).Evaluate(ctx, ev, calibrationWithResidual(0.1), ball, players)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Measurement, ShouldAlmostEqual, 1.0)
		})

		Convey("When no ball track exists", func() {
			a, err := rules.NewOffside().Evaluate(ctx, ev, calibrationWithResidual(0.1), nil, players)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "no ball track")
		})

		Convey("When the ball track does not cover the instant", func() {
			a, err := rules.NewOffside().Evaluate(ctx, ev, calibrationWithResidual(0.1), staticBall(30, 12, 5), players)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "ball position unknown")
		})

		Convey("When no attacking players are tracked", func() {
			a, err := rules.NewOffside().Evaluate(ctx, ev, calibrationWithResidual(0.1), ball, defenders)
			So(err, ShouldBeNil)
			So(a.Verdict, ShouldEqual, types.VerdictInconclusive)
			So(a.Steps[0].Claim, ShouldContainSubstring, "no attacking players")
		})
	})
}

func TestOffsideContracts(t *testing.T) {
	Convey("Given a handball event handed to the offside evaluator", t, func() {
		ctx := context.Background()
		ev := &model.DecisionEvent{
			ID:           "ev-hb-1",
			Type:         types.EventHandball,
			InstantFrame: 10,
			Window:       types.FrameRange{Start: 0, End: 20},
			SegmentID:    "seg-1",
		}

		Convey("When evaluating", func() {
			a, err := rules.NewOffside().Evaluate(ctx, ev, calibrationWithResidual(0.1), nil, nil)

			Convey("Then the mismatch is an error, not a verdict", func() {
				So(a, ShouldBeNil)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, rules.ErrWrongEventType), ShouldBeTrue)
			})
		})
	})
}
