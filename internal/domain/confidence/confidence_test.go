package confidence_test

import (
	"context"
	"math"
	"testing"

	confidence "github.com/offsidezero/varcore/internal/domain/confidence"
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

func crispCalibration() *model.Calibration {
	return &model.Calibration{
		SegmentID:  "seg-1",
		Homography: geometry.IdentityHomography(),
		Inverse:    geometry.IdentityHomography(),
		ValidRange: types.FrameRange{Start: 0, End: 999},
	}
}

func confTrack(id string, conf float64) *model.Track {
	tr := &model.Track{ID: id, Kind: types.TrackPlayer, Team: types.TeamAttacking, SegmentID: "seg-1"}
	for f := int64(0); f < 10; f++ {
		tr.Points = append(tr.Points, model.TrackPoint{
			FrameIndex: f,
			Pitch:      geometry.Point{X: 30, Y: float64(f)},
			Confidence: conf,
		})
	}
	return tr
}

func offsideAssessment(margin, stepReliability float64) *rules.Assessment {
	return &rules.Assessment{
		EventID:    "ev-1",
		Type:       types.EventOffside,
		Verdict:    types.VerdictYes,
		Margin:     margin,
		MarginUnit: rules.UnitMeters,
		Steps: []model.ExplanationStep{{
			Claim:       "offside line set by the second defending player",
			Measurement: 15,
			Unit:        rules.UnitMeters,
			Weight:      1,
			Reliability: stepReliability,
		}},
		Artifacts: []model.Artifact{{
			Kind:   model.ArtifactLine,
			Label:  "offside_line",
			Points: []geometry.Point{{X: 0, Y: 15}, {X: geometry.PitchLength, Y: 15}},
		}},
	}
}

func TestComposerMapping(t *testing.T) {
	Convey("Given a crisp calibration and fully confident tracks", t, func() {
		ctx := context.Background()
		comp := confidence.NewComposer()
		cal := crispCalibration()
		tracks := []*model.Track{confTrack("a", 1), confTrack("b", 1)}

		Convey("When the margin sits exactly on the boundary", func() {
			r := comp.Compose(ctx, offsideAssessment(0, 1), cal, tracks)

			Convey("Then confidence lands on the coin flip", func() {
				So(r.Confidence, ShouldAlmostEqual, 0.5)
			})
		})

		Convey("When margins grow", func() {
			margins := []float64{0, 0.25, 1, 5}
			prev := -1.0
			for _, m := range margins {
				r := comp.Compose(ctx, offsideAssessment(m, 1), cal, tracks)
				So(r.Confidence, ShouldBeGreaterThan, prev)
				So(r.Confidence, ShouldBeLessThan, 1)
				prev = r.Confidence
			}
		})

		Convey("When composing a ruling", func() {
			a := offsideAssessment(5, 1)
			r := comp.Compose(ctx, a, cal, tracks)

			Convey("Then identity, verdict and geometry carry over untouched", func() {
				So(r.EventID, ShouldEqual, "ev-1")
				So(r.Type, ShouldEqual, types.EventOffside)
				So(r.Verdict, ShouldEqual, types.VerdictYes)
				So(r.Geometry, ShouldResemble, a.Artifacts)
			})

			Convey("Then composing the same assessment twice matches bit for bit", func() {
				again := comp.Compose(ctx, offsideAssessment(5, 1), cal, tracks)
				So(again, ShouldResemble, r)
			})
		})
	})
}

func TestComposerCausalOrder(t *testing.T) {
	Convey("Given any assessment", t, func() {
		ctx := context.Background()
		comp := confidence.NewComposer()
		r := comp.Compose(ctx, offsideAssessment(2, 0.9), crispCalibration(), []*model.Track{confTrack("a", 0.9)})

		Convey("Then the explanation runs calibration, tracking, rule, verdict", func() {
			So(len(r.Explanation), ShouldEqual, 4)
			So(r.Explanation[0].Claim, ShouldContainSubstring, "calibration")
			So(r.Explanation[1].Claim, ShouldContainSubstring, "tracking")
			So(r.Explanation[2].Claim, ShouldContainSubstring, "offside line")
			So(r.Explanation[3].Claim, ShouldContainSubstring, "verdict yes")
		})

		Convey("Then the verdict step mirrors the final confidence", func() {
			last := r.Explanation[len(r.Explanation)-1]
			So(last.Reliability, ShouldAlmostEqual, r.Confidence)
			So(last.Measurement, ShouldAlmostEqual, 2)
		})
	})
}

func TestComposerWeakestLink(t *testing.T) {
	Convey("Given a huge margin behind one shaky step", t, func() {
		ctx := context.Background()
		comp := confidence.NewComposer()
		cal := crispCalibration()
		tracks := []*model.Track{confTrack("a", 1)}

		Convey("When composing", func() {
			r := comp.Compose(ctx, offsideAssessment(50, 0.3), cal, tracks)

			Convey("Then the shakiest step caps the confidence", func() {
				So(r.Confidence, ShouldAlmostEqual, 0.3)
				for _, s := range r.Explanation {
					So(r.Confidence, ShouldBeLessThanOrEqualTo, s.Reliability)
				}
			})
		})
	})

	Convey("Given calibration and tracking uncertainty", t, func() {
		ctx := context.Background()
		comp := confidence.NewComposer()
		cal := crispCalibration()
		cal.Residual = 0.2
		tracks := []*model.Track{confTrack("a", 0.9)}

		Convey("When composing a clear-margin assessment", func() {
			r := comp.Compose(ctx, offsideAssessment(5, 1), cal, tracks)

			Convey("Then both discounts multiply into the confidence", func() {
				So(r.Confidence, ShouldAlmostEqual, math.Exp(-0.2)*0.9, 0.001)
				So(r.Confidence, ShouldBeLessThan, math.Exp(-0.2))
				So(r.Confidence, ShouldBeLessThan, 0.9)
			})
		})
	})
}

func TestComposerDegraded(t *testing.T) {
	Convey("Given an uncalibrated segment", t, func() {
		ctx := context.Background()
		comp := confidence.NewComposer()
		a := &rules.Assessment{
			EventID:    "ev-1",
			Type:       types.EventOffside,
			Verdict:    types.VerdictInconclusive,
			MarginUnit: rules.UnitMeters,
			Steps: []model.ExplanationStep{{
				Claim:       "segment is uncalibrated, offside geometry unavailable",
				Unit:        rules.UnitMeters,
				Weight:      1,
				Reliability: 1,
			}},
		}

		Convey("When composing without a calibration", func() {
			r := comp.Compose(ctx, a, nil, []*model.Track{confTrack("a", 0.9)})

			Convey("Then nothing supports any confidence", func() {
				So(r.Verdict, ShouldEqual, types.VerdictInconclusive)
				So(r.Confidence, ShouldAlmostEqual, 0.0)
				So(r.Explanation[0].Reliability, ShouldAlmostEqual, 0.0)
			})
		})

		Convey("When composing without any referenced tracks", func() {
			r := comp.Compose(ctx, a, crispCalibration(), nil)

			Convey("Then the tracking discount zeroes the confidence", func() {
				So(r.Confidence, ShouldAlmostEqual, 0.0)
				So(r.Explanation[1].Reliability, ShouldAlmostEqual, 0.0)
			})
		})
	})
}
