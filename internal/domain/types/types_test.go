package types_test

import (
	"testing"

	types "github.com/offsidezero/varcore/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFrameRange(t *testing.T) {
	Convey("Given a FrameRange", t, func() {
		r := types.FrameRange{Start: 100, End: 200}

		Convey("When checking containment", func() {
			Convey("Then frames inside the range are contained", func() {
				So(r.Contains(100), ShouldBeTrue)
				So(r.Contains(150), ShouldBeTrue)
				So(r.Contains(200), ShouldBeTrue)
			})

			Convey("Then frames outside the range are not contained", func() {
				So(r.Contains(99), ShouldBeFalse)
				So(r.Contains(201), ShouldBeFalse)
				So(r.Contains(-1), ShouldBeFalse)
			})
		})

		Convey("When checking overlap", func() {
			Convey("Then a range sharing frames overlaps", func() {
				So(r.Overlaps(types.FrameRange{Start: 150, End: 250}), ShouldBeTrue)
				So(r.Overlaps(types.FrameRange{Start: 200, End: 300}), ShouldBeTrue)
				So(r.Overlaps(types.FrameRange{Start: 0, End: 100}), ShouldBeTrue)
				So(r.Overlaps(types.FrameRange{Start: 120, End: 130}), ShouldBeTrue)
			})

			Convey("Then a disjoint range does not overlap", func() {
				So(r.Overlaps(types.FrameRange{Start: 201, End: 300}), ShouldBeFalse)
				So(r.Overlaps(types.FrameRange{Start: 0, End: 99}), ShouldBeFalse)
			})
		})

		Convey("When computing the length", func() {
			Convey("Then it counts frames inclusively", func() {
				So(r.Len(), ShouldEqual, 101)
				So(types.FrameRange{Start: 5, End: 5}.Len(), ShouldEqual, 1)
			})

			Convey("Then an inverted range has zero length", func() {
				So(types.FrameRange{Start: 10, End: 5}.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestPlayDirection(t *testing.T) {
	Convey("Given play directions", t, func() {
		Convey("When taking the advance sign", func() {
			Convey("Then positive Y yields +1", func() {
				So(types.PlayTowardPositiveY.Sign(), ShouldEqual, 1.0)
			})

			Convey("Then negative Y yields -1", func() {
				So(types.PlayTowardNegativeY.Sign(), ShouldEqual, -1.0)
			})

			Convey("Then the zero value defaults to +1", func() {
				var d types.PlayDirection
				So(d.Sign(), ShouldEqual, 1.0)
			})
		})
	})
}

func TestVocabulary(t *testing.T) {
	Convey("Given the shared enums", t, func() {
		Convey("When inspecting team values", func() {
			Convey("Then they match the provider wire vocabulary", func() {
				So(string(types.TeamAttacking), ShouldEqual, "attacking")
				So(string(types.TeamDefending), ShouldEqual, "defending")
				So(string(types.TeamUnknown), ShouldEqual, "unknown")
			})
		})

		Convey("When inspecting verdicts", func() {
			Convey("Then the three outcomes are distinct", func() {
				So(types.VerdictYes, ShouldNotEqual, types.VerdictNo)
				So(types.VerdictYes, ShouldNotEqual, types.VerdictInconclusive)
				So(types.VerdictNo, ShouldNotEqual, types.VerdictInconclusive)
			})
		})

		Convey("When inspecting event types", func() {
			Convey("Then offside and handball are supported", func() {
				So(string(types.EventOffside), ShouldEqual, "offside")
				So(string(types.EventHandball), ShouldEqual, "handball")
			})
		})

		Convey("When inspecting track kinds", func() {
			Convey("Then player and ball are distinct", func() {
				So(types.TrackPlayer, ShouldNotEqual, types.TrackBall)
			})
		})
	})
}
