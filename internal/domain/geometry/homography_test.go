package geometry_test

import (
	"errors"
	"math"
	"testing"

	geometry "github.com/offsidezero/varcore/internal/domain/geometry"
	. "github.com/smartystreets/goconvey/convey"
)

// groundTruth is a mildly perspective transform used to synthesize exact
// correspondences.
func groundTruth() geometry.Homography {
	return geometry.Homography{M: [3][3]float64{
		{2.0, 0.1, 30},
		{0.05, 1.8, -20},
		{0.0005, 0.0003, 1},
	}}
}

func mapThrough(h geometry.Homography, pts []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		m, ok := h.Apply(p)
		if !ok {
			panic("test point mapped to infinity")
		}
		out[i] = m
	}
	return out
}

func TestFitHomography(t *testing.T) {
	Convey("Given exact correspondences from a known transform", t, func() {
		truth := groundTruth()
		src := []geometry.Point{
			{X: 0, Y: 0}, {X: 1280, Y: 0}, {X: 1280, Y: 720}, {X: 0, Y: 720},
			{X: 640, Y: 360}, {X: 200, Y: 500},
		}
		dst := mapThrough(truth, src)

		Convey("When fitting", func() {
			h, err := geometry.FitHomography(src, dst)

			Convey("Then the fit succeeds and reprojects exactly", func() {
				So(err, ShouldBeNil)
				So(geometry.ReprojectionRMS(h, src, dst), ShouldBeLessThan, 1e-6)
			})

			Convey("Then unseen points map like the ground truth", func() {
				So(err, ShouldBeNil)
				probe := geometry.Point{X: 333, Y: 123}
				want, _ := truth.Apply(probe)
				got, ok := h.Apply(probe)
				So(ok, ShouldBeTrue)
				So(got.X, ShouldAlmostEqual, want.X, 1e-6)
				So(got.Y, ShouldAlmostEqual, want.Y, 1e-6)
			})
		})

		Convey("When fitting with only the four minimum points", func() {
			h, err := geometry.FitHomography(src[:4], dst[:4])

			Convey("Then the exact solution is recovered", func() {
				So(err, ShouldBeNil)
				So(geometry.ReprojectionRMS(h, src[:4], dst[:4]), ShouldBeLessThan, 1e-6)
			})
		})
	})

	Convey("Given degenerate input", t, func() {
		Convey("When fewer than four correspondences are supplied", func() {
			src := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
			_, err := geometry.FitHomography(src, src)

			Convey("Then the fit is rejected", func() {
				So(errors.Is(err, geometry.ErrInsufficientPoints), ShouldBeTrue)
			})
		})

		Convey("When the point counts differ", func() {
			src := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
			_, err := geometry.FitHomography(src, src[:3])

			Convey("Then the fit is rejected", func() {
				So(errors.Is(err, geometry.ErrPointCountMismatch), ShouldBeTrue)
			})
		})

		Convey("When all source points are collinear", func() {
			src := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
			dst := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 1}}
			_, err := geometry.FitHomography(src, dst)

			Convey("Then the fit reports degeneracy", func() {
				So(errors.Is(err, geometry.ErrDegeneratePoints), ShouldBeTrue)
			})
		})
	})
}

func TestHomographyInvert(t *testing.T) {
	Convey("Given a fitted transform", t, func() {
		truth := groundTruth()

		Convey("When inverting", func() {
			inv, err := truth.Invert()

			Convey("Then applying both directions round-trips", func() {
				So(err, ShouldBeNil)
				for _, p := range []geometry.Point{{X: 12, Y: 34}, {X: 900, Y: 700}, {X: 0, Y: 0}} {
					fwd, ok := truth.Apply(p)
					So(ok, ShouldBeTrue)
					back, ok := inv.Apply(fwd)
					So(ok, ShouldBeTrue)
					So(back.X, ShouldAlmostEqual, p.X, 1e-9)
					So(back.Y, ShouldAlmostEqual, p.Y, 1e-9)
				}
			})
		})

		Convey("When inverting a singular transform", func() {
			var zero geometry.Homography
			_, err := zero.Invert()

			Convey("Then the inversion is rejected", func() {
				So(errors.Is(err, geometry.ErrSingularTransform), ShouldBeTrue)
			})
		})
	})
}

func TestHomographyApply(t *testing.T) {
	Convey("Given the identity transform", t, func() {
		id := geometry.IdentityHomography()

		Convey("When applying", func() {
			p := geometry.Point{X: 52.5, Y: 34}
			got, ok := id.Apply(p)

			Convey("Then points are unchanged", func() {
				So(ok, ShouldBeTrue)
				So(got, ShouldResemble, p)
			})
		})
	})

	Convey("Given a transform with a vanishing line", t, func() {
		h := geometry.Homography{M: [3][3]float64{
			{1, 0, 0},
			{0, 1, 0},
			{0, -1, 1},
		}}

		Convey("When a point sits on the vanishing line", func() {
			_, ok := h.Apply(geometry.Point{X: 5, Y: 1})

			Convey("Then the mapping reports failure", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestReprojectionRMS(t *testing.T) {
	Convey("Given reprojection measurements", t, func() {
		id := geometry.IdentityHomography()

		Convey("When points map onto themselves", func() {
			pts := []geometry.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}

			Convey("Then the error is zero", func() {
				So(geometry.ReprojectionRMS(id, pts, pts), ShouldEqual, 0)
			})
		})

		Convey("When every point is off by one unit", func() {
			src := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}
			dst := []geometry.Point{{X: 1, Y: 0}, {X: 11, Y: 0}}

			Convey("Then the RMS is one unit", func() {
				So(geometry.ReprojectionRMS(id, src, dst), ShouldAlmostEqual, 1.0)
			})
		})

		Convey("When the slices are empty", func() {
			Convey("Then the result is NaN", func() {
				So(math.IsNaN(geometry.ReprojectionRMS(id, nil, nil)), ShouldBeTrue)
			})
		})
	})
}
