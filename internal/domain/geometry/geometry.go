// Package geometry provides planar points and the projective transform
// between image pixel coordinates and pitch coordinates.
package geometry

import "math"

// Pitch template dimensions in meters. Pitch coordinates place the origin
// on a corner flag with X along the touchline and Y along the goal line.
const (
	PitchLength = 105.0
	PitchWidth  = 68.0
)

// Point is a planar coordinate: pixels in image space, meters in pitch space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Lerp linearly interpolates between a and b; t=0 yields a, t=1 yields b.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// Centroid returns the mean of pts. The zero Point is returned for an
// empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}
}

// Collinear reports whether all points lie within tol of a single line.
// tol is a distance in the points' own units. Fewer than three points are
// always collinear.
func Collinear(pts []Point, tol float64) bool {
	if len(pts) < 3 {
		return true
	}
	c := Centroid(pts)
	var sxx, sxy, syy float64
	for _, p := range pts {
		dx, dy := p.X-c.X, p.Y-c.Y
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	n := float64(len(pts))
	sxx, sxy, syy = sxx/n, sxy/n, syy/n

	// The smallest eigenvalue of the 2x2 covariance matrix is the variance
	// perpendicular to the best-fit line through the points.
	tr := sxx + syy
	det := sxx*syy - sxy*sxy
	disc := math.Sqrt(math.Max(0, tr*tr/4-det))
	lambdaMin := tr/2 - disc
	return math.Sqrt(math.Max(0, lambdaMin)) <= tol
}
