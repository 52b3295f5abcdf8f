package geometry

import (
	"fmt"
	"math"
)

// Numerical guard rails for the projective solver.
const (
	// minCorrespondences is the minimum number of point pairs a
	// homography fit needs.
	minCorrespondences = 4
	// collinearTol is the perpendicular spread below which a point set is
	// treated as a single line, in the points' own units.
	collinearTol = 1e-6
	// pivotTol rejects Gaussian elimination pivots too small to divide by.
	pivotTol = 1e-12
	// wTol rejects projective points mapped onto the line at infinity.
	wTol = 1e-12
	// detTol rejects inversion of near-singular transforms.
	detTol = 1e-12
)

// Homography is a 3x3 projective transform between two planes.
type Homography struct {
	M [3][3]float64 `json:"m"`
}

// IdentityHomography returns the identity transform.
func IdentityHomography() Homography {
	return Homography{M: [3][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}}
}

// Apply maps p through the transform. The boolean is false when p projects
// onto the line at infinity.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h.M[2][0]*p.X + h.M[2][1]*p.Y + h.M[2][2]
	if math.Abs(w) < wTol {
		return Point{}, false
	}
	return Point{
		X: (h.M[0][0]*p.X + h.M[0][1]*p.Y + h.M[0][2]) / w,
		Y: (h.M[1][0]*p.X + h.M[1][1]*p.Y + h.M[1][2]) / w,
	}, true
}

// Mul returns the composition h∘g: applying the result equals applying g
// first, then h.
func (h Homography) Mul(g Homography) Homography {
	var out Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += h.M[i][k] * g.M[k][j]
			}
			out.M[i][j] = s
		}
	}
	return out
}

// Invert returns the inverse transform, or ErrSingularTransform when the
// determinant is too close to zero.
func (h Homography) Invert() (Homography, error) {
	m := h.M
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < detTol {
		return Homography{}, fmt.Errorf("%w: determinant %g", ErrSingularTransform, det)
	}

	adj := [3][3]float64{
		{
			m[1][1]*m[2][2] - m[1][2]*m[2][1],
			m[0][2]*m[2][1] - m[0][1]*m[2][2],
			m[0][1]*m[1][2] - m[0][2]*m[1][1],
		},
		{
			m[1][2]*m[2][0] - m[1][0]*m[2][2],
			m[0][0]*m[2][2] - m[0][2]*m[2][0],
			m[0][2]*m[1][0] - m[0][0]*m[1][2],
		},
		{
			m[1][0]*m[2][1] - m[1][1]*m[2][0],
			m[0][1]*m[2][0] - m[0][0]*m[2][1],
			m[0][0]*m[1][1] - m[0][1]*m[1][0],
		},
	}

	var inv Homography
	for i := range adj {
		for j := range adj[i] {
			inv.M[i][j] = adj[i][j] / det
		}
	}
	return inv, nil
}

// FitHomography computes the least-squares homography mapping src[i] to
// dst[i]. It needs at least four correspondences with neither side
// collinear. The fit fixes the bottom-right element to 1 and solves the
// eight remaining coefficients through the normal equations, with both
// point sets centered and scaled first to keep the system well conditioned.
func FitHomography(src, dst []Point) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, fmt.Errorf("%w: %d source, %d destination", ErrPointCountMismatch, len(src), len(dst))
	}
	if len(src) < minCorrespondences {
		return Homography{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, len(src), minCorrespondences)
	}
	if Collinear(src, collinearTol) || Collinear(dst, collinearTol) {
		return Homography{}, ErrDegeneratePoints
	}

	srcN, tSrc := normalizePoints(src)
	dstN, tDst := normalizePoints(dst)

	// Each correspondence (x,y)→(u,v) contributes two rows of A·h = b:
	//   [x y 1 0 0 0 -x·u -y·u] · h = u
	//   [0 0 0 x y 1 -x·v -y·v] · h = v
	var ata [8][8]float64
	var atb [8]float64
	for i := range srcN {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y
		rows := [2][9]float64{
			{x, y, 1, 0, 0, 0, -x * u, -y * u, u},
			{0, 0, 0, x, y, 1, -x * v, -y * v, v},
		}
		for _, r := range rows {
			for j := 0; j < 8; j++ {
				for k := 0; k < 8; k++ {
					ata[j][k] += r[j] * r[k]
				}
				atb[j] += r[j] * r[8]
			}
		}
	}

	coef, err := solveLinear8(ata, atb)
	if err != nil {
		return Homography{}, fmt.Errorf("homography fit: %w", err)
	}

	hn := Homography{M: [3][3]float64{
		{coef[0], coef[1], coef[2]},
		{coef[3], coef[4], coef[5]},
		{coef[6], coef[7], 1},
	}}

	// Undo the normalization: H = Tdst⁻¹ · Hn · Tsrc.
	tdInv, err := tDst.Invert()
	if err != nil {
		return Homography{}, fmt.Errorf("homography fit: %w", err)
	}
	return tdInv.Mul(hn).Mul(tSrc), nil
}

// ReprojectionRMS returns the root-mean-square distance between H(src[i])
// and dst[i]. It returns +Inf when any source point maps to infinity and
// NaN when the slices are empty or mismatched.
func ReprojectionRMS(h Homography, src, dst []Point) float64 {
	if len(src) == 0 || len(src) != len(dst) {
		return math.NaN()
	}
	var sum float64
	for i := range src {
		mapped, ok := h.Apply(src[i])
		if !ok {
			return math.Inf(1)
		}
		d := Dist(mapped, dst[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(src)))
}

// normalizePoints centers pts on their centroid and scales them so the
// mean distance from the origin is sqrt(2). It returns the transformed
// points and the similarity transform that was applied.
func normalizePoints(pts []Point) ([]Point, Homography) {
	c := Centroid(pts)
	var mean float64
	for _, p := range pts {
		mean += Dist(p, c)
	}
	mean /= float64(len(pts))

	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}

	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: (p.X - c.X) * s, Y: (p.Y - c.Y) * s}
	}
	t := Homography{M: [3][3]float64{
		{s, 0, -s * c.X},
		{0, s, -s * c.Y},
		{0, 0, 1},
	}}
	return out, t
}

// solveLinear8 solves the 8x8 system a·x = b by Gaussian elimination with
// partial pivoting.
func solveLinear8(a [8][8]float64, b [8]float64) ([8]float64, error) {
	const n = 8
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < pivotTol {
			return [8]float64{}, fmt.Errorf("%w: pivot column %d", ErrDegeneratePoints, col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[r][k] -= f * a[col][k]
			}
			b[r] -= f * b[col]
		}
	}

	var x [8]float64
	for row := n - 1; row >= 0; row-- {
		s := b[row]
		for k := row + 1; k < n; k++ {
			s -= a[row][k] * x[k]
		}
		x[row] = s / a[row][row]
	}
	return x, nil
}
