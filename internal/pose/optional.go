package pose

import (
	"math"
	"strconv"
)

// Float is a scalar that may be absent. The zero value is absent.
type Float struct {
	V     float64
	Valid bool
}

// Some returns a present Float. Non-finite inputs are treated as absent so
// that no NaN can leak into downstream arithmetic.
func Some(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float{}
	}
	return Float{V: v, Valid: true}
}

// None returns an absent Float.
func None() Float { return Float{} }

// String formats the value for tabular output; absent values are empty.
func (f Float) String() string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.V, 'g', -1, 64)
}

// Point2 is an image-plane observation. X and Y are meaningful only when
// Valid is set; both coordinates are present or absent together.
type Point2 struct {
	X, Y  float64
	Valid bool
}

// P2 returns a present Point2, or an absent one if either coordinate is not
// finite.
func P2(x, y float64) Point2 {
	if !finite(x) || !finite(y) {
		return Point2{}
	}
	return Point2{X: x, Y: y, Valid: true}
}

// Translate shifts a present point by (dx, dy).
func (p Point2) Translate(dx, dy float64) Point2 {
	if !p.Valid {
		return p
	}
	return P2(p.X+dx, p.Y+dy)
}

// Point3 is a reconstructed 3-D position, present or absent as a whole.
type Point3 struct {
	X, Y, Z float64
	Valid   bool
}

// P3 returns a present Point3, or an absent one if any coordinate is not
// finite.
func P3(x, y, z float64) Point3 {
	if !finite(x) || !finite(y) || !finite(z) {
		return Point3{}
	}
	return Point3{X: x, Y: y, Z: z, Valid: true}
}

// Coord returns coordinate i (0=x, 1=y, 2=z) as an optional scalar.
func (p Point3) Coord(i int) Float {
	if !p.Valid {
		return Float{}
	}
	switch i {
	case 0:
		return Some(p.X)
	case 1:
		return Some(p.Y)
	case 2:
		return Some(p.Z)
	}
	return Float{}
}

// Sub returns p-q, absent if either is absent.
func (p Point3) Sub(q Point3) Point3 {
	if !p.Valid || !q.Valid {
		return Point3{}
	}
	return P3(p.X-q.X, p.Y-q.Y, p.Z-q.Z)
}

// Dist returns the Euclidean distance between p and q, absent if either is
// absent.
func (p Point3) Dist(q Point3) Float {
	d := p.Sub(q)
	if !d.Valid {
		return Float{}
	}
	return Some(math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
