package align

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/pose3d/internal/config"
	"github.com/banshee-data/pose3d/internal/monitoring"
	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/banshee-data/pose3d/internal/triangulate"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateNorm is the length below which an axis direction is treated as
// zero.
const degenerateNorm = 1e-9

var (
	// ErrInsufficientData is returned when a landmark needed for the frame
	// is never observed, leaving its median undefined.
	ErrInsufficientData = errors.New("landmark never observed")

	// ErrDegenerateAxes is returned when the two axis directions are
	// parallel or zero length.
	ErrDegenerateAxes = errors.New("degenerate axes")
)

// Median returns the component-wise median position of landmark index l over
// all frames where it is present.
func Median(points [][]pose.Point3, l int) (r3.Vec, bool) {
	var xs, ys, zs []float64
	for f := range points {
		p := points[f][l]
		if !p.Valid {
			continue
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		zs = append(zs, p.Z)
	}
	if len(xs) == 0 {
		return r3.Vec{}, false
	}
	return r3.Vec{X: median(xs), Y: median(ys), Z: median(zs)}, true
}

// median sorts v in place and returns its middle value, averaging the two
// middle values for even lengths.
func median(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// reject returns u minus its projection onto v.
func reject(u, v r3.Vec) r3.Vec {
	return r3.Sub(u, r3.Scale(r3.Dot(u, v)/r3.Dot(v, v), v))
}

func landmarkMedian(points [][]pose.Point3, schema pose.Schema, name string) (r3.Vec, error) {
	l, ok := schema.Index(name)
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: %q", config.ErrUnknownLandmark, name)
	}
	m, ok := Median(points, l)
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: %q", ErrInsufficientData, name)
	}
	return m, nil
}

// Basis builds the 3x3 rotation whose rows are the unit target axes in world
// coordinates. Each configured axis is the difference of the median
// positions of its two landmarks; the second is orthogonalised against the
// first and the remaining axis is their cross product, taken in configured
// order.
func Basis(points [][]pose.Point3, schema pose.Schema, spec *config.FrameSpec) (*mat.Dense, error) {
	var diffs [2]r3.Vec
	for i, axis := range spec.Axes {
		from, err := landmarkMedian(points, schema, axis.From)
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", config.AxisName(axis.Label), err)
		}
		to, err := landmarkMedian(points, schema, axis.To)
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", config.AxisName(axis.Label), err)
		}
		diffs[i] = r3.Sub(to, from)
	}

	a := diffs[0]
	if r3.Norm(a) < degenerateNorm {
		return nil, fmt.Errorf("%w: axis %s has zero length", ErrDegenerateAxes, config.AxisName(spec.Axes[0].Label))
	}
	b := reject(diffs[1], a)
	if r3.Norm(b) < degenerateNorm {
		return nil, fmt.Errorf("%w: axis %s is parallel to axis %s", ErrDegenerateAxes,
			config.AxisName(spec.Axes[1].Label), config.AxisName(spec.Axes[0].Label))
	}
	derived := 3 - spec.Axes[0].Label - spec.Axes[1].Label
	// cross(first, second) whatever the labels: anti-cyclic pairs such as
	// x then z give det(m) = -1
	c := r3.Cross(a, b)

	rows := map[int]r3.Vec{
		spec.Axes[0].Label: r3.Unit(a),
		spec.Axes[1].Label: r3.Unit(b),
		derived:            r3.Unit(c),
	}
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		v := rows[i]
		m.SetRow(i, []float64{v.X, v.Y, v.Z})
	}
	return m, nil
}

func rotate(m *mat.Dense, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

func shift(points [][]pose.Point3, by r3.Vec, m *mat.Dense) [][]pose.Point3 {
	out := make([][]pose.Point3, len(points))
	for f := range points {
		out[f] = make([]pose.Point3, len(points[f]))
		for l, p := range points[f] {
			if !p.Valid {
				continue
			}
			v := r3.Sub(r3.Vec{X: p.X, Y: p.Y, Z: p.Z}, by)
			if m != nil {
				v = rotate(m, v)
			}
			out[f][l] = pose.P3(v.X, v.Y, v.Z)
		}
	}
	return out
}

// Apply re-expresses res in the frame described by spec: points are centred
// on the reference landmark's median, rotated into the configured basis and
// centred again so the reference median sits exactly at the origin. A nil
// spec returns res unchanged. Diagnostics are shared with res.
func Apply(res *triangulate.Result, spec *config.FrameSpec) (*triangulate.Result, error) {
	if spec == nil {
		return res, nil
	}
	if err := spec.Check(res.Schema); err != nil {
		return nil, err
	}

	m, err := Basis(res.Points, res.Schema, spec)
	if err != nil {
		return nil, err
	}
	center, err := landmarkMedian(res.Points, res.Schema, spec.Reference)
	if err != nil {
		return nil, fmt.Errorf("reference point: %w", err)
	}
	points := shift(res.Points, center, m)

	recenter, err := landmarkMedian(points, res.Schema, spec.Reference)
	if err != nil {
		return nil, fmt.Errorf("reference point: %w", err)
	}
	points = shift(points, recenter, nil)

	monitoring.L().Debug("aligned coordinate frame",
		zap.String("reference", spec.Reference),
		zap.Float64s("center", []float64{center.X, center.Y, center.Z}))

	out := *res
	out.Points = points
	return &out, nil
}
