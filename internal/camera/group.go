package camera

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/banshee-data/pose3d/internal/triangulate"
	"gonum.org/v1/gonum/mat"
)

// ErrCameraMismatch is returned when the calibrated cameras do not match the
// cameras that produced detections.
var ErrCameraMismatch = errors.New("camera set mismatch")

// DefaultRansacThreshold is the reprojection error, in pixels, above which a
// view is an outlier in robust triangulation.
const DefaultRansacThreshold = 50.0

// Group is an ordered set of calibrated cameras. It implements
// triangulate.Provider.
type Group struct {
	Cameras []*Camera

	// RansacThreshold is the inlier cutoff for TriangulateRobust. Zero
	// selects DefaultRansacThreshold.
	RansacThreshold float64
}

var _ triangulate.Provider = (*Group)(nil)

// NewGroup builds a Group from cameras, rejecting duplicate names.
func NewGroup(cams []*Camera) (*Group, error) {
	seen := make(map[string]bool, len(cams))
	for _, c := range cams {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate camera %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Group{Cameras: cams}, nil
}

// CameraNames returns the camera names in group order.
func (g *Group) CameraNames() []string {
	names := make([]string, len(g.Cameras))
	for i, c := range g.Cameras {
		names[i] = c.Name
	}
	return names
}

// Select returns a Group whose cameras are exactly names, in that order.
// Count and naming must match the calibrated set.
func (g *Group) Select(names []string) (*Group, error) {
	if len(names) != len(g.Cameras) {
		return nil, fmt.Errorf("%w: %d detection cameras %v vs %d calibrated %v",
			ErrCameraMismatch, len(names), names, len(g.Cameras), g.CameraNames())
	}
	out := &Group{Cameras: make([]*Camera, len(names)), RansacThreshold: g.RansacThreshold}
	for i, name := range names {
		idx := slices.IndexFunc(g.Cameras, func(c *Camera) bool { return c.Name == name })
		if idx < 0 {
			return nil, fmt.Errorf("%w: camera %q not in calibration %v", ErrCameraMismatch, name, g.CameraNames())
		}
		out.Cameras[i] = g.Cameras[idx]
	}
	return out, nil
}

func (g *Group) checkObservations(obs triangulate.Observations) error {
	if len(obs) != len(g.Cameras) {
		return fmt.Errorf("%w: %d observation rows for %d cameras", ErrCameraMismatch, len(obs), len(g.Cameras))
	}
	n := obs.NumPoints()
	for c := range obs {
		if len(obs[c]) != n {
			return fmt.Errorf("camera %d has %d points, want %d", c, len(obs[c]), n)
		}
	}
	return nil
}

// triangulateViews reconstructs a single point from the listed cameras.
func (g *Group) triangulateViews(obs triangulate.Observations, p int, views []int) pose.Point3 {
	pts := make([]pose.Point2, len(views))
	projs := make([]*mat.Dense, len(views))
	for i, c := range views {
		pts[i] = g.Cameras[c].Undistort(obs[c][p])
		projs[i] = g.Cameras[c].Extrinsics()
	}
	return triangulateDLT(pts, projs)
}

// presentViews lists cameras with a present observation for point p.
func presentViews(obs triangulate.Observations, p int) []int {
	var views []int
	for c := range obs {
		if obs[c][p].Valid {
			views = append(views, c)
		}
	}
	return views
}

// Triangulate reconstructs each point from all cameras that observed it.
func (g *Group) Triangulate(obs triangulate.Observations) ([]pose.Point3, error) {
	if err := g.checkObservations(obs); err != nil {
		return nil, err
	}
	out := make([]pose.Point3, obs.NumPoints())
	for p := range out {
		views := presentViews(obs, p)
		if len(views) < 2 {
			continue
		}
		out[p] = g.triangulateViews(obs, p, views)
	}
	return out, nil
}

// viewError is the pixel distance between camera c's projection of pt and
// its observation. ok is false when either side is absent.
func (g *Group) viewError(pt pose.Point3, obs pose.Point2, c int) (float64, bool) {
	if !pt.Valid || !obs.Valid {
		return 0, false
	}
	proj := g.Cameras[c].Project(pt)
	if !proj.Valid {
		return 0, false
	}
	return math.Hypot(proj.X-obs.X, proj.Y-obs.Y), true
}

// ReprojectionError returns the mean reprojection error per point over the
// cameras with a present observation.
func (g *Group) ReprojectionError(points []pose.Point3, obs triangulate.Observations) []pose.Float {
	out := make([]pose.Float, len(points))
	for p, pt := range points {
		var sum float64
		var n int
		for c := range obs {
			if e, ok := g.viewError(pt, obs[c][p], c); ok {
				sum += e
				n++
			}
		}
		if n > 0 {
			out[p] = pose.Some(sum / float64(n))
		}
	}
	return out
}

type hypothesis struct {
	point   pose.Point3
	inliers []int
	err     float64
}

// better prefers more inliers, then lower mean error.
func (h hypothesis) better(o hypothesis) bool {
	if len(h.inliers) != len(o.inliers) {
		return len(h.inliers) > len(o.inliers)
	}
	return h.err < o.err
}

// TriangulateRobust seeds a hypothesis from every minViews-sized subset of
// the present views, collects the views that reproject within the threshold,
// refits on those inliers and keeps the hypothesis with the most inliers and
// lowest mean error. Points with fewer than minViews usable views are absent.
func (g *Group) TriangulateRobust(obs triangulate.Observations, minViews int) (triangulate.RobustResult, error) {
	if err := g.checkObservations(obs); err != nil {
		return triangulate.RobustResult{}, err
	}
	if minViews < 2 {
		minViews = 2
	}
	threshold := g.RansacThreshold
	if threshold <= 0 {
		threshold = DefaultRansacThreshold
	}

	nCams, nPoints := len(obs), obs.NumPoints()
	res := triangulate.RobustResult{
		Points:   make([]pose.Point3, nPoints),
		Inliers:  make([][]bool, nCams),
		Filtered: make(triangulate.Observations, nCams),
		Errors:   make([]pose.Float, nPoints),
	}
	for c := 0; c < nCams; c++ {
		res.Inliers[c] = make([]bool, nPoints)
		res.Filtered[c] = make([]pose.Point2, nPoints)
	}

	for p := 0; p < nPoints; p++ {
		views := presentViews(obs, p)
		if len(views) < minViews {
			continue
		}
		var best *hypothesis
		forEachSubset(views, minViews, func(seed []int) {
			h, ok := g.fitHypothesis(obs, p, seed, views, threshold, minViews)
			if ok && (best == nil || h.better(*best)) {
				best = &h
			}
		})
		if best == nil {
			continue
		}
		res.Points[p] = best.point
		res.Errors[p] = pose.Some(best.err)
		for _, c := range best.inliers {
			res.Inliers[c][p] = true
			res.Filtered[c][p] = obs[c][p]
		}
	}
	return res, nil
}

func (g *Group) fitHypothesis(obs triangulate.Observations, p int, seed, views []int, threshold float64, minViews int) (hypothesis, bool) {
	pt := g.triangulateViews(obs, p, seed)
	if !pt.Valid {
		return hypothesis{}, false
	}
	var inliers []int
	for _, c := range views {
		if e, ok := g.viewError(pt, obs[c][p], c); ok && e < threshold {
			inliers = append(inliers, c)
		}
	}
	if len(inliers) < minViews {
		return hypothesis{}, false
	}
	refit := g.triangulateViews(obs, p, inliers)
	if !refit.Valid {
		return hypothesis{}, false
	}
	var sum float64
	for _, c := range inliers {
		e, ok := g.viewError(refit, obs[c][p], c)
		if !ok {
			return hypothesis{}, false
		}
		sum += e
	}
	return hypothesis{point: refit, inliers: inliers, err: sum / float64(len(inliers))}, true
}

// forEachSubset calls fn with every k-element subset of items, in
// lexicographic order. The slice passed to fn is reused between calls.
func forEachSubset(items []int, k int, fn func([]int)) {
	if k > len(items) || k <= 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	subset := make([]int, k)
	for {
		for i, j := range idx {
			subset[i] = items[j]
		}
		fn(subset)

		i := k - 1
		for i >= 0 && idx[i] == len(items)-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
