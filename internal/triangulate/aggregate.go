package triangulate

import (
	"fmt"
	"slices"

	"github.com/banshee-data/pose3d/internal/monitoring"
	"github.com/banshee-data/pose3d/internal/pose"
	"go.uber.org/zap"
)

// lowSupportScore replaces the score of observations that did not take part
// in a reconstruction, so they can never be the minimum of a supported point.
const lowSupportScore = 2.0

// Mode selects the provider operation.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeRobust Mode = "ransac"
)

// Result is the TriangulatedFrameSet for one video: per (frame, landmark)
// position and diagnostics.
type Result struct {
	Schema pose.Schema
	Mode   Mode
	Points [][]pose.Point3
	// Errors is the mean reprojection error in pixels.
	Errors [][]pose.Float
	// Support is the number of cameras that contributed.
	Support [][]pose.Float
	// Scores is the lowest detection score among contributing cameras.
	Scores [][]pose.Float
}

// NumFrames returns the frame dimension length.
func (r *Result) NumFrames() int { return len(r.Points) }

// Supported counts (frame, landmark) entries that passed the support gate.
func (r *Result) Supported() int {
	n := 0
	for f := range r.Support {
		for _, s := range r.Support[f] {
			if s.Valid {
				n++
			}
		}
	}
	return n
}

// MeanError averages the reprojection error of supported entries.
func (r *Result) MeanError() pose.Float {
	var sum float64
	var n int
	for f := range r.Errors {
		for _, e := range r.Errors[f] {
			if e.Valid {
				sum += e.V
				n++
			}
		}
	}
	if n == 0 {
		return pose.None()
	}
	return pose.Some(sum / float64(n))
}

// Flatten reshapes (frame, camera, landmark) into the provider's
// (camera, frame*landmark) layout.
func Flatten(fs *pose.FrameSet) Observations {
	nFrames, nCams, nLm := fs.NumFrames(), len(fs.Cameras), fs.Schema.Len()
	obs := make(Observations, nCams)
	for c := 0; c < nCams; c++ {
		obs[c] = make([]pose.Point2, nFrames*nLm)
		for f := 0; f < nFrames; f++ {
			copy(obs[c][f*nLm:(f+1)*nLm], fs.Points[f][c])
		}
	}
	return obs
}

// Aggregate triangulates a filtered FrameSet with provider and derives the
// per-point diagnostics. Entries supported by fewer than MinSupport cameras,
// or left without a point or error by the provider, have absent error,
// support and score.
func Aggregate(fs *pose.FrameSet, provider Provider, mode Mode) (*Result, error) {
	if names := provider.CameraNames(); !slices.Equal(names, []string(fs.Cameras)) {
		return nil, fmt.Errorf("provider cameras %v do not match detections %v", names, fs.Cameras)
	}
	nFrames, nCams, nLm := fs.NumFrames(), len(fs.Cameras), fs.Schema.Len()
	obs := Flatten(fs)
	nPoints := nFrames * nLm

	var (
		points  []pose.Point3
		errs    []pose.Float
		support = make([]int, nPoints)
		good    Observations
	)
	switch mode {
	case ModeRobust:
		res, err := provider.TriangulateRobust(obs, RobustMinViews)
		if err != nil {
			return nil, fmt.Errorf("robust triangulation: %w", err)
		}
		points, errs, good = res.Points, res.Errors, res.Filtered
		for c := range res.Inliers {
			for p, in := range res.Inliers[c] {
				if in {
					support[p]++
				}
			}
		}
	case ModeDirect, "":
		mode = ModeDirect
		pts, err := provider.Triangulate(obs)
		if err != nil {
			return nil, fmt.Errorf("triangulation: %w", err)
		}
		points, good = pts, obs
		errs = provider.ReprojectionError(points, obs)
		for c := range obs {
			for p, o := range obs[c] {
				if o.Valid {
					support[p]++
				}
			}
		}
	default:
		return nil, fmt.Errorf("unknown triangulation mode %q", mode)
	}
	if len(points) != nPoints || len(errs) != nPoints {
		return nil, fmt.Errorf("provider returned %d points and %d errors, want %d", len(points), len(errs), nPoints)
	}

	res := &Result{
		Schema:  fs.Schema,
		Mode:    mode,
		Points:  make([][]pose.Point3, nFrames),
		Errors:  make([][]pose.Float, nFrames),
		Support: make([][]pose.Float, nFrames),
		Scores:  make([][]pose.Float, nFrames),
	}
	for f := 0; f < nFrames; f++ {
		res.Points[f] = points[f*nLm : (f+1)*nLm : (f+1)*nLm]
		res.Errors[f] = make([]pose.Float, nLm)
		res.Support[f] = make([]pose.Float, nLm)
		res.Scores[f] = make([]pose.Float, nLm)
		for l := 0; l < nLm; l++ {
			p := f*nLm + l
			// a point the provider could not solve is unsupported however
			// many cameras saw it
			if support[p] < MinSupport || !points[p].Valid || !errs[p].Valid {
				continue
			}
			minScore := lowSupportScore
			for c := 0; c < nCams; c++ {
				s := lowSupportScore
				if good[c][p].Valid {
					s = fs.Scores[f][c][l]
				}
				if s < minScore {
					minScore = s
				}
			}
			res.Errors[f][l] = errs[p]
			res.Support[f][l] = pose.Some(float64(support[p]))
			res.Scores[f][l] = pose.Some(minScore)
		}
	}

	monitoring.L().Debug("triangulated",
		zap.String("mode", string(mode)),
		zap.Int("frames", nFrames),
		zap.Int("landmarks", nLm),
		zap.Int("supported", res.Supported()))
	return res, nil
}
