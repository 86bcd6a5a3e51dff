package triangulate

import (
	"errors"
	"testing"

	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider places every point seen by two or more cameras at (p, 0, 1)
// and reports a reprojection error of 0.5 px. In robust mode it marks the
// last camera as an outlier whenever three or more cameras see a point.
type fakeProvider struct {
	names     []string
	err       error
	robustErr error
	minViews  int
	// unsolved lists point indices the provider fails to reconstruct.
	unsolved map[int]bool
}

func seen(obs Observations, p int) int {
	n := 0
	for c := range obs {
		if obs[c][p].Valid {
			n++
		}
	}
	return n
}

func (f *fakeProvider) CameraNames() []string { return f.names }

func (f *fakeProvider) Triangulate(obs Observations) ([]pose.Point3, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]pose.Point3, obs.NumPoints())
	for p := range out {
		if seen(obs, p) >= 2 && !f.unsolved[p] {
			out[p] = pose.P3(float64(p), 0, 1)
		}
	}
	return out, nil
}

func (f *fakeProvider) ReprojectionError(points []pose.Point3, obs Observations) []pose.Float {
	out := make([]pose.Float, len(points))
	for p, pt := range points {
		if pt.Valid {
			out[p] = pose.Some(0.5)
		}
	}
	return out
}

func (f *fakeProvider) TriangulateRobust(obs Observations, minViews int) (RobustResult, error) {
	f.minViews = minViews
	if f.robustErr != nil {
		return RobustResult{}, f.robustErr
	}
	nCams, nPoints := len(obs), obs.NumPoints()
	res := RobustResult{
		Points:   make([]pose.Point3, nPoints),
		Inliers:  make([][]bool, nCams),
		Filtered: make(Observations, nCams),
		Errors:   make([]pose.Float, nPoints),
	}
	for c := range obs {
		res.Inliers[c] = make([]bool, nPoints)
		res.Filtered[c] = make([]pose.Point2, nPoints)
	}
	for p := 0; p < nPoints; p++ {
		if seen(obs, p) < minViews {
			continue
		}
		res.Points[p] = pose.P3(float64(p), 0, 2)
		res.Errors[p] = pose.Some(0.25)
		for c := 0; c < nCams-1; c++ {
			if obs[c][p].Valid {
				res.Inliers[c][p] = true
				res.Filtered[c][p] = obs[c][p]
			}
		}
	}
	return res, nil
}

// frameSet builds a FrameSet where visible(f, c, l) decides presence and
// every present observation scores 0.9 - 0.1*c.
func frameSet(cams []string, landmarks []string, nFrames int, visible func(f, c, l int) bool) *pose.FrameSet {
	fs := pose.NewFrameSet(pose.NewCameraSet(cams), pose.NewSchema(landmarks), nFrames)
	for f := 0; f < nFrames; f++ {
		for c := range cams {
			for l := range landmarks {
				fs.Scores[f][c][l] = 0.9 - 0.1*float64(c)
				if visible(f, c, l) {
					fs.Points[f][c][l] = pose.P2(float64(10*c+l), float64(f))
				}
			}
		}
	}
	return fs
}

func TestFlatten(t *testing.T) {
	fs := frameSet([]string{"A", "B"}, []string{"a", "b", "c"}, 2, func(f, c, l int) bool { return true })
	obs := Flatten(fs)
	require.Len(t, obs, 2)
	require.Equal(t, 6, obs.NumPoints())
	// point index = frame*nLandmarks + landmark
	assert.Equal(t, fs.Points[1][1][2], obs[1][5])
	assert.Equal(t, fs.Points[0][0][1], obs[0][1])
	assert.Equal(t, 0, Observations(nil).NumPoints())
}

func TestAggregate_SupportGating(t *testing.T) {
	// landmark c is seen by camera A only
	fs := frameSet([]string{"A", "B"}, []string{"a", "b", "c"}, 5, func(f, c, l int) bool { return l != 2 || c == 0 })
	p := &fakeProvider{names: []string{"A", "B"}}

	res, err := Aggregate(fs, p, ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, ModeDirect, res.Mode)
	require.Equal(t, 5, res.NumFrames())

	for f := 0; f < 5; f++ {
		for l := 0; l < 2; l++ {
			assert.True(t, res.Points[f][l].Valid)
			assert.Equal(t, pose.Some(2), res.Support[f][l])
			assert.Equal(t, pose.Some(0.5), res.Errors[f][l])
			assert.InDelta(t, 0.8, res.Scores[f][l].V, 1e-12, "score is the lowest contributing camera's")
		}
		assert.False(t, res.Points[f][2].Valid)
		assert.False(t, res.Support[f][2].Valid)
		assert.False(t, res.Errors[f][2].Valid)
		assert.False(t, res.Scores[f][2].Valid)
	}
	assert.Equal(t, 10, res.Supported())
	assert.Equal(t, pose.Some(0.5), res.MeanError())
}

func TestAggregate_SupportGateInvariant(t *testing.T) {
	fs := frameSet([]string{"A", "B", "C"}, []string{"a", "b"}, 4, func(f, c, l int) bool { return (f+c+l)%3 != 0 })
	res, err := Aggregate(fs, &fakeProvider{names: []string{"A", "B", "C"}}, ModeDirect)
	require.NoError(t, err)

	for f := range res.Support {
		for l, s := range res.Support[f] {
			if s.Valid {
				assert.GreaterOrEqual(t, s.V, float64(MinSupport))
				assert.True(t, res.Errors[f][l].Valid)
				assert.True(t, res.Scores[f][l].Valid)
			} else {
				assert.False(t, res.Errors[f][l].Valid)
				assert.False(t, res.Scores[f][l].Valid)
			}
		}
	}
}

func TestAggregate_Robust(t *testing.T) {
	fs := frameSet([]string{"A", "B", "C"}, []string{"a"}, 2, func(f, c, l int) bool { return f == 0 || c < 2 })
	p := &fakeProvider{names: []string{"A", "B", "C"}}

	res, err := Aggregate(fs, p, ModeRobust)
	require.NoError(t, err)
	assert.Equal(t, RobustMinViews, p.minViews)
	assert.Equal(t, ModeRobust, res.Mode)

	// frame 0: three views, C rejected
	assert.Equal(t, pose.Some(2), res.Support[0][0])
	assert.Equal(t, pose.Some(0.25), res.Errors[0][0])
	assert.InDelta(t, 0.8, res.Scores[0][0].V, 1e-12, "the rejected camera's lower score is ignored")
	assert.Equal(t, pose.P3(0, 0, 2), res.Points[0][0])

	// frame 1: two views is below the robust minimum
	assert.False(t, res.Points[1][0].Valid)
	assert.False(t, res.Support[1][0].Valid)
}

func TestAggregate_Errors(t *testing.T) {
	fs := frameSet([]string{"A", "B"}, []string{"a"}, 1, func(f, c, l int) bool { return true })
	boom := errors.New("boom")

	_, err := Aggregate(fs, &fakeProvider{names: []string{"B", "A"}}, ModeDirect)
	require.Error(t, err, "camera order must match")

	_, err = Aggregate(fs, &fakeProvider{names: []string{"A", "B"}, err: boom}, ModeDirect)
	require.ErrorIs(t, err, boom)

	_, err = Aggregate(fs, &fakeProvider{names: []string{"A", "B"}, robustErr: boom}, ModeRobust)
	require.ErrorIs(t, err, boom)

	_, err = Aggregate(fs, &fakeProvider{names: []string{"A", "B"}}, Mode("lsq"))
	require.Error(t, err)
}

func TestAggregate_DefaultModeIsDirect(t *testing.T) {
	fs := frameSet([]string{"A", "B"}, []string{"a"}, 1, func(f, c, l int) bool { return true })
	res, err := Aggregate(fs, &fakeProvider{names: []string{"A", "B"}}, "")
	require.NoError(t, err)
	assert.Equal(t, ModeDirect, res.Mode)
}

func TestResult_MeanErrorEmpty(t *testing.T) {
	res := &Result{Errors: [][]pose.Float{{{}, {}}}}
	assert.False(t, res.MeanError().Valid)
	assert.Equal(t, 0, res.Supported())
}

func TestAggregate_UnsolvedPointIsUnsupported(t *testing.T) {
	fs := frameSet([]string{"A", "B"}, []string{"a", "b"}, 2, func(f, c, l int) bool { return true })
	provider := &fakeProvider{names: []string{"A", "B"}, unsolved: map[int]bool{1: true}}

	res, err := Aggregate(fs, provider, ModeDirect)
	require.NoError(t, err)

	assert.False(t, res.Points[0][1].Valid)
	assert.False(t, res.Errors[0][1].Valid)
	assert.False(t, res.Support[0][1].Valid, "two views but no solution")
	assert.False(t, res.Scores[0][1].Valid)

	for _, e := range []struct{ f, l int }{{0, 0}, {1, 0}, {1, 1}} {
		assert.True(t, res.Support[e.f][e.l].Valid)
		assert.True(t, res.Errors[e.f][e.l].Valid)
		assert.True(t, res.Scores[e.f][e.l].Valid)
	}
	assert.Equal(t, 3, res.Supported())
}
