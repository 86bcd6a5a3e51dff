package align

import (
	"math"
	"testing"

	"github.com/banshee-data/pose3d/internal/config"
	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/banshee-data/pose3d/internal/testutil"
	"github.com/banshee-data/pose3d/internal/triangulate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var schema = pose.NewSchema([]string{"origin", "xend", "yend", "free"})

// scene builds frames of a tilted, translated right-angle marker plus one
// free landmark. The marker's x arm lies along (1, 1, 0) and its y arm along
// (-1, 1, 1) relative to the origin landmark at (3, -2, 5).
func scene(nFrames int) *triangulate.Result {
	res := &triangulate.Result{Schema: schema}
	for f := 0; f < nFrames; f++ {
		jitter := 0.001 * float64(f%3-1)
		res.Points = append(res.Points, []pose.Point3{
			pose.P3(3+jitter, -2, 5),
			pose.P3(4, -1+jitter, 5),
			pose.P3(2, -1, 6+jitter),
			pose.P3(float64(f), 2*float64(f), -1),
		})
		res.Errors = append(res.Errors, make([]pose.Float, 4))
		res.Support = append(res.Support, make([]pose.Float, 4))
		res.Scores = append(res.Scores, make([]pose.Float, 4))
	}
	return res
}

func spec(a, b int) *config.FrameSpec {
	ends := map[int]string{0: "xend", 1: "yend"}
	return &config.FrameSpec{
		Reference: "origin",
		Axes: [2]config.AxisSpec{
			{Label: a, From: "origin", To: ends[0]},
			{Label: b, From: "origin", To: ends[1]},
		},
	}
}

func TestMedian(t *testing.T) {
	pts := [][]pose.Point3{
		{pose.P3(1, 10, 0)},
		{{}},
		{pose.P3(3, 30, 0)},
		{pose.P3(2, 40, 0)},
		{pose.P3(100, 20, 0)},
	}
	m, ok := Median(pts, 0)
	require.True(t, ok)
	assert.Equal(t, 2.5, m.X, "even count averages the middle pair")
	assert.Equal(t, 25.0, m.Y)

	_, ok = Median([][]pose.Point3{{{}}, {{}}}, 0)
	assert.False(t, ok)
}

func TestBasis_Orthonormal(t *testing.T) {
	labels := [][2]int{{0, 1}, {1, 0}, {0, 2}, {2, 0}, {1, 2}, {2, 1}}
	for _, l := range labels {
		m, err := Basis(scene(7).Points, schema, spec(l[0], l[1]))
		require.NoError(t, err)

		var mmt mat.Dense
		mmt.Mul(m, m.T())
		assert.True(t, mat.EqualApprox(&mmt, mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), 1e-9),
			"labels %v: M*M^T\n%v", l, mat.Formatted(&mmt))
		wantDet := -1.0
		if (l[0]+1)%3 == l[1] {
			wantDet = 1
		}
		assert.InDelta(t, wantDet, mat.Det(m), 1e-9, "labels %v: determinant", l)

		// the first configured axis maps exactly onto its label
		row := mat.Row(nil, l[0], m)
		want := []float64{1 / math.Sqrt2, 1 / math.Sqrt2, 0}
		for i := range want {
			assert.InDelta(t, want[i], row[i], 1e-3, "labels %v row %d", l, l[0])
		}
	}
}

func TestBasis_DerivedAxisIsCrossInConfiguredOrder(t *testing.T) {
	marker := pose.NewSchema([]string{"a", "b", "c", "d"})
	res := &triangulate.Result{Schema: marker}
	for f := 0; f < 3; f++ {
		res.Points = append(res.Points, []pose.Point3{
			pose.P3(0, 0, 0), pose.P3(1, 0, 0), pose.P3(0, 0, 1), pose.P3(0, 1, 0),
		})
	}
	frame := &config.FrameSpec{
		Reference: "a",
		Axes: [2]config.AxisSpec{
			{Label: 0, From: "a", To: "b"},
			{Label: 2, From: "a", To: "c"},
		},
	}

	out, err := Apply(res, frame)
	require.NoError(t, err)

	// y = cross(x, z) = -y of the input frame
	d := out.Points[0][3]
	testutil.AssertNear(t, d.X, 0, 1e-12, "d x")
	testutil.AssertNear(t, d.Y, -1, 1e-12, "d y")
	testutil.AssertNear(t, d.Z, 0, 1e-12, "d z")
	c := out.Points[0][2]
	testutil.AssertNear(t, c.Z, 1, 1e-12, "c stays on z")
}

func TestApply_ReferenceAtOrigin(t *testing.T) {
	res, err := Apply(scene(7), spec(0, 1))
	require.NoError(t, err)

	m, ok := Median(res.Points, 0)
	require.True(t, ok)
	testutil.AssertNear(t, m.X, 0, 1e-12, "median x")
	testutil.AssertNear(t, m.Y, 0, 1e-12, "median y")
	testutil.AssertNear(t, m.Z, 0, 1e-12, "median z")

	x, ok := Median(res.Points, 1)
	require.True(t, ok)
	testutil.AssertNear(t, x.X, math.Sqrt2, 1e-3, "x arm length")
	testutil.AssertNear(t, x.Y, 0, 1e-3, "x arm y")
	testutil.AssertNear(t, x.Z, 0, 1e-3, "x arm z")

	y, ok := Median(res.Points, 2)
	require.True(t, ok)
	testutil.AssertNear(t, y.X, 0, 1e-3, "y arm x")
	testutil.AssertNear(t, y.Z, 0, 1e-3, "y arm z")
	assert.Greater(t, y.Y, 0.0)
}

func TestApply_Isometry(t *testing.T) {
	in := scene(5)
	res, err := Apply(in, spec(2, 0))
	require.NoError(t, err)

	for f := range in.Points {
		for a := range in.Points[f] {
			for b := range in.Points[f] {
				before := in.Points[f][a].Dist(in.Points[f][b]).V
				after := res.Points[f][a].Dist(res.Points[f][b]).V
				testutil.AssertNear(t, after, before, 1e-9, "pairwise distance")
			}
		}
	}
}

func TestApply_AbsentStaysAbsent(t *testing.T) {
	in := scene(4)
	in.Points[2][3] = pose.Point3{}
	in.Errors[1][0] = pose.Some(0.3)

	res, err := Apply(in, spec(0, 1))
	require.NoError(t, err)
	assert.False(t, res.Points[2][3].Valid)
	assert.True(t, res.Points[3][3].Valid)
	assert.Equal(t, pose.Some(0.3), res.Errors[1][0], "diagnostics pass through")
	assert.Equal(t, scene(4).Points[0], in.Points[0], "input is not modified")
}

func TestApply_NilSpecPassesThrough(t *testing.T) {
	in := scene(2)
	res, err := Apply(in, nil)
	require.NoError(t, err)
	assert.Same(t, in, res)
}

func TestApply_Errors(t *testing.T) {
	t.Run("unknown landmark", func(t *testing.T) {
		s := spec(0, 1)
		s.Reference = "tail"
		_, err := Apply(scene(3), s)
		require.ErrorIs(t, err, config.ErrUnknownLandmark)
	})

	t.Run("axis landmark never observed", func(t *testing.T) {
		in := scene(3)
		for f := range in.Points {
			in.Points[f][2] = pose.Point3{}
		}
		_, err := Apply(in, spec(0, 1))
		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("parallel axes", func(t *testing.T) {
		s := spec(0, 1)
		s.Axes[1].To = "xend"
		_, err := Apply(scene(3), s)
		require.ErrorIs(t, err, ErrDegenerateAxes)
	})

	t.Run("zero-length axis", func(t *testing.T) {
		s := spec(0, 1)
		s.Axes[0].From, s.Axes[0].To = "xend", "xend"
		_, err := Apply(scene(3), s)
		require.ErrorIs(t, err, ErrDegenerateAxes)
	})
}
