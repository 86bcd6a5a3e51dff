package triangulate

import "github.com/banshee-data/pose3d/internal/pose"

// RobustMinViews is the minimum number of inlier views requested from the
// provider in robust mode.
const RobustMinViews = 3

// MinSupport is the camera support below which a point's diagnostics are
// reported as absent.
const MinSupport = 2

// Observations is the flat (camera, point) layout handed to a Provider. Point
// index p corresponds to frame p / nLandmarks, landmark p % nLandmarks.
type Observations [][]pose.Point2

// NumPoints returns the point dimension length.
func (o Observations) NumPoints() int {
	if len(o) == 0 {
		return 0
	}
	return len(o[0])
}

// RobustResult is the output of a robust triangulation.
type RobustResult struct {
	// Points holds one reconstructed point per observation column.
	Points []pose.Point3
	// Inliers[c][p] is set when camera c was used for point p.
	Inliers [][]bool
	// Filtered is the input with every non-inlier observation absent.
	Filtered Observations
	// Errors is the mean reprojection error over inlier views.
	Errors []pose.Float
}

// Provider is a multi-view solver. Its camera order must match the
// FrameSet's CameraSet.
type Provider interface {
	// CameraNames returns the camera order the provider expects.
	CameraNames() []string

	// Triangulate reconstructs every point from all present observations.
	// Points seen by fewer than two cameras are absent.
	Triangulate(obs Observations) ([]pose.Point3, error)

	// ReprojectionError returns, per point, the mean pixel distance between
	// the projected point and each present observation.
	ReprojectionError(points []pose.Point3, obs Observations) []pose.Float

	// TriangulateRobust reconstructs every point from an inlier subset of at
	// least minViews cameras.
	TriangulateRobust(obs Observations, minViews int) (RobustResult, error)
}
