// Package triangulate turns a filtered 2-D FrameSet into 3-D landmark
// positions through a Provider, and derives per-point diagnostics:
// reprojection error, camera support and aggregated detection score.
//
// The minimum-support gate lives here: anything seen by fewer than two
// cameras carries no error, support or score.
package triangulate
