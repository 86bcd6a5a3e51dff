// Package camera implements the calibrated multi-view solver used by the
// triangulation stage.
//
// Responsibilities: decoding calibration.toml, pinhole projection with
// OpenCV-style distortion, DLT triangulation and robust (exhaustive-subset
// RANSAC) triangulation.
// Key types: Camera, Group (a triangulate.Provider).
package camera
