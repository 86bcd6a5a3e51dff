// Package pose owns the 2-D side of the reconstruction data model.
//
// Responsibilities: parsing per-camera detection files, merging them into a
// dense (frame, camera, landmark) FrameSet with per-camera offsets, and
// confidence filtering ahead of triangulation.
// Key types: FrameSet, Schema, CameraSet, Point2, Point3, Float.
//
// Absent observations are explicit (Valid=false), never NaN; arithmetic on
// absent values yields absent values.
package pose
