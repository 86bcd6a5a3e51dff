package pose

import (
	"fmt"
	"math"

	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/banshee-data/pose3d/internal/monitoring"
	"go.uber.org/zap"
)

// LoadOptions tunes Load.
type LoadOptions struct {
	// MaxFrames caps the frame dimension. A camera reporting a single very
	// high frame index would otherwise force a proportionally large,
	// mostly-absent allocation. Zero means unlimited.
	MaxFrames int
}

// LoadFiles reads one detection file per camera and merges them with Load.
func LoadFiles(fsys fsutil.FileSystem, files map[string]string, offsets map[string]Offset, opts LoadOptions) (*FrameSet, error) {
	dets := make(map[string]*Detections, len(files))
	for cam, path := range files {
		d, err := ReadDLCCSVFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", cam, err)
		}
		dets[cam] = d
	}
	return Load(dets, offsets, opts)
}

// Load merges per-camera detections into a dense FrameSet. The landmark
// schema comes from the first camera in sorted order and every other camera
// must match it exactly. Offsets missing from the map default to (0, 0).
func Load(dets map[string]*Detections, offsets map[string]Offset, opts LoadOptions) (*FrameSet, error) {
	if len(dets) == 0 {
		return nil, ErrNoCameras
	}
	names := make([]string, 0, len(dets))
	for cam := range dets {
		names = append(names, cam)
	}
	cameras := NewCameraSet(names)

	schema := dets[cameras[0]].Schema
	length := 0
	for _, cam := range cameras {
		d := dets[cam]
		if err := schema.Check(d.Schema); err != nil {
			return nil, fmt.Errorf("camera %s vs %s: %w", cam, cameras[0], err)
		}
		if n := d.MaxFrame() + 1; n > length {
			length = n
		}
	}
	if opts.MaxFrames > 0 && length > opts.MaxFrames {
		return nil, fmt.Errorf("%w: %d frames > %d", ErrTooManyFrames, length, opts.MaxFrames)
	}

	fs := NewFrameSet(cameras, schema, length)
	for ci, cam := range cameras {
		d := dets[cam]
		off := offsets[cam]
		for r, frame := range d.Frames {
			if frame < 0 {
				return nil, fmt.Errorf("camera %s: negative frame index %d", cam, frame)
			}
			row := d.Rows[r]
			for li := range schema.Landmarks {
				det := row[li]
				fs.Points[frame][ci][li] = P2(det.X, det.Y).Translate(off.DX, off.DY)
				if !math.IsNaN(det.Score) {
					fs.Scores[frame][ci][li] = det.Score
				}
			}
		}
	}

	monitoring.L().Debug("loaded 2d poses",
		zap.Strings("cameras", cameras),
		zap.Int("landmarks", schema.Len()),
		zap.Int("frames", length))
	return fs, nil
}
