package pose

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrSchemaMismatch is returned when cameras of one video disagree on
	// the landmark set or its order.
	ErrSchemaMismatch = errors.New("landmark schema mismatch")

	// ErrTooManyFrames is returned when a detection file's frame indices
	// would require a tensor larger than the configured limit.
	ErrTooManyFrames = errors.New("frame index exceeds limit")

	// ErrNoCameras is returned when a load is attempted with no sources.
	ErrNoCameras = errors.New("no camera sources")
)

// CameraSet is the lexicographically sorted list of camera identifiers that
// defines the camera axis of every tensor for a video.
type CameraSet []string

// NewCameraSet returns a sorted, de-duplicated CameraSet.
func NewCameraSet(names []string) CameraSet {
	cs := slices.Clone(names)
	sort.Strings(cs)
	return CameraSet(slices.Compact(cs))
}

// Index returns the position of name, or -1.
func (cs CameraSet) Index(name string) int {
	return slices.Index(cs, name)
}

// Offset is a per-camera pixel translation applied to raw detections, used
// to undo cropping before detection.
type Offset struct {
	DX, DY float64
}

// Schema is the ordered landmark list shared by all cameras of a video.
type Schema struct {
	Landmarks []string
	index     map[string]int
}

// NewSchema builds a Schema from an ordered landmark list.
func NewSchema(landmarks []string) Schema {
	idx := make(map[string]int, len(landmarks))
	for i, name := range landmarks {
		idx[name] = i
	}
	return Schema{Landmarks: slices.Clone(landmarks), index: idx}
}

// Len returns the number of landmarks.
func (s Schema) Len() int { return len(s.Landmarks) }

// Index returns the position of a landmark and whether it exists.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether two schemas name the same landmarks in the same order.
func (s Schema) Equal(o Schema) bool {
	return slices.Equal(s.Landmarks, o.Landmarks)
}

// Check returns an error naming the first difference between s and o.
func (s Schema) Check(o Schema) error {
	if s.Equal(o) {
		return nil
	}
	if len(s.Landmarks) != len(o.Landmarks) {
		return fmt.Errorf("%w: %d landmarks vs %d", ErrSchemaMismatch, len(s.Landmarks), len(o.Landmarks))
	}
	for i := range s.Landmarks {
		if s.Landmarks[i] != o.Landmarks[i] {
			return fmt.Errorf("%w: landmark %d is %q vs %q", ErrSchemaMismatch, i, s.Landmarks[i], o.Landmarks[i])
		}
	}
	return ErrSchemaMismatch
}

// Detection is one landmark observation in a detection file.
type Detection struct {
	X, Y  float64
	Score float64
}

// Detections is the parsed content of one camera's detection file: the
// landmark schema and, per frame index, one detection per landmark in schema
// order.
type Detections struct {
	Schema Schema
	Frames []int
	Rows   [][]Detection
}

// MaxFrame returns the largest frame index, or -1 if there are no rows.
func (d *Detections) MaxFrame() int {
	maxFrame := -1
	for _, f := range d.Frames {
		if f > maxFrame {
			maxFrame = f
		}
	}
	return maxFrame
}

// FrameSet is the dense (frame, camera, landmark) tensor of 2-D observations
// for one video, with a parallel score tensor. Entries never observed are
// absent with score 0.
type FrameSet struct {
	Cameras CameraSet
	Schema  Schema
	Points  [][][]Point2
	Scores  [][][]float64
}

// NewFrameSet allocates an all-absent FrameSet.
func NewFrameSet(cameras CameraSet, schema Schema, nFrames int) *FrameSet {
	fs := &FrameSet{
		Cameras: cameras,
		Schema:  schema,
		Points:  make([][][]Point2, nFrames),
		Scores:  make([][][]float64, nFrames),
	}
	nCams, nLm := len(cameras), schema.Len()
	for f := 0; f < nFrames; f++ {
		fs.Points[f] = make([][]Point2, nCams)
		fs.Scores[f] = make([][]float64, nCams)
		for c := 0; c < nCams; c++ {
			fs.Points[f][c] = make([]Point2, nLm)
			fs.Scores[f][c] = make([]float64, nLm)
		}
	}
	return fs
}

// NumFrames returns the frame dimension length.
func (fs *FrameSet) NumFrames() int { return len(fs.Points) }

// Clone returns a deep copy.
func (fs *FrameSet) Clone() *FrameSet {
	out := NewFrameSet(fs.Cameras, fs.Schema, fs.NumFrames())
	for f := range fs.Points {
		for c := range fs.Points[f] {
			copy(out.Points[f][c], fs.Points[f][c])
			copy(out.Scores[f][c], fs.Scores[f][c])
		}
	}
	return out
}
