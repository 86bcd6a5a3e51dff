package config

import (
	"fmt"

	"github.com/banshee-data/pose3d/internal/pose"
)

// AxisSpec defines one target axis as the direction from landmark From to
// landmark To.
type AxisSpec struct {
	// Label is the target axis index: 0=x, 1=y, 2=z.
	Label int
	From  string
	To    string
}

// FrameSpec describes the experiment reference frame: the landmark placed at
// the origin and two axis definitions.
type FrameSpec struct {
	Reference string
	Axes      [2]AxisSpec
}

var axisLabels = map[string]int{"x": 0, "y": 1, "z": 2}

// AxisName returns "x", "y" or "z" for an axis index.
func AxisName(i int) string {
	return [...]string{"x", "y", "z"}[i]
}

// parseAxes validates the [[label, a, b], [label, a, b]] shape.
func parseAxes(raw [][]string) ([2]AxisSpec, error) {
	var axes [2]AxisSpec
	if len(raw) != 2 {
		return axes, fmt.Errorf("%w: axes needs exactly 2 entries, got %d", ErrInvalidConfig, len(raw))
	}
	for i, entry := range raw {
		if len(entry) != 3 {
			return axes, fmt.Errorf("%w: axes[%d] must be [label, landmark_a, landmark_b], got %v", ErrInvalidConfig, i, entry)
		}
		label, ok := axisLabels[entry[0]]
		if !ok {
			return axes, fmt.Errorf("%w: axes[%d] label %q is not x, y or z", ErrInvalidConfig, i, entry[0])
		}
		if entry[1] == "" || entry[2] == "" {
			return axes, fmt.Errorf("%w: axes[%d] has an empty landmark name", ErrInvalidConfig, i)
		}
		if entry[1] == entry[2] {
			return axes, fmt.Errorf("%w: axes[%d] uses %q for both ends", ErrInvalidConfig, i, entry[1])
		}
		axes[i] = AxisSpec{Label: label, From: entry[1], To: entry[2]}
	}
	if axes[0].Label == axes[1].Label {
		return axes, fmt.Errorf("%w: both axes target %q", ErrInvalidConfig, raw[0][0])
	}
	return axes, nil
}

// FrameSpec returns the configured reference frame, or nil when either
// reference_point or axes is missing, which disables alignment.
func (c *Config) FrameSpec() (*FrameSpec, error) {
	ref := strOr(c.Triangulation.ReferencePoint, "")
	if ref == "" || c.Triangulation.Axes == nil {
		return nil, nil
	}
	axes, err := parseAxes(c.Triangulation.Axes)
	if err != nil {
		return nil, err
	}
	return &FrameSpec{Reference: ref, Axes: axes}, nil
}

// Landmarks returns every landmark the frame refers to.
func (s *FrameSpec) Landmarks() []string {
	return []string{s.Reference, s.Axes[0].From, s.Axes[0].To, s.Axes[1].From, s.Axes[1].To}
}

// Check verifies that every referenced landmark exists in schema.
func (s *FrameSpec) Check(schema pose.Schema) error {
	for _, name := range s.Landmarks() {
		if _, ok := schema.Index(name); !ok {
			return fmt.Errorf("%w: %q is not among %v", ErrUnknownLandmark, name, schema.Landmarks)
		}
	}
	return nil
}
