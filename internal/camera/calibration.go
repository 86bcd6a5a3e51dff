package camera

import (
	"fmt"
	"sort"

	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/facette/natsort"
	"github.com/pelletier/go-toml/v2"
)

// CalibrationFile is the file name looked up inside a calibration folder.
const CalibrationFile = "calibration.toml"

// cameraTable is one [cam_N] table of a calibration file.
type cameraTable struct {
	Name        string      `toml:"name"`
	Size        []int       `toml:"size"`
	Matrix      [][]float64 `toml:"matrix"`
	Distortions []float64   `toml:"distortions"`
	Rotation    []float64   `toml:"rotation"`
	Translation []float64   `toml:"translation"`
	Fisheye     bool        `toml:"fisheye"`
}

// LoadCalibration reads a calibration file from fsys.
func LoadCalibration(fsys fsutil.FileSystem, path string) (*Group, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}
	g, err := ParseCalibration(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ParseCalibration decodes calibration TOML. Every top-level table other
// than [metadata] describes one camera; tables are taken in natural key
// order (cam_2 before cam_10).
func ParseCalibration(data []byte) (*Group, error) {
	var tables map[string]cameraTable
	if err := toml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse calibration: %w", err)
	}

	keys := make([]string, 0, len(tables))
	for key := range tables {
		if key == "metadata" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return natsort.Compare(keys[i], keys[j]) })

	cams := make([]*Camera, 0, len(keys))
	for _, key := range keys {
		c, err := tables[key].camera(key)
		if err != nil {
			return nil, err
		}
		cams = append(cams, c)
	}
	if len(cams) == 0 {
		return nil, fmt.Errorf("calibration lists no cameras")
	}
	return NewGroup(cams)
}

func (t cameraTable) camera(key string) (*Camera, error) {
	name := t.Name
	if name == "" {
		name = key
	}
	if t.Fisheye {
		return nil, fmt.Errorf("camera %s: fisheye model not supported", name)
	}
	if len(t.Matrix) != 3 {
		return nil, fmt.Errorf("camera %s: matrix has %d rows, want 3", name, len(t.Matrix))
	}
	var k [3][3]float64
	for i, row := range t.Matrix {
		if len(row) != 3 {
			return nil, fmt.Errorf("camera %s: matrix row %d has %d columns, want 3", name, i, len(row))
		}
		copy(k[i][:], row)
	}
	if len(t.Rotation) != 3 || len(t.Translation) != 3 {
		return nil, fmt.Errorf("camera %s: rotation and translation must have 3 components", name)
	}
	var size [2]int
	copy(size[:], t.Size)

	return New(name, size, k, t.Distortions,
		[3]float64{t.Rotation[0], t.Rotation[1], t.Rotation[2]},
		[3]float64{t.Translation[0], t.Translation[1], t.Translation[2]})
}
