package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/banshee-data/pose3d/internal/camera"
	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/spf13/viper"
)

// DefaultConfigName is the project configuration file looked up when no
// explicit path is given.
const DefaultConfigName = "config.toml"

var (
	// ErrInvalidConfig marks configuration values that make a run unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownLandmark is returned when reference_point or axes name a
	// landmark the detections do not contain.
	ErrUnknownLandmark = errors.New("unknown landmark")
)

// Config is the project configuration. Fields are pointers so that omitted
// keys fall back to the defaults supplied by the Get* accessors.
type Config struct {
	Nesting       *int                    `mapstructure:"nesting"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Filter        FilterConfig            `mapstructure:"filter"`
	Triangulation TriangulationConfig     `mapstructure:"triangulation"`
	Cameras       map[string]CameraConfig `mapstructure:"cameras"`
	Report        ReportConfig            `mapstructure:"report"`
}

// PipelineConfig names each stage's folder within a session.
type PipelineConfig struct {
	CalibrationResults *string `mapstructure:"calibration_results"`
	Pose2D             *string `mapstructure:"pose_2d"`
	Pose2DFilter       *string `mapstructure:"pose_2d_filter"`
	Pose3D             *string `mapstructure:"pose_3d"`
}

// FilterConfig selects between raw and filtered 2-D poses.
type FilterConfig struct {
	Enabled *bool `mapstructure:"enabled"`
}

// TriangulationConfig holds triangulation and alignment parameters.
type TriangulationConfig struct {
	CamRegex        *string    `mapstructure:"cam_regex"`
	Ransac          *bool      `mapstructure:"ransac"`
	RansacThreshold *float64   `mapstructure:"ransac_threshold"`
	ScoreThreshold  *float64   `mapstructure:"score_threshold"`
	ReferencePoint  *string    `mapstructure:"reference_point"`
	Axes            [][]string `mapstructure:"axes"`
	MaxFrames       *int       `mapstructure:"max_frames"`
}

// CameraConfig holds per-camera settings.
type CameraConfig struct {
	Offset []float64 `mapstructure:"offset"`
}

// ReportConfig enables per-video diagnostic reports.
type ReportConfig struct {
	Plots *bool `mapstructure:"plots"`
}

// Load reads a TOML configuration file from fsys and validates it.
func Load(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return nil, fmt.Errorf("%w: config file must have .toml extension, got %q", ErrInvalidConfig, ext)
	}

	v := viper.New()
	v.SetFs(fsys.Afero())
	v.SetConfigFile(cleanPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the shape of the axes table.
func (c *Config) Validate() error {
	if c.Nesting != nil && *c.Nesting < 0 {
		return fmt.Errorf("%w: nesting must be non-negative, got %d", ErrInvalidConfig, *c.Nesting)
	}

	re, err := regexp.Compile(c.GetCamRegex())
	if err != nil {
		return fmt.Errorf("%w: cam_regex: %v", ErrInvalidConfig, err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("%w: cam_regex %q needs a capture group for the camera name", ErrInvalidConfig, c.GetCamRegex())
	}

	if s := c.GetScoreThreshold(); s < 0 || s > 1 {
		return fmt.Errorf("%w: score_threshold must be between 0 and 1, got %f", ErrInvalidConfig, s)
	}
	if c.GetRansacThreshold() <= 0 {
		return fmt.Errorf("%w: ransac_threshold must be positive, got %f", ErrInvalidConfig, c.GetRansacThreshold())
	}
	if c.GetMaxFrames() < 0 {
		return fmt.Errorf("%w: max_frames must be non-negative, got %d", ErrInvalidConfig, c.GetMaxFrames())
	}

	for name, cam := range c.Cameras {
		if cam.Offset != nil && len(cam.Offset) != 2 {
			return fmt.Errorf("%w: cameras.%s.offset must be [dx, dy], got %v", ErrInvalidConfig, name, cam.Offset)
		}
	}

	if c.Triangulation.Axes != nil {
		if _, err := parseAxes(c.Triangulation.Axes); err != nil {
			return err
		}
	}
	return nil
}

// GetNesting returns how many folder levels below the project root sessions
// live.
func (c *Config) GetNesting() int {
	if c.Nesting == nil {
		return 1
	}
	return *c.Nesting
}

func strOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetCalibrationFolder returns the calibration results folder name.
func (c *Config) GetCalibrationFolder() string {
	return strOr(c.Pipeline.CalibrationResults, "calibration")
}

// GetPose3DFolder returns the output folder name.
func (c *Config) GetPose3DFolder() string { return strOr(c.Pipeline.Pose3D, "pose-3d") }

// GetPoseFolder returns the 2-D pose folder to read, honouring filter.enabled.
func (c *Config) GetPoseFolder() string {
	if c.GetFilterEnabled() {
		return strOr(c.Pipeline.Pose2DFilter, "pose-2d-filtered")
	}
	return strOr(c.Pipeline.Pose2D, "pose-2d")
}

// GetFilterEnabled returns filter.enabled or the default.
func (c *Config) GetFilterEnabled() bool {
	if c.Filter.Enabled == nil {
		return false
	}
	return *c.Filter.Enabled
}

// GetCamRegex returns the pattern whose first group is the camera name.
func (c *Config) GetCamRegex() string {
	return strOr(c.Triangulation.CamRegex, "-cam([A-Z])")
}

// GetRansac reports whether robust triangulation is selected.
func (c *Config) GetRansac() bool {
	if c.Triangulation.Ransac == nil {
		return false
	}
	return *c.Triangulation.Ransac
}

// GetRansacThreshold returns the robust-mode inlier cutoff in pixels.
func (c *Config) GetRansacThreshold() float64 {
	if c.Triangulation.RansacThreshold == nil {
		return camera.DefaultRansacThreshold
	}
	return *c.Triangulation.RansacThreshold
}

// GetScoreThreshold returns the minimum detection score kept.
func (c *Config) GetScoreThreshold() float64 {
	if c.Triangulation.ScoreThreshold == nil {
		return pose.DefaultScoreThreshold
	}
	return *c.Triangulation.ScoreThreshold
}

// GetMaxFrames returns the frame-dimension cap, 0 for unlimited.
func (c *Config) GetMaxFrames() int {
	if c.Triangulation.MaxFrames == nil {
		return 0
	}
	return *c.Triangulation.MaxFrames
}

// GetPlots reports whether diagnostic reports are written.
func (c *Config) GetPlots() bool {
	if c.Report.Plots == nil {
		return false
	}
	return *c.Report.Plots
}

// Offsets returns the pixel offset for each camera. Camera names are matched
// case-insensitively because configuration keys are case-folded on load.
func (c *Config) Offsets(cameras []string) map[string]pose.Offset {
	byKey := make(map[string]CameraConfig, len(c.Cameras))
	for name, cam := range c.Cameras {
		byKey[strings.ToLower(name)] = cam
	}
	out := make(map[string]pose.Offset, len(cameras))
	for _, name := range cameras {
		off := pose.Offset{}
		if cam, ok := byKey[strings.ToLower(name)]; ok && len(cam.Offset) == 2 {
			off = pose.Offset{DX: cam.Offset[0], DY: cam.Offset[1]}
		}
		out[name] = off
	}
	return out
}
