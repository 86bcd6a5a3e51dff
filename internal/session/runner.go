// Package session walks a project tree and triangulates every video of
// every session that has a calibration.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/banshee-data/pose3d/internal/align"
	"github.com/banshee-data/pose3d/internal/camera"
	"github.com/banshee-data/pose3d/internal/config"
	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/banshee-data/pose3d/internal/monitoring"
	"github.com/banshee-data/pose3d/internal/output"
	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/banshee-data/pose3d/internal/report"
	"github.com/banshee-data/pose3d/internal/runstore"
	"github.com/banshee-data/pose3d/internal/triangulate"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder stores a record of each produced table. *runstore.Store
// implements it.
type Recorder interface {
	Insert(run *runstore.Run) error
}

// Summary counts what a run did.
type Summary struct {
	Sessions        int
	SessionsSkipped int
	Videos          int
	VideosSkipped   int
}

// Runner triangulates every session under a project root.
type Runner struct {
	FS     fsutil.FileSystem
	Config *config.Config

	// Jobs bounds how many videos of a session are processed at once.
	// Values below 1 mean 1.
	Jobs int

	// Recorder, when set, receives one record per produced table.
	Recorder Recorder

	camRegex *regexp.Regexp
	frame    *config.FrameSpec

	mu      sync.Mutex
	summary Summary
}

func (r *Runner) count(fn func(s *Summary)) {
	r.mu.Lock()
	fn(&r.summary)
	r.mu.Unlock()
}

func (r *Runner) prepare() error {
	if r.FS == nil || r.Config == nil {
		return fmt.Errorf("runner needs a filesystem and a configuration")
	}
	re, err := regexp.Compile(r.Config.GetCamRegex())
	if err != nil {
		return fmt.Errorf("%w: cam_regex: %v", config.ErrInvalidConfig, err)
	}
	frame, err := r.Config.FrameSpec()
	if err != nil {
		return err
	}
	r.camRegex, r.frame = re, frame
	r.mu.Lock()
	r.summary = Summary{}
	r.mu.Unlock()
	return nil
}

// Run processes every session under root. Sessions without a calibration
// and videos whose output already exists are skipped. The first error stops
// the run.
func (r *Runner) Run(ctx context.Context, root string) (Summary, error) {
	if err := r.prepare(); err != nil {
		return Summary{}, err
	}
	sessions, err := Discover(r.FS, root, r.Config.GetNesting())
	if err != nil {
		return Summary{}, err
	}
	monitoring.L().Info("discovered sessions", zap.String("root", root), zap.Int("sessions", len(sessions)))

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return r.snapshot(), err
		}
		if err := r.processSession(ctx, s); err != nil {
			return r.snapshot(), fmt.Errorf("session %s: %w", s, err)
		}
	}
	return r.snapshot(), nil
}

func (r *Runner) snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// RunSession processes a single session folder.
func (r *Runner) RunSession(ctx context.Context, session string) (Summary, error) {
	if err := r.prepare(); err != nil {
		return Summary{}, err
	}
	err := r.processSession(ctx, session)
	return r.snapshot(), err
}

func (r *Runner) processSession(ctx context.Context, session string) error {
	cfg := r.Config
	r.count(func(s *Summary) { s.Sessions++ })
	log := monitoring.L().With(zap.String("session", session))

	calibDir, ok := FindCalibrationFolder(r.FS, session, cfg.GetNesting(), cfg.GetCalibrationFolder())
	if !ok {
		log.Info("skipping session: no calibration found")
		r.count(func(s *Summary) { s.SessionsSkipped++ })
		return nil
	}

	poseDir := filepath.Join(session, cfg.GetPoseFolder())
	files, err := r.FS.Glob(filepath.Join(poseDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("list detections: %w", err)
	}
	videos, err := GroupVideos(r.camRegex, files)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		log.Debug("no detection files", zap.String("pose_dir", poseDir))
		return nil
	}

	outDir := filepath.Join(session, cfg.GetPose3DFolder())
	if err := r.FS.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	calibPath := filepath.Join(calibDir, camera.CalibrationFile)
	loadCalibration := sync.OnceValues(func() (*camera.Group, error) {
		return camera.LoadCalibration(r.FS, calibPath)
	})

	jobs := r.Jobs
	if jobs < 1 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, v := range videos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.processVideo(session, outDir, v, loadCalibration); err != nil {
				return fmt.Errorf("video %s: %w", v.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) processVideo(session, outDir string, v Video, loadCalibration func() (*camera.Group, error)) error {
	cfg := r.Config
	log := monitoring.L().With(zap.String("session", session), zap.String("video", v.Name))

	outPath := filepath.Join(outDir, v.Name+".csv")
	if r.FS.Exists(outPath) {
		log.Info("skipping video: output exists", zap.String("output", outPath))
		r.count(func(s *Summary) { s.VideosSkipped++ })
		return nil
	}

	calib, err := loadCalibration()
	if err != nil {
		return err
	}

	cameras := v.Cameras()
	fs, err := pose.LoadFiles(r.FS, v.Files, cfg.Offsets(cameras), pose.LoadOptions{MaxFrames: cfg.GetMaxFrames()})
	if err != nil {
		return err
	}
	group, err := calib.Select(fs.Cameras)
	if err != nil {
		return err
	}
	group.RansacThreshold = cfg.GetRansacThreshold()

	mode := triangulate.ModeDirect
	if cfg.GetRansac() {
		mode = triangulate.ModeRobust
	}
	log.Info("triangulating",
		zap.Strings("cameras", cameras),
		zap.Int("frames", fs.NumFrames()),
		zap.String("mode", string(mode)))

	filtered := pose.FilterByConfidence(fs, cfg.GetScoreThreshold())
	res, err := triangulate.Aggregate(filtered, group, mode)
	if err != nil {
		return err
	}
	res, err = align.Apply(res, r.frame)
	if err != nil {
		return err
	}

	// an existing table marks the video done, so it only stays on success
	if err := output.WriteTableFile(r.FS, outPath, res); err != nil {
		_ = r.FS.RemoveAll(outPath)
		return err
	}
	if err := r.finish(session, outDir, v, cameras, mode, res); err != nil {
		_ = r.FS.RemoveAll(outPath)
		return err
	}

	r.count(func(s *Summary) { s.Videos++ })
	log.Info("wrote 3d poses", zap.String("output", outPath), zap.Int("supported", res.Supported()))
	return nil
}

// finish writes the optional report and ledger record for a produced table.
func (r *Runner) finish(session, outDir string, v Video, cameras []string, mode triangulate.Mode, res *triangulate.Result) error {
	if r.Config.GetPlots() {
		if err := report.Write(r.FS, outDir, v.Name, res); err != nil {
			return err
		}
	}
	if r.Recorder == nil {
		return nil
	}
	run := &runstore.Run{
		Session:            session,
		Video:              v.Name,
		OutputPath:         filepath.Join(outDir, v.Name+".csv"),
		Mode:               string(mode),
		Frames:             res.NumFrames(),
		Landmarks:          res.Schema.Len(),
		Cameras:            cameras,
		TriangulatedPoints: res.Supported(),
		Aligned:            r.frame != nil,
	}
	if me := res.MeanError(); me.Valid {
		run.MeanError = &me.V
	}
	if err := r.Recorder.Insert(run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
