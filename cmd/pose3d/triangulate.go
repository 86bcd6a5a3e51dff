package main

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/pose3d/internal/config"
	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/banshee-data/pose3d/internal/monitoring"
	"github.com/banshee-data/pose3d/internal/runstore"
	"github.com/banshee-data/pose3d/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type triangulateOptions struct {
	configPath string
	jobs       int
	dbPath     string

	// fs is swapped for an in-memory filesystem in tests.
	fs fsutil.FileSystem
}

func newTriangulateCmd() *cobra.Command {
	opts := &triangulateOptions{}
	cmd := &cobra.Command{
		Use:   "triangulate [project-dir]",
		Short: "Triangulate every session of a project",
		Long: `Walks the project directory down to the configured nesting depth, and for
each session with a calibration triangulates every video whose 3-D output
does not exist yet. The project directory defaults to the current directory;
the configuration defaults to <project-dir>/config.toml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runTriangulate(cmd, opts, root)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to config.toml (default <project-dir>/config.toml)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 1, "videos processed in parallel per session")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "record each produced table in this SQLite run ledger")
	return cmd
}

func runTriangulate(cmd *cobra.Command, opts *triangulateOptions, root string) error {
	if opts.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", opts.jobs)
	}
	fsys := opts.fs
	if fsys == nil {
		fsys = fsutil.NewOSFileSystem()
	}
	configPath := opts.configPath
	if configPath == "" {
		configPath = filepath.Join(root, config.DefaultConfigName)
	}

	cfg, err := config.Load(fsys, configPath)
	if err != nil {
		return err
	}

	runner := &session.Runner{FS: fsys, Config: cfg, Jobs: opts.jobs}
	if opts.dbPath != "" {
		store, err := runstore.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runner.Recorder = store
	}

	sum, err := runner.Run(cmd.Context(), root)
	if err != nil {
		return err
	}
	monitoring.L().Info("triangulation complete",
		zap.Int("sessions", sum.Sessions),
		zap.Int("sessions_skipped", sum.SessionsSkipped),
		zap.Int("videos", sum.Videos),
		zap.Int("videos_skipped", sum.VideosSkipped))
	fmt.Fprintf(cmd.OutOrStdout(), "%d sessions (%d without calibration), %d videos triangulated, %d already done\n",
		sum.Sessions, sum.SessionsSkipped, sum.Videos, sum.VideosSkipped)
	return nil
}
