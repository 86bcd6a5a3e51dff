package session

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/pose3d/internal/camera"
	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/facette/natsort"
)

func naturalSort(s []string) {
	sort.Slice(s, func(i, j int) bool { return natsort.Compare(s[i], s[j]) })
}

// Discover returns the session folders exactly nesting levels below root,
// in natural order. Nesting 0 makes root itself the only session. Hidden
// folders are ignored.
func Discover(fsys fsutil.FileSystem, root string, nesting int) ([]string, error) {
	if nesting < 0 {
		return nil, fmt.Errorf("nesting must be non-negative, got %d", nesting)
	}
	if !fsys.IsDir(root) {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	level := []string{filepath.Clean(root)}
	for depth := 0; depth < nesting; depth++ {
		var next []string
		for _, dir := range level {
			entries, err := fsys.ReadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", dir, err)
			}
			var names []string
			for _, e := range entries {
				if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
					continue
				}
				names = append(names, e.Name())
			}
			naturalSort(names)
			for _, name := range names {
				next = append(next, filepath.Join(dir, name))
			}
		}
		level = next
	}
	return level, nil
}

// FindCalibrationFolder walks from session up to nesting levels towards the
// project root and returns the first <dir>/<calibFolder> holding a
// calibration file.
func FindCalibrationFolder(fsys fsutil.FileSystem, session string, nesting int, calibFolder string) (string, bool) {
	dir := filepath.Clean(session)
	for level := nesting; level >= 0; level-- {
		candidate := filepath.Join(dir, calibFolder)
		if fsys.Exists(filepath.Join(candidate, camera.CalibrationFile)) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
