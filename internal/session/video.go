package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/banshee-data/pose3d/internal/monitoring"
	"go.uber.org/zap"
)

// ErrDuplicateCamera is returned when two detection files of one video map
// to the same camera name.
var ErrDuplicateCamera = errors.New("duplicate camera for video")

// Video is the set of per-camera detection files sharing a video name.
type Video struct {
	Name string
	// Files maps camera name to detection file path.
	Files map[string]string
}

// Cameras returns the video's camera names, sorted.
func (v Video) Cameras() []string {
	names := make([]string, 0, len(v.Files))
	for cam := range v.Files {
		names = append(names, cam)
	}
	sort.Strings(names)
	return names
}

// VideoName strips the camera pattern and the extension from a file's base
// name: "vid1-camA.csv" becomes "vid1".
func VideoName(re *regexp.Regexp, file string) string {
	name := re.ReplaceAllString(filepath.Base(file), "")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// CameraName returns the first capture group of re in the file's base name.
func CameraName(re *regexp.Regexp, file string) (string, bool) {
	m := re.FindStringSubmatch(filepath.Base(file))
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// GroupVideos groups detection files by video name, in natural order. Files
// without a camera name are logged and ignored.
func GroupVideos(re *regexp.Regexp, files []string) ([]Video, error) {
	byName := map[string]*Video{}
	var names []string
	for _, f := range files {
		cam, ok := CameraName(re, f)
		if !ok {
			monitoring.L().Warn("no camera name in detection file", zap.String("file", f), zap.String("cam_regex", re.String()))
			continue
		}
		name := VideoName(re, f)
		v, ok := byName[name]
		if !ok {
			v = &Video{Name: name, Files: map[string]string{}}
			byName[name] = v
			names = append(names, name)
		}
		if prev, dup := v.Files[cam]; dup {
			return nil, fmt.Errorf("%w %q: camera %s in both %s and %s", ErrDuplicateCamera, name, cam, prev, f)
		}
		v.Files[cam] = f
	}
	naturalSort(names)

	videos := make([]Video, len(names))
	for i, name := range names {
		videos[i] = *byName[name]
	}
	return videos, nil
}
