package session

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, fs fsutil.FileSystem, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, fs.MkdirAll(d, 0o755))
	}
}

func TestDiscover(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	mkdirs(t, fs,
		"/proj/mouse10/session1",
		"/proj/mouse2/session2",
		"/proj/mouse2/session1",
		"/proj/mouse2/.hidden",
		"/proj/.git/objects",
	)
	require.NoError(t, fs.WriteFile("/proj/notes.txt", []byte("x"), 0o644))

	tests := []struct {
		name    string
		nesting int
		want    []string
	}{
		{"root is the session", 0, []string{"/proj"}},
		{"one level", 1, []string{"/proj/mouse2", "/proj/mouse10"}},
		{"two levels", 2, []string{
			"/proj/mouse2/session1",
			"/proj/mouse2/session2",
			"/proj/mouse10/session1",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(fs, "/proj", tt.nesting)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Discover mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiscover_Errors(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	_, err := Discover(fs, "/missing", 1)
	require.Error(t, err)

	mkdirs(t, fs, "/proj")
	_, err = Discover(fs, "/proj", -1)
	require.Error(t, err)
}

func TestFindCalibrationFolder(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	mkdirs(t, fs, "/proj/calibration", "/proj/m1/s1/calibration", "/proj/m1/s2", "/proj/m2/s1")
	require.NoError(t, fs.WriteFile("/proj/calibration/calibration.toml", nil, 0o644))
	require.NoError(t, fs.WriteFile("/proj/m1/s1/calibration/calibration.toml", nil, 0o644))

	tests := []struct {
		name    string
		session string
		nesting int
		want    string
		ok      bool
	}{
		{"session's own calibration wins", "/proj/m1/s1", 2, "/proj/m1/s1/calibration", true},
		{"found at project root", "/proj/m1/s2", 2, "/proj/calibration", true},
		{"walk limited by nesting", "/proj/m2/s1", 1, "", false},
		{"nesting zero checks only the session", "/proj/m1/s2", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCalibrationFolder(fs, tt.session, tt.nesting, "calibration")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideoAndCameraName(t *testing.T) {
	re := regexp.MustCompile(`-cam([A-Z])`)

	assert.Equal(t, "vid1", VideoName(re, "/s/pose-2d/vid1-camA.csv"))
	assert.Equal(t, "2019-08-02-vid01", VideoName(re, "2019-08-02-vid01-camB.csv"))

	cam, ok := CameraName(re, "/s/pose-2d/vid1-camC.csv")
	require.True(t, ok)
	assert.Equal(t, "C", cam)

	_, ok = CameraName(re, "/s/pose-2d/vid1.csv")
	assert.False(t, ok)
}

func TestGroupVideos(t *testing.T) {
	re := regexp.MustCompile(`-cam([A-Z])`)
	dir := "/s/pose-2d"
	files := []string{
		filepath.Join(dir, "vid10-camA.csv"),
		filepath.Join(dir, "vid2-camB.csv"),
		filepath.Join(dir, "vid2-camA.csv"),
		filepath.Join(dir, "vid10-camB.csv"),
		filepath.Join(dir, "stray.csv"),
	}

	videos, err := GroupVideos(re, files)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "vid2", videos[0].Name, "natural order puts vid2 before vid10")
	assert.Equal(t, "vid10", videos[1].Name)
	assert.Equal(t, []string{"A", "B"}, videos[0].Cameras())
	assert.Equal(t, filepath.Join(dir, "vid2-camB.csv"), videos[0].Files["B"])
}

func TestGroupVideos_DuplicateCamera(t *testing.T) {
	re := regexp.MustCompile(`cam([A-Z])`)
	_, err := GroupVideos(re, []string{"/a/vid1-camA.csv", "/b/vid1-camA.csv"})
	require.ErrorIs(t, err, ErrDuplicateCamera)
}
