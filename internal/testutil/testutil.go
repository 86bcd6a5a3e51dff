// Package testutil provides shared test fixtures: a synthetic camera rig
// with its calibration file, DeepLabCut CSV builders and assertion helpers.
//
// It depends on nothing else in the module so any package's internal tests
// can import it.
package testutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertNear fails the test if got and want differ by more than tol.
func AssertNear(t testing.TB, got, want, tol float64, what string) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g ± %g", what, got, want, tol)
	}
}

// RigCamera is a distortion-free pinhole camera.
type RigCamera struct {
	Name   string
	Focal  float64
	Cx, Cy float64
	Size   [2]int
	// Rvec is the world-to-camera rotation as a Rodrigues vector.
	Rvec [3]float64
	Tvec [3]float64
}

// Rig is an ordered list of cameras.
type Rig []RigCamera

// StandardRig places the named cameras five units from the origin, all
// looking at it, with yaw spread evenly over ±30 degrees. A single camera
// looks straight down the z axis.
func StandardRig(names ...string) Rig {
	rig := make(Rig, len(names))
	for i, name := range names {
		yaw := 0.0
		if len(names) > 1 {
			yaw = (-30 + 60*float64(i)/float64(len(names)-1)) * math.Pi / 180
		}
		rig[i] = RigCamera{
			Name:  name,
			Focal: 1000,
			Cx:    640,
			Cy:    480,
			Size:  [2]int{1280, 960},
			Rvec:  [3]float64{0, yaw, 0},
			Tvec:  [3]float64{0, 0, 5},
		}
	}
	return rig
}

func (c RigCamera) rotate(p r3.Vec) r3.Vec {
	rv := r3.Vec{X: c.Rvec[0], Y: c.Rvec[1], Z: c.Rvec[2]}
	theta := r3.Norm(rv)
	if theta == 0 {
		return p
	}
	k := r3.Scale(1/theta, rv)
	// Rodrigues' rotation formula
	return r3.Add(r3.Add(
		r3.Scale(math.Cos(theta), p),
		r3.Scale(math.Sin(theta), r3.Cross(k, p))),
		r3.Scale((1-math.Cos(theta))*r3.Dot(k, p), k))
}

// Project maps a world point to pixel coordinates.
func (c RigCamera) Project(p [3]float64) (u, v float64) {
	pc := r3.Add(c.rotate(r3.Vec{X: p[0], Y: p[1], Z: p[2]}), r3.Vec{X: c.Tvec[0], Y: c.Tvec[1], Z: c.Tvec[2]})
	return c.Focal*pc.X/pc.Z + c.Cx, c.Focal*pc.Y/pc.Z + c.Cy
}

func floats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// CalibrationTOML renders the rig as a calibration file with one [cam_N]
// table per camera and a [metadata] table.
func (r Rig) CalibrationTOML() string {
	var b strings.Builder
	for i, c := range r {
		fmt.Fprintf(&b, "[cam_%d]\n", i)
		fmt.Fprintf(&b, "name = %q\n", c.Name)
		fmt.Fprintf(&b, "size = [%d, %d]\n", c.Size[0], c.Size[1])
		fmt.Fprintf(&b, "matrix = [%s, %s, %s]\n",
			floats([]float64{c.Focal, 0, c.Cx}),
			floats([]float64{0, c.Focal, c.Cy}),
			floats([]float64{0, 0, 1}))
		fmt.Fprintf(&b, "distortions = %s\n", floats([]float64{0, 0, 0, 0, 0}))
		fmt.Fprintf(&b, "rotation = %s\n", floats(c.Rvec[:]))
		fmt.Fprintf(&b, "translation = %s\n\n", floats(c.Tvec[:]))
	}
	b.WriteString("[metadata]\nadjusted = true\nerror = 0.25\n")
	return b.String()
}

// Det is one detection cell. Missing cells are written empty.
type Det struct {
	X, Y, Score float64
	Missing     bool
}

// DLCCSV renders a DeepLabCut CSV with one data row per entry of rows; the
// row index is the frame index.
func DLCCSV(landmarks []string, rows [][]Det) string {
	var b strings.Builder
	header := func(label string, cell func(lm string, coord string) string) {
		b.WriteString(label)
		for _, lm := range landmarks {
			for _, coord := range []string{"x", "y", "likelihood"} {
				b.WriteString("," + cell(lm, coord))
			}
		}
		b.WriteString("\n")
	}
	header("scorer", func(string, string) string { return "DLC_resnet50" })
	header("bodyparts", func(lm, _ string) string { return lm })
	header("coords", func(_, coord string) string { return coord })

	for f, row := range rows {
		b.WriteString(strconv.Itoa(f))
		for _, d := range row {
			if d.Missing {
				b.WriteString(",,,")
				continue
			}
			fmt.Fprintf(&b, ",%s,%s,%s",
				strconv.FormatFloat(d.X, 'g', -1, 64),
				strconv.FormatFloat(d.Y, 'g', -1, 64),
				strconv.FormatFloat(d.Score, 'g', -1, 64))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ObserveTrack projects world positions track[frame][landmark] through cam.
// Landmarks for which visible returns false are written as missing.
func ObserveTrack(cam RigCamera, track [][][3]float64, score float64, visible func(frame, landmark int) bool) [][]Det {
	rows := make([][]Det, len(track))
	for f, pts := range track {
		rows[f] = make([]Det, len(pts))
		for l, p := range pts {
			if visible != nil && !visible(f, l) {
				rows[f][l] = Det{Missing: true}
				continue
			}
			u, v := cam.Project(p)
			rows[f][l] = Det{X: u, Y: v, Score: score}
		}
	}
	return rows
}
