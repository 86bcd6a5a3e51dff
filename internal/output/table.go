// Package output serialises triangulated trajectories.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/banshee-data/pose3d/internal/triangulate"
)

// FrameColumn is the frame index column name.
const FrameColumn = "fnum"

// Header returns the column names for a landmark list: six columns per
// landmark followed by the frame index.
func Header(landmarks []string) []string {
	header := make([]string, 0, 6*len(landmarks)+1)
	for _, lm := range landmarks {
		header = append(header,
			lm+"_x", lm+"_y", lm+"_z",
			lm+"_error", lm+"_ncams", lm+"_score")
	}
	return append(header, FrameColumn)
}

func formatCount(f pose.Float) string {
	if !f.Valid {
		return ""
	}
	return strconv.Itoa(int(f.V))
}

// WriteTable writes one row per frame. Absent values are empty cells.
func WriteTable(w io.Writer, res *triangulate.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(res.Schema.Landmarks)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	nLm := res.Schema.Len()
	row := make([]string, 6*nLm+1)
	for f := 0; f < res.NumFrames(); f++ {
		for l := 0; l < nLm; l++ {
			p := res.Points[f][l]
			i := 6 * l
			row[i] = p.Coord(0).String()
			row[i+1] = p.Coord(1).String()
			row[i+2] = p.Coord(2).String()
			row[i+3] = res.Errors[f][l].String()
			row[i+4] = formatCount(res.Support[f][l])
			row[i+5] = res.Scores[f][l].String()
		}
		row[6*nLm] = strconv.Itoa(f)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write frame %d: %w", f, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTableFile writes the table to path on fsys.
func WriteTableFile(fsys fsutil.FileSystem, path string, res *triangulate.Result) (err error) {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return WriteTable(f, res)
}
