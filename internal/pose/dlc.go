package pose

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/pose3d/internal/fsutil"
)

// ErrMalformedDetections is returned for detection files that do not follow
// the three-level header layout.
var ErrMalformedDetections = errors.New("malformed detection file")

// ReadDLCCSVFile opens path on fsys and parses it with ReadDLCCSV.
func ReadDLCCSVFile(fsys fsutil.FileSystem, path string) (*Detections, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections: %w", err)
	}
	defer f.Close()

	d, err := ReadDLCCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ReadDLCCSV parses a DeepLabCut CSV export. The header is keyed by scorer,
// then landmark (bodyparts), then coordinate (x, y, likelihood), with an
// optional "individuals" row between scorer and bodyparts. Only the columns
// of the first scorer and the first individual are read. The first column of each data row is the frame index; empty or NaN
// cells become NaN and are treated as absent by Load.
func ReadDLCCSV(r io.Reader) (*Detections, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var scorers, individuals, bodyparts, coords []string
	for coords == nil {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing coords header", ErrMalformedDetections)
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(rec[0])) {
		case "scorer":
			scorers = rec
		case "bodyparts":
			bodyparts = rec
		case "coords":
			coords = rec
		case "individuals":
			individuals = rec
		default:
			return nil, fmt.Errorf("%w: unexpected header row %q", ErrMalformedDetections, rec[0])
		}
	}
	if scorers == nil || bodyparts == nil {
		return nil, fmt.Errorf("%w: missing scorer or bodyparts header", ErrMalformedDetections)
	}
	if len(scorers) != len(bodyparts) || len(bodyparts) != len(coords) || len(coords) < 2 {
		return nil, fmt.Errorf("%w: header rows have different widths", ErrMalformedDetections)
	}
	if individuals != nil && len(individuals) != len(coords) {
		return nil, fmt.Errorf("%w: header rows have different widths", ErrMalformedDetections)
	}

	// column indices per landmark: x, y, likelihood
	type cols struct{ x, y, s int }
	scorer := scorers[1]
	var landmarks []string
	byName := map[string]*cols{}
	for i := 1; i < len(coords); i++ {
		if scorers[i] != scorer {
			continue
		}
		if individuals != nil && individuals[i] != individuals[1] {
			continue
		}
		name := bodyparts[i]
		c, ok := byName[name]
		if !ok {
			c = &cols{x: -1, y: -1, s: -1}
			byName[name] = c
			landmarks = append(landmarks, name)
		}
		switch strings.ToLower(coords[i]) {
		case "x":
			c.x = i
		case "y":
			c.y = i
		case "likelihood", "score", "confidence":
			c.s = i
		}
	}
	layout := make([]cols, len(landmarks))
	for i, name := range landmarks {
		c := byName[name]
		if c.x < 0 || c.y < 0 || c.s < 0 {
			return nil, fmt.Errorf("%w: landmark %q lacks x, y or likelihood", ErrMalformedDetections, name)
		}
		layout[i] = *c
	}

	d := &Detections{Schema: NewSchema(landmarks)}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		if len(rec) != len(coords) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrMalformedDetections, line, len(rec), len(coords))
		}
		frame, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: bad frame index %q", ErrMalformedDetections, line, rec[0])
		}
		row := make([]Detection, len(layout))
		for i, c := range layout {
			row[i] = Detection{
				X:     parseCell(rec[c.x]),
				Y:     parseCell(rec[c.y]),
				Score: parseCell(rec[c.s]),
			}
		}
		d.Frames = append(d.Frames, frame)
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
