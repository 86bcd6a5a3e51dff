// Package report renders per-video diagnostics for a triangulation result:
// a PNG of reprojection error over frames and an HTML chart of camera
// support.
package report

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/pose3d/internal/fsutil"
	"github.com/banshee-data/pose3d/internal/monitoring"
	"github.com/banshee-data/pose3d/internal/pose"
	"github.com/banshee-data/pose3d/internal/triangulate"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	// ErrorsSuffix and CoverageSuffix are appended to the video name.
	ErrorsSuffix   = ".errors.png"
	CoverageSuffix = ".coverage.html"

	plotWidth  = 12 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// Paths returns the error plot and coverage chart paths for a video in dir.
func Paths(dir, video string) (errorsPath, coveragePath string) {
	return filepath.Join(dir, video+ErrorsSuffix), filepath.Join(dir, video+CoverageSuffix)
}

// series collects the valid (frame, value) pairs of landmark l.
func series(values [][]pose.Float, l int) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for f := range values {
		if v := values[f][l]; v.Valid {
			pts = append(pts, plotter.XY{X: float64(f), Y: v.V})
		}
	}
	return pts
}

// ErrorPlot builds a line per landmark of mean reprojection error against
// frame index. Landmarks with no supported frame are left out.
func ErrorPlot(res *triangulate.Result, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Reprojection error (px)"
	p.Legend.Top = true

	for l, name := range res.Schema.Landmarks {
		pts := series(res.Errors, l)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("landmark %s: %w", name, err)
		}
		line.Color = plotutil.Color(l)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p, nil
}

// WriteErrorPlot renders ErrorPlot as PNG to path on fsys.
func WriteErrorPlot(fsys fsutil.FileSystem, path string, res *triangulate.Result, title string) (err error) {
	p, err := ErrorPlot(res, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render error plot: %w", err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create error plot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close error plot: %w", cerr)
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write error plot: %w", err)
	}
	return nil
}

// CoverageChart builds a line chart of how many cameras supported each
// landmark per frame. Unsupported frames are gaps.
func CoverageChart(res *triangulate.Result, title string) *charts.Line {
	frames := make([]int, res.NumFrames())
	for f := range frames {
		frames[f] = f
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("mode=%s frames=%d supported=%d", res.Mode, res.NumFrames(), res.Supported()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cameras", NameLocation: "middle", NameGap: 30, Min: 0}),
	)
	line.SetXAxis(frames)

	for l, name := range res.Schema.Landmarks {
		data := make([]opts.LineData, res.NumFrames())
		for f := range data {
			// "-" is the echarts marker for a missing sample
			var v interface{} = "-"
			if s := res.Support[f][l]; s.Valid {
				v = int(s.V)
			}
			data[f] = opts.LineData{Value: v}
		}
		line.AddSeries(name, data)
	}
	return line
}

// WriteCoverageChart renders CoverageChart as HTML to path on fsys.
func WriteCoverageChart(fsys fsutil.FileSystem, path string, res *triangulate.Result, title string) (err error) {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create coverage chart: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close coverage chart: %w", cerr)
		}
	}()
	if err := CoverageChart(res, title).Render(f); err != nil {
		return fmt.Errorf("render coverage chart: %w", err)
	}
	return nil
}

// Write produces both reports for video into dir.
func Write(fsys fsutil.FileSystem, dir, video string, res *triangulate.Result) error {
	errorsPath, coveragePath := Paths(dir, video)
	if err := WriteErrorPlot(fsys, errorsPath, res, video); err != nil {
		return err
	}
	if err := WriteCoverageChart(fsys, coveragePath, res, video); err != nil {
		return err
	}
	monitoring.L().Debug("wrote reports",
		zap.String("video", video),
		zap.String("errors", errorsPath),
		zap.String("coverage", coveragePath))
	return nil
}
