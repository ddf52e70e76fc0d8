package chart

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/chrislowzhengxi/data-viz/internal/fsutil"
	"github.com/chrislowzhengxi/data-viz/internal/mic"
	"github.com/chrislowzhengxi/data-viz/internal/monitoring"
	"github.com/chrislowzhengxi/data-viz/internal/stats"
)

// Axis and legend titles.
const (
	XAxisTitle  = "Antibiotic"
	YAxisTitle  = "Minimum Inhibitory Concentration (MIC)"
	LegendTitle = "Gram Stain"
)

// Options controls both renderers. Lengths are in points.
type Options struct {
	Title        string
	Width        vg.Length
	Height       vg.Length
	YMin         float64
	YMax         float64
	Jitter       float64
	Seed         uint64
	PointRadius  vg.Length
	PointOpacity float64
	BoxWidth     vg.Length
	GroupSpread  float64
	GridOpacity  float64
}

// DefaultOptions mirrors the defaults of config.ChartConfig.
func DefaultOptions() Options {
	return Options{
		Title:        "MIC by Antibiotic and Gram Stain (log scale)",
		Width:        620,
		Height:       460,
		YMin:         1e-3,
		YMax:         1e3,
		Jitter:       0.08,
		Seed:         1,
		PointRadius:  2.5,
		PointOpacity: 0.2,
		BoxWidth:     24,
		GroupSpread:  0.5,
		GridOpacity:  0.3,
	}
}

// Point is a placed observation.
type Point struct {
	mic.Record
	X float64
}

// PlacePoints assigns every record its jittered X position. Records are
// visited in input order so a fixed seed reproduces the layout.
func PlacePoints(records []mic.Record, layout *Layout, jitter float64, seed uint64) []Point {
	j := NewJitterer(jitter, seed)
	out := make([]Point, 0, len(records))
	for _, r := range records {
		x, ok := layout.Location(r.Antibiotic, r.GramStaining)
		if !ok {
			continue
		}
		out = append(out, Point{Record: r, X: x + j.Next()})
	}
	return out
}

// RenderStatic builds the box plot with jittered points.
func RenderStatic(records []mic.Record, o Options) (*plot.Plot, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("render: %w", mic.ErrNoRecords)
	}
	layout := NewLayout(records, o.GroupSpread)

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = XAxisTitle
	p.Y.Label.Text = YAxisTitle

	grid := plotter.NewGrid()
	gridColor := withAlpha(color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}, o.GridOpacity)
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	grid.Vertical.Dashes = nil
	grid.Horizontal.Dashes = nil
	p.Add(grid)

	ls, err := buildLayers(records, layout, o)
	if err != nil {
		return nil, err
	}
	for _, b := range ls.boxes {
		p.Add(b)
	}
	p.Legend.Add(LegendTitle)
	for i, s := range ls.points {
		p.Add(s)
		p.Legend.Add(ls.names[i], ls.swatches[i])
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 6
	p.Legend.YOffs = -6

	p.NominalX(layout.Antibiotics...)
	p.X.Min = -0.5
	p.X.Max = float64(len(layout.Antibiotics)) - 0.5

	p.Y.Scale = plot.LogScale{}
	p.Y.Min = o.YMin
	p.Y.Max = o.YMax
	var ticks []plot.Tick
	for _, v := range DecadeTicks(o.YMin, o.YMax) {
		ticks = append(ticks, plot.Tick{Value: v, Label: FormatExp(v)})
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)

	return p, nil
}

// layers are the data plotters of one chart, boxes drawn first so the
// points sit on top.
type layers struct {
	boxes    []*plotter.BoxPlot
	points   []*plotter.Scatter
	swatches []*plotter.Scatter
	names    []string
}

func buildLayers(records []mic.Record, layout *Layout, o Options) (*layers, error) {
	colors := Palette(len(layout.GramStains))
	ls := &layers{}

	for _, g := range stats.GroupSummaries(records) {
		loc, _ := layout.Location(g.Antibiotic, g.GramStaining)
		gi := layout.gramIndex[g.GramStaining]
		box, err := newBox(stats.Values(records, g.Antibiotic, g.GramStaining), g.Summary, loc, o.BoxWidth, colors[gi])
		if err != nil {
			return nil, fmt.Errorf("box %s/%s: %w", g.Antibiotic, g.GramStaining, err)
		}
		ls.boxes = append(ls.boxes, box)
		monitoring.Debugf("box %s/%s n=%d median=%g at x=%.3f", g.Antibiotic, g.GramStaining, g.N, g.Median, loc)
	}

	points := PlacePoints(records, layout, o.Jitter, o.Seed)
	for gi, gram := range layout.GramStains {
		var xys plotter.XYs
		for _, pt := range points {
			if pt.GramStaining == gram {
				xys = append(xys, plotter.XY{X: pt.X, Y: pt.MIC})
			}
		}
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("points %s: %w", gram, err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = o.PointRadius
		s.GlyphStyle.Color = withAlpha(colors[gi], o.PointOpacity)

		// Legend swatches stay opaque so faint points remain identifiable.
		swatch := *s
		swatch.GlyphStyle.Color = colors[gi]

		ls.points = append(ls.points, s)
		ls.swatches = append(ls.swatches, &swatch)
		ls.names = append(ls.names, gram)
	}
	return ls, nil
}

// newBox wraps plotter.BoxPlot but takes its statistics from s, so the drawn
// quartiles and whiskers match the exported summary. Outliers are not drawn
// because every observation is already plotted as a point.
func newBox(values []float64, s stats.Summary, loc float64, width vg.Length, c color.RGBA) (*plotter.BoxPlot, error) {
	box, err := plotter.NewBoxPlot(width, loc, plotter.Values(values))
	if err != nil {
		return nil, err
	}
	box.Median = s.Median
	box.Quartile1 = s.Q1
	box.Quartile3 = s.Q3
	box.AdjLow = s.LowWhisker
	box.AdjHigh = s.HighWhisker
	box.Outside = nil

	box.FillColor = withAlpha(c, 0.5)
	box.BoxStyle.Color = c
	box.WhiskerStyle.Color = c
	box.MedianStyle.Color = color.Black
	box.MedianStyle.Width = vg.Points(1.5)
	return box, nil
}

// StaticFormat maps a file extension to the gonum/plot writer format.
func StaticFormat(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "svg", "pdf", "png", "eps":
		return ext, nil
	}
	return "", fmt.Errorf("unsupported static chart format %q", ext)
}

// WriteStatic encodes p in format to w.
func WriteStatic(p *plot.Plot, w io.Writer, width, height vg.Length, format string) error {
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("failed to create %s writer: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// SaveStatic writes p to path on fsys; the format follows the extension.
func SaveStatic(p *plot.Plot, fsys fsutil.FileSystem, path string, width, height vg.Length) error {
	format, err := StaticFormat(path)
	if err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteStatic(p, f, width, height, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
