package chart

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"

	"github.com/chrislowzhengxi/data-viz/internal/fsutil"
	"github.com/chrislowzhengxi/data-viz/internal/mic"
	"github.com/chrislowzhengxi/data-viz/internal/testutil"
)

func burtinRecords(t *testing.T) []mic.Record {
	t.Helper()
	tbl, err := mic.ReadWide(strings.NewReader(testutil.BurtinCSV))
	require.NoError(t, err)
	records, err := mic.Melt(tbl, testutil.BurtinAntibiotics)
	require.NoError(t, err)
	return records
}

func TestLayout(t *testing.T) {
	l := NewLayout(burtinRecords(t), 0.5)

	assert.Equal(t, []string{"neomycin", "penicilin", "streptomycin"}, l.Antibiotics)
	assert.Equal(t, []string{"negative", "positive"}, l.GramStains)
	assert.InDelta(t, -0.125, l.Offset(0), 1e-12)
	assert.InDelta(t, 0.125, l.Offset(1), 1e-12)

	x, ok := l.Location("penicilin", "positive")
	require.True(t, ok)
	assert.InDelta(t, 1.125, x, 1e-12)

	_, ok = l.Location("vancomycin", "positive")
	assert.False(t, ok)
	_, ok = l.Location("penicilin", "variable")
	assert.False(t, ok)
}

func TestLayoutSingleGramStain(t *testing.T) {
	records := []mic.Record{
		{Bacteria: "A", GramStaining: "negative", Antibiotic: "neomycin", MIC: 1},
		{Bacteria: "B", GramStaining: "negative", Antibiotic: "penicilin", MIC: 2},
	}
	l := NewLayout(records, 0.5)
	assert.Equal(t, 0.0, l.Offset(0))
	x, ok := l.Location("penicilin", "negative")
	require.True(t, ok)
	assert.Equal(t, 1.0, x)
}

func TestJitterer(t *testing.T) {
	a := NewJitterer(0.2, 7)
	b := NewJitterer(0.2, 7)
	c := NewJitterer(0.2, 8)

	var sameAsC int
	for i := 0; i < 100; i++ {
		va, vb, vc := a.Next(), b.Next(), c.Next()
		assert.Equal(t, va, vb, "same seed must repeat")
		assert.GreaterOrEqual(t, va, -0.1)
		assert.Less(t, va, 0.1)
		if va == vc {
			sameAsC++
		}
	}
	assert.Less(t, sameAsC, 100, "different seeds should diverge")

	off := NewJitterer(0, 7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0.0, off.Next())
	}
}

func TestPlacePoints(t *testing.T) {
	records := burtinRecords(t)
	l := NewLayout(records, 0.5)

	points := PlacePoints(records, l, 0, 1)
	require.Len(t, points, len(records))
	for _, p := range points {
		want, _ := l.Location(p.Antibiotic, p.GramStaining)
		assert.Equal(t, want, p.X)
	}

	jittered := PlacePoints(records, l, 0.08, 1)
	again := PlacePoints(records, l, 0.08, 1)
	assert.Equal(t, jittered, again)
	for _, p := range jittered {
		centre, _ := l.Location(p.Antibiotic, p.GramStaining)
		assert.InDelta(t, centre, p.X, 0.04+1e-12)
	}
}

func TestDecadeTicks(t *testing.T) {
	assert.Equal(t, []float64{1e-3, 1e-2, 1e-1, 1, 10, 100, 1000}, DecadeTicks(1e-3, 1e3))
	assert.Equal(t, []float64{1, 10}, DecadeTicks(0.5, 50))
	assert.Nil(t, DecadeTicks(0, 10))
	assert.Nil(t, DecadeTicks(10, 1))
}

func TestFormatExp(t *testing.T) {
	tests := map[float64]string{
		1e-3: "1.0e-3",
		1e-2: "1.0e-2",
		1:    "1.0e+0",
		10:   "1.0e+1",
		1000: "1.0e+3",
		2.5:  "2.5e+0",
		1e12: "1.0e+12",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatExp(in), "FormatExp(%g)", in)
	}
}

func TestPalette(t *testing.T) {
	assert.Nil(t, Palette(0))

	two := Palette(2)
	require.Len(t, two, 2)
	assert.Equal(t, "#1f77b4", cssColor(two[0], 1))
	assert.Equal(t, "#ff7f0e", cssColor(two[1], 1))
	assert.Equal(t, "rgba(31,119,180,0.20)", cssColor(two[0], 0.2))

	many := Palette(12)
	require.Len(t, many, 12)
	seen := make(map[string]bool)
	for _, c := range many {
		assert.Equal(t, uint8(255), c.A)
		seen[cssColor(c, 1)] = true
	}
	assert.Len(t, seen, 12)
}

func TestRenderStatic(t *testing.T) {
	p, err := RenderStatic(burtinRecords(t), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "MIC by Antibiotic and Gram Stain (log scale)", p.Title.Text)
	assert.Equal(t, XAxisTitle, p.X.Label.Text)
	assert.Equal(t, YAxisTitle, p.Y.Label.Text)
	assert.Equal(t, 1e-3, p.Y.Min)
	assert.Equal(t, 1e3, p.Y.Max)
	assert.IsType(t, plot.LogScale{}, p.Y.Scale)

	ticks := p.Y.Tick.Marker.Ticks(p.Y.Min, p.Y.Max)
	require.Len(t, ticks, 7)
	assert.Equal(t, "1.0e-3", ticks[0].Label)
	assert.Equal(t, "1.0e+3", ticks[6].Label)

	xticks := p.X.Tick.Marker.Ticks(p.X.Min, p.X.Max)
	require.Len(t, xticks, 3)
	assert.Equal(t, "neomycin", xticks[0].Label)

}

func TestBuildLayers(t *testing.T) {
	records := burtinRecords(t)
	o := DefaultOptions()
	ls, err := buildLayers(records, NewLayout(records, o.GroupSpread), o)
	require.NoError(t, err)

	require.Len(t, ls.boxes, 6)
	for _, b := range ls.boxes {
		assert.Nil(t, b.Outside)
		assert.LessOrEqual(t, b.Quartile1, b.Median)
		assert.LessOrEqual(t, b.Median, b.Quartile3)
	}
	// neomycin/positive: whisker stops short of the 40 outlier
	assert.Equal(t, 10.0, ls.boxes[1].AdjHigh)
	assert.InDelta(t, 0.125, ls.boxes[1].Location, 1e-12)

	assert.Equal(t, []string{"negative", "positive"}, ls.names)
	require.Len(t, ls.points, 2)
	assert.Len(t, ls.points[0].XYs, 27)
	assert.Len(t, ls.points[1].XYs, 21)
	assert.Equal(t, uint8(51), ls.points[0].GlyphStyle.Color.(color.NRGBA).A)
	assert.Equal(t, Palette(1)[0], ls.swatches[0].GlyphStyle.Color)
}

func TestRenderStaticEmpty(t *testing.T) {
	_, err := RenderStatic(nil, DefaultOptions())
	assert.ErrorIs(t, err, mic.ErrNoRecords)
}

func TestSaveStatic(t *testing.T) {
	p, err := RenderStatic(burtinRecords(t), DefaultOptions())
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("out", 0o755))

	o := DefaultOptions()
	require.NoError(t, SaveStatic(p, mfs, "out/mic.svg", o.Width, o.Height))
	require.NoError(t, SaveStatic(p, mfs, "out/mic.pdf", o.Width, o.Height))

	svg, err := mfs.ReadFile("out/mic.svg")
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
	assert.Contains(t, string(svg), "neomycin")

	pdf, err := mfs.ReadFile("out/mic.pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	assert.Error(t, SaveStatic(p, mfs, "out/mic.gif", o.Width, o.Height))
	assert.Error(t, SaveStatic(p, mfs, "missing/mic.svg", o.Width, o.Height))
}

func TestStaticFormat(t *testing.T) {
	for path, want := range map[string]string{"a.svg": "svg", "b.PDF": "pdf", "c.png": "png"} {
		got, err := StaticFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := StaticFormat("chart.html")
	assert.Error(t, err)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(burtinRecords(t), DefaultOptions(), &buf))

	html := buf.String()
	assert.Contains(t, html, "MIC by Antibiotic and Gram Stain (log scale)")
	assert.Contains(t, html, "boxplot")
	assert.Contains(t, html, "scatter")
	assert.Contains(t, html, "Streptococcus viridans")
	assert.Contains(t, html, `"log"`)

	assert.Contains(t, html, `"xAxisIndex":1`)

	assert.ErrorIs(t, RenderHTML(nil, DefaultOptions(), &buf), mic.ErrNoRecords)
}

func TestBoxPlotOffset(t *testing.T) {
	assert.InDelta(t, -0.23, boxPlotOffset(0, 2), 1e-12)
	assert.InDelta(t, 0.23, boxPlotOffset(1, 2), 1e-12)
	assert.InDelta(t, 0.0, boxPlotOffset(1, 3), 1e-12)
	assert.InDelta(t, -boxPlotOffset(2, 3), boxPlotOffset(0, 3), 1e-12)
}

func TestHTMLPointsSplitByGramStain(t *testing.T) {
	records := []mic.Record{
		{Bacteria: "Neg", GramStaining: "negative", Antibiotic: "penicilin", MIC: 10},
		{Bacteria: "Pos", GramStaining: "positive", Antibiotic: "penicilin", MIC: 10},
	}
	o := DefaultOptions()
	o.Jitter = 0

	points := htmlPoints(records, NewLayout(records, o.GroupSpread), o)
	require.Len(t, points["negative"], 1)
	require.Len(t, points["positive"], 1)

	neg := points["negative"][0].Value.([]interface{})
	pos := points["positive"][0].Value.([]interface{})
	assert.InDelta(t, -0.23, neg[0].(float64), 1e-12)
	assert.InDelta(t, 0.23, pos[0].(float64), 1e-12)
	assert.Equal(t, 10.0, neg[1])
	assert.Equal(t, "penicilin", pos[2])
}

func TestHTMLPointsJitterWithinBox(t *testing.T) {
	records := burtinRecords(t)
	o := DefaultOptions()
	layout := NewLayout(records, o.GroupSpread)

	points := htmlPoints(records, layout, o)
	for j, gram := range layout.GramStains {
		for _, d := range points[gram] {
			v := d.Value.([]interface{})
			i := layout.abIndex[v[2].(string)]
			centre := float64(i) + boxPlotOffset(j, len(layout.GramStains))
			assert.InDelta(t, centre, v[0].(float64), o.Jitter/2)
		}
	}
	// The static layout is untouched by the HTML placement.
	assert.InDelta(t, -0.125, layout.Offset(0), 1e-12)
}
