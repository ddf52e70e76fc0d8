package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/chrislowzhengxi/data-viz/internal/mic"
	"github.com/chrislowzhengxi/data-viz/internal/stats"
)

// RenderHTML writes an interactive version of the chart: one box series per
// gram stain overlapped with point series whose tooltips name the
// bacterium, antibiotic, MIC and gram stain.
func RenderHTML(records []mic.Record, o Options, w io.Writer) error {
	if len(records) == 0 {
		return fmt.Errorf("render html: %w", mic.ErrNoRecords)
	}
	layout := NewLayout(records, o.GroupSpread)
	colors := Palette(len(layout.GramStains))

	summaries := make(map[string]stats.Summary)
	for _, g := range stats.GroupSummaries(records) {
		summaries[g.Antibiotic+"\x00"+g.GramStaining] = g.Summary
	}

	bp := charts.NewBoxPlot()
	bp.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			Width:     fmt.Sprintf("%.0fpx", float64(o.Width)*1.5),
			Height:    fmt.Sprintf("%.0fpx", float64(o.Height)*1.5),
		}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: fmt.Sprintf("%d observations", len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10", Top: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: XAxisTitle, NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:         YAxisTitle,
			NameLocation: "middle",
			NameGap:      50,
			Type:         "log",
			Min:          o.YMin,
			Max:          o.YMax,
		}),
	)
	bp.SetXAxis(layout.Antibiotics)

	for gi, gram := range layout.GramStains {
		data := make([]opts.BoxPlotData, 0, len(layout.Antibiotics))
		for _, ab := range layout.Antibiotics {
			s, ok := summaries[ab+"\x00"+gram]
			if !ok {
				// keeps the category slot empty
				data = append(data, opts.BoxPlotData{Name: ab})
				continue
			}
			data = append(data, opts.BoxPlotData{
				Name:  ab,
				Value: []float64{s.LowWhisker, s.Q1, s.Median, s.Q3, s.HighWhisker},
			})
		}
		bp.AddSeries(gram, data,
			charts.WithItemStyleOpts(opts.ItemStyle{
				Color:       cssColor(colors[gi], 0.5),
				BorderColor: cssColor(colors[gi], 1),
			}),
		)
	}

	// Points live on a hidden value axis spanning the same bands as the
	// category axis, so they can sit over their own box and be jittered.
	bp.ExtendXAxis(opts.XAxis{
		Type: "value",
		Show: opts.Bool(false),
		Min:  -0.5,
		Max:  float64(len(layout.Antibiotics)) - 0.5,
	})

	scatter := charts.NewScatter()
	points := htmlPoints(records, layout, o)
	for gi, gram := range layout.GramStains {
		scatter.AddSeries(gram, points[gram],
			charts.WithScatterChartOpts(opts.ScatterChart{XAxisIndex: 1, SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: cssColor(colors[gi], o.PointOpacity)}),
		)
	}
	bp.Overlap(scatter)

	if err := bp.Render(w); err != nil {
		return fmt.Errorf("failed to render html chart: %w", err)
	}
	return nil
}

// htmlPoints groups the scatter data by gram stain. Each value is
// [x, mic, antibiotic] where x follows the ECharts box placement.
func htmlPoints(records []mic.Record, layout *Layout, o Options) map[string][]opts.ScatterData {
	boxes := *layout
	boxes.offset = boxPlotOffset
	out := make(map[string][]opts.ScatterData, len(layout.GramStains))
	for _, pt := range PlacePoints(records, &boxes, o.Jitter, o.Seed) {
		out[pt.GramStaining] = append(out[pt.GramStaining], opts.ScatterData{
			Name:  pt.Bacteria,
			Value: []interface{}{pt.X, pt.MIC, pt.Antibiotic},
		})
	}
	return out
}
