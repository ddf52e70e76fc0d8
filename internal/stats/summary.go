// Package stats computes the per-group box statistics and the median
// ordering that drive the chart layout.
package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/chrislowzhengxi/data-viz/internal/mic"
)

// WhiskerIQR is the Tukey fence multiplier used for whiskers.
const WhiskerIQR = 1.5

// Summary holds the five-number summary of one group plus Tukey whiskers.
type Summary struct {
	N           int
	Min         float64
	Q1          float64
	Median      float64
	Q3          float64
	Max         float64
	LowWhisker  float64
	HighWhisker float64
	Mean        float64
	StdDev      float64
}

// IQR returns the interquartile range.
func (s Summary) IQR() float64 { return s.Q3 - s.Q1 }

// GroupSummary is the Summary of one antibiotic and gram stain combination.
type GroupSummary struct {
	Antibiotic   string
	GramStaining string
	Summary
}

// Quantile returns the p-quantile of values using linear interpolation
// between order statistics at h = (n-1)p. values is not modified.
func Quantile(p float64, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantileSorted(p, sorted)
}

func quantileSorted(p float64, sorted []float64) float64 {
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[len(sorted)-1]
	}
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Median returns the middle value, or the mean of the two middle values for
// even-sized input. NaN for empty input.
func Median(values []float64) float64 {
	return Quantile(0.5, values)
}

// Summarize computes the Summary of values. Empty input yields N == 0 and
// NaN statistics.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan, LowWhisker: nan, HighWhisker: nan, Mean: nan, StdDev: nan}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Summary{
		N:      len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     quantileSorted(0.25, sorted),
		Median: quantileSorted(0.5, sorted),
		Q3:     quantileSorted(0.75, sorted),
	}
	if len(sorted) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(sorted, nil)
	} else {
		s.Mean = sorted[0]
	}

	lowFence := s.Q1 - WhiskerIQR*s.IQR()
	highFence := s.Q3 + WhiskerIQR*s.IQR()
	s.LowWhisker, s.HighWhisker = s.Q1, s.Q3
	for _, v := range sorted {
		if v >= lowFence {
			s.LowWhisker = v
			break
		}
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] <= highFence {
			s.HighWhisker = sorted[i]
			break
		}
	}
	return s
}

// Outliers returns the values outside the whiskers of s, in input order.
func (s Summary) Outliers(values []float64) []float64 {
	var out []float64
	for _, v := range values {
		if v < s.LowWhisker || v > s.HighWhisker {
			out = append(out, v)
		}
	}
	return out
}

// OrderByMedian returns the antibiotics in ascending order of median MIC.
// Ties are broken by name so the order is stable across runs.
func OrderByMedian(records []mic.Record) []string {
	byAntibiotic := make(map[string][]float64)
	for _, r := range records {
		byAntibiotic[r.Antibiotic] = append(byAntibiotic[r.Antibiotic], r.MIC)
	}

	type entry struct {
		name   string
		median float64
	}
	entries := make([]entry, 0, len(byAntibiotic))
	for name, values := range byAntibiotic {
		entries = append(entries, entry{name: name, median: Median(values)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].median != entries[j].median {
			return entries[i].median < entries[j].median
		}
		return entries[i].name < entries[j].name
	})

	order := make([]string, len(entries))
	for i, e := range entries {
		order[i] = e.name
	}
	return order
}

// Values collects the MICs of one antibiotic and gram stain, in record order.
func Values(records []mic.Record, antibiotic, gram string) []float64 {
	var out []float64
	for _, r := range records {
		if r.Antibiotic == antibiotic && r.GramStaining == gram {
			out = append(out, r.MIC)
		}
	}
	return out
}

// GroupSummaries summarises every non-empty antibiotic and gram stain group,
// antibiotics in median order and gram stains by name.
func GroupSummaries(records []mic.Record) []GroupSummary {
	grams := mic.GramStains(records)
	var out []GroupSummary
	for _, ab := range OrderByMedian(records) {
		for _, g := range grams {
			values := Values(records, ab, g)
			if len(values) == 0 {
				continue
			}
			out = append(out, GroupSummary{Antibiotic: ab, GramStaining: g, Summary: Summarize(values)})
		}
	}
	return out
}

// WriteSummaryCSV writes one row per group with a header.
func WriteSummaryCSV(w io.Writer, groups []GroupSummary) error {
	cw := csv.NewWriter(w)
	header := []string{"antibiotic", "gram_staining", "n", "min", "q1", "median", "q3", "max", "low_whisker", "high_whisker", "mean", "std_dev"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for _, g := range groups {
		row := []string{
			g.Antibiotic,
			g.GramStaining,
			strconv.Itoa(g.N),
			formatFloat(g.Min),
			formatFloat(g.Q1),
			formatFloat(g.Median),
			formatFloat(g.Q3),
			formatFloat(g.Max),
			formatFloat(g.LowWhisker),
			formatFloat(g.HighWhisker),
			formatFloat(g.Mean),
			formatFloat(g.StdDev),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write summary row %s/%s: %w", g.Antibiotic, g.GramStaining, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
