package stats

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestQuantile(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	assert.InDelta(t, 1.75, Quantile(0.25, values), 1e-12)
	assert.InDelta(t, 2.5, Quantile(0.5, values), 1e-12)
	assert.InDelta(t, 3.25, Quantile(0.75, values), 1e-12)
	assert.Equal(t, 1.0, Quantile(0, values))
	assert.Equal(t, 4.0, Quantile(1, values))
	assert.True(t, math.IsNaN(Quantile(0.5, nil)))

	// input must not be reordered
	assert.Equal(t, []float64{4, 1, 3, 2}, values)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.0, Median([]float64{1, 3}))
	assert.Equal(t, 7.0, Median([]float64{7}))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})

	assert.Equal(t, 4, s.N)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 1.75, s.Q1, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, 3.25, s.Q3, 1e-12)
	assert.InDelta(t, 1.5, s.IQR(), 1e-12)
	assert.Equal(t, 1.0, s.LowWhisker)
	assert.Equal(t, 4.0, s.HighWhisker)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.StdDev, 1e-12)
}

func TestSummarizeUnsortedInput(t *testing.T) {
	values := []float64{850, 0.001, 3, 870, 0.02}
	s := Summarize(values)

	assert.Equal(t, 0.001, s.Min)
	assert.Equal(t, 870.0, s.Max)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, []float64{850, 0.001, 3, 870, 0.02}, values, "input is not reordered")
}

func TestSummarizeSingleAndEmpty(t *testing.T) {
	one := Summarize([]float64{5})
	assert.Equal(t, Summary{N: 1, Min: 5, Q1: 5, Median: 5, Q3: 5, Max: 5, LowWhisker: 5, HighWhisker: 5, Mean: 5}, one)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.N)
	assert.True(t, math.IsNaN(empty.Median))
}

func TestSummarizeWhiskersExcludeOutliers(t *testing.T) {
	// neomycin, gram positive
	values := []float64{0.007, 10, 0.001, 0.001, 0.1, 10, 40}
	s := Summarize(values)

	assert.InDelta(t, 0.004, s.Q1, 1e-12)
	assert.InDelta(t, 0.1, s.Median, 1e-12)
	assert.InDelta(t, 10, s.Q3, 1e-12)
	assert.Equal(t, 0.001, s.LowWhisker)
	assert.Equal(t, 10.0, s.HighWhisker)
	assert.Equal(t, 40.0, s.Max)
	assert.Equal(t, []float64{40}, s.Outliers(values))
}

func TestOrderByMedian(t *testing.T) {
	records := burtinRecords(t)

	// neomycin median 0.1; penicilin and streptomycin tie at 1 and sort by name
	assert.Equal(t, []string{"neomycin", "penicilin", "streptomycin"}, OrderByMedian(records))
	assert.Empty(t, OrderByMedian(nil))
}

func TestGroupSummaries(t *testing.T) {
	records := burtinRecords(t)
	groups := GroupSummaries(records)
	require.Len(t, groups, 6)

	var keys []string
	total := 0
	for _, g := range groups {
		keys = append(keys, g.Antibiotic+"/"+g.GramStaining)
		total += g.N
	}
	assert.Equal(t, []string{
		"neomycin/negative", "neomycin/positive",
		"penicilin/negative", "penicilin/positive",
		"streptomycin/negative", "streptomycin/positive",
	}, keys)
	assert.Equal(t, len(records), total)

	pen := groups[2]
	assert.Equal(t, 9, pen.N)
	assert.Equal(t, 100.0, pen.Median)
	assert.Equal(t, 3.0, pen.Q1)
	assert.Equal(t, 850.0, pen.Q3)
}

func TestGroupSummariesSkipsEmptyGroups(t *testing.T) {
	records := []mic.Record{
		{Bacteria: "A", GramStaining: "negative", Antibiotic: "penicilin", MIC: 1},
		{Bacteria: "B", GramStaining: "positive", Antibiotic: "neomycin", MIC: 2},
	}
	groups := GroupSummaries(records)
	require.Len(t, groups, 2)
	assert.Equal(t, "penicilin", groups[0].Antibiotic)
	assert.Equal(t, "negative", groups[0].GramStaining)
	assert.Equal(t, "neomycin", groups[1].Antibiotic)
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, GroupSummaries(burtinRecords(t))))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "antibiotic", rows[0][0])
	assert.Equal(t, []string{"neomycin", "positive", "7", "0.001", "0.004", "0.1", "10", "40", "0.001", "10"}, rows[2][:10])
}
