// Package chart renders long-form MIC records as a log-scale box plot with
// jittered points, statically through gonum/plot and interactively through
// go-echarts.
package chart

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/chrislowzhengxi/data-viz/internal/mic"
	"github.com/chrislowzhengxi/data-viz/internal/stats"
)

// Layout places every antibiotic and gram stain group on the X axis.
// Antibiotic i sits at x = i; gram stain groups split GroupSpread of the
// band around it.
type Layout struct {
	Antibiotics []string
	GramStains  []string
	GroupSpread float64

	abIndex   map[string]int
	gramIndex map[string]int
	// offset overrides the GroupSpread placement when set.
	offset func(j, k int) float64
}

// NewLayout orders antibiotics by median MIC and gram stains by name.
func NewLayout(records []mic.Record, groupSpread float64) *Layout {
	l := &Layout{
		Antibiotics: stats.OrderByMedian(records),
		GramStains:  mic.GramStains(records),
		GroupSpread: groupSpread,
	}
	l.abIndex = indexOf(l.Antibiotics)
	l.gramIndex = indexOf(l.GramStains)
	return l
}

func indexOf(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}

// Offset returns the X offset of gram stain j within its antibiotic band.
func (l *Layout) Offset(j int) float64 {
	k := len(l.GramStains)
	if k <= 1 {
		return 0
	}
	if l.offset != nil {
		return l.offset(j, k)
	}
	return l.GroupSpread * ((float64(j)+0.5)/float64(k) - 0.5)
}

// Location returns the X centre of the antibiotic and gram stain group.
func (l *Layout) Location(antibiotic, gram string) (float64, bool) {
	i, ok := l.abIndex[antibiotic]
	if !ok {
		return 0, false
	}
	j, ok := l.gramIndex[gram]
	if !ok {
		return 0, false
	}
	return float64(i) + l.Offset(j), true
}

// boxPlotOffset is where ECharts centres box plot series j of k within a
// category band: the boxes share 80% of the band and each gap between them
// is 30% of one series' share.
func boxPlotOffset(j, k int) float64 {
	const available = 0.8
	gap := available / float64(k) * 0.3
	box := (available - gap*float64(k-1)) / float64(k)
	return box/2 - available/2 + float64(j)*(gap+box)
}

// Jitterer spreads points horizontally by a uniform amount in
// [-width/2, width/2). The same seed always yields the same sequence.
type Jitterer struct {
	width float64
	rng   *rand.Rand
}

// NewJitterer returns a Jitterer; width 0 disables jitter.
func NewJitterer(width float64, seed uint64) *Jitterer {
	return &Jitterer{
		width: width,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Next returns the next offset.
func (j *Jitterer) Next() float64 {
	if j.width == 0 {
		return 0
	}
	return (j.rng.Float64() - 0.5) * j.width
}

// DecadeTicks returns the powers of ten inside [min, max].
func DecadeTicks(min, max float64) []float64 {
	if min <= 0 || max < min {
		return nil
	}
	lo := int(math.Ceil(math.Log10(min) - 1e-9))
	hi := int(math.Floor(math.Log10(max) + 1e-9))
	var out []float64
	for e := lo; e <= hi; e++ {
		out = append(out, math.Pow10(e))
	}
	return out
}

// FormatExp formats v in d3's ".1e" style: one decimal and an unpadded
// signed exponent, e.g. 1.0e-3 or 1.0e+2.
func FormatExp(v float64) string {
	s := strconv.FormatFloat(v, 'e', 1, 64)
	mant, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + sign + digits
}
