// Package mic loads wide MIC tables (one column per antibiotic) and reshapes
// them into one record per bacterium and antibiotic.
package mic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chrislowzhengxi/data-viz/internal/fsutil"
)

// Id columns every table must carry, after normalisation.
const (
	ColumnBacteria     = "bacteria"
	ColumnGramStaining = "gram_staining"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrNoRecords is returned when reshaping leaves nothing to plot.
	ErrNoRecords = errors.New("no positive MIC values")
)

// Record is one MIC observation in long form.
type Record struct {
	Bacteria     string  `json:"bacteria"`
	GramStaining string  `json:"gram_staining"`
	Antibiotic   string  `json:"antibiotic"`
	MIC          float64 `json:"mic"`
}

// Table is a wide CSV with normalised headers.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

var (
	separatorRun = regexp.MustCompile(`[\s\-]+`)
	disallowed   = regexp.MustCompile(`[^0-9a-zA-Z_]`)
)

// NormalizeColumn trims name, turns runs of whitespace and hyphens into a
// single underscore, drops anything outside [0-9A-Za-z_] and lower-cases it.
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(name)
	name = separatorRun.ReplaceAllString(name, "_")
	name = disallowed.ReplaceAllString(name, "")
	return strings.ToLower(name)
}

// ReadWide parses a CSV with a header row. Short rows are padded with empty
// cells so that a missing trailing value reads as missing, not as an error.
func ReadWide(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	t := &Table{
		Columns: make([]string, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, h := range header {
		name := NormalizeColumn(h)
		if prev, dup := t.index[name]; dup {
			return nil, fmt.Errorf("columns %d and %d both normalise to %q", prev+1, i+1, name)
		}
		t.Columns[i] = name
		t.index[name] = i
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("csv line %d has %d fields, header has %d", line, len(row), len(header))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Column returns the position of a normalised column name.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) require(name string) (int, error) {
	i, ok := t.Column(name)
	if !ok {
		return 0, fmt.Errorf("%w %q (have %s)", ErrMissingColumn, name, strings.Join(t.Columns, ", "))
	}
	return i, nil
}

// ValueColumns lists every column that is not an id column, in header order.
func (t *Table) ValueColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c == ColumnBacteria || c == ColumnGramStaining || c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Melt reshapes t into long form. Records come out column-major: every row
// for the first value column, then every row for the next. Cells that are
// empty, non-numeric, NaN, infinite or not strictly positive are dropped.
// A nil valueColumns selects every non-id column.
func Melt(t *Table, valueColumns []string) ([]Record, error) {
	bi, err := t.require(ColumnBacteria)
	if err != nil {
		return nil, err
	}
	gi, err := t.require(ColumnGramStaining)
	if err != nil {
		return nil, err
	}

	if valueColumns == nil {
		valueColumns = t.ValueColumns()
	}
	if len(valueColumns) == 0 {
		return nil, fmt.Errorf("%w: no value columns besides %s and %s", ErrMissingColumn, ColumnBacteria, ColumnGramStaining)
	}

	cols := make([]int, len(valueColumns))
	names := make([]string, len(valueColumns))
	for k, name := range valueColumns {
		names[k] = NormalizeColumn(name)
		if cols[k], err = t.require(names[k]); err != nil {
			return nil, err
		}
	}

	out := make([]Record, 0, len(t.Rows)*len(cols))
	for k, ci := range cols {
		for _, row := range t.Rows {
			v, ok := ParseMIC(row[ci])
			if !ok {
				continue
			}
			out = append(out, Record{
				Bacteria:     strings.TrimSpace(row[bi]),
				GramStaining: strings.TrimSpace(row[gi]),
				Antibiotic:   names[k],
				MIC:          v,
			})
		}
	}
	return out, nil
}

// ParseMIC parses a cell and reports whether it holds a plottable MIC.
func ParseMIC(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// Load reads path from fsys and melts it. It fails with ErrNoRecords when
// nothing survives filtering.
func Load(fsys fsutil.FileSystem, path string, valueColumns []string) ([]Record, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadWide(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	records, err := Melt(t, valueColumns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoRecords)
	}
	return records, nil
}

// Antibiotics returns the distinct antibiotics in records, sorted by name.
func Antibiotics(records []Record) []string {
	return distinct(records, func(r Record) string { return r.Antibiotic })
}

// GramStains returns the distinct gram staining values, sorted by name.
func GramStains(records []Record) []string {
	return distinct(records, func(r Record) string { return r.GramStaining })
}

func distinct(records []Record, key func(Record) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
