package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical chart defaults file.
const DefaultConfigPath = "config/chart.defaults.json"

// Output formats understood by the exporters.
const (
	FormatSVG  = "svg"
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatHTML = "html"
)

// PDF converters.
const (
	ConverterNative = "native"
	ConverterRSVG   = "rsvg-convert"
)

// ChartConfig is the root configuration for one chart run.
// Every field is optional; the Get* accessors supply defaults so that a
// partial file, or none at all, is valid.
type ChartConfig struct {
	// Input and output
	Input      *string  `json:"input,omitempty"`
	OutputDir  *string  `json:"output_dir,omitempty"`
	Basename   *string  `json:"basename,omitempty"`
	Formats    []string `json:"formats,omitempty"`
	SummaryCSV *string  `json:"summary_csv,omitempty"`
	Database   *string  `json:"database,omitempty"`

	// Reshaping. Empty means every non-id column.
	ValueColumns []string `json:"value_columns,omitempty"`

	// Canvas, in points (1/72 inch)
	Title  *string  `json:"title,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`

	// Y axis domain
	YMin *float64 `json:"y_min,omitempty"`
	YMax *float64 `json:"y_max,omitempty"`

	// Marks. Jitter and GroupSpread are in category band units.
	Jitter       *float64 `json:"jitter,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
	PointRadius  *float64 `json:"point_radius,omitempty"`
	PointOpacity *float64 `json:"point_opacity,omitempty"`
	BoxWidth     *float64 `json:"box_width,omitempty"`
	GroupSpread  *float64 `json:"group_spread,omitempty"`
	GridOpacity  *float64 `json:"grid_opacity,omitempty"`

	PDFConverter *string `json:"pdf_converter,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// PtrFloat64 returns a pointer to v, for callers assembling overrides.
func PtrFloat64(v float64) *float64 { return ptrFloat64(v) }

// PtrString returns a pointer to v.
func PtrString(v string) *string { return ptrString(v) }

// PtrUint64 returns a pointer to v.
func PtrUint64(v uint64) *uint64 { return ptrUint64(v) }

// EmptyChartConfig returns a ChartConfig with all fields unset.
func EmptyChartConfig() *ChartConfig {
	return &ChartConfig{}
}

// LoadChartConfig loads a ChartConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadChartConfig(path string) (*ChartConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyChartConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the chart defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ChartConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadChartConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Overlay copies every field set in o onto c. Slices replace wholesale.
func (c *ChartConfig) Overlay(o *ChartConfig) {
	if o == nil {
		return
	}
	overlayString(&c.Input, o.Input)
	overlayString(&c.OutputDir, o.OutputDir)
	overlayString(&c.Basename, o.Basename)
	overlayString(&c.SummaryCSV, o.SummaryCSV)
	overlayString(&c.Database, o.Database)
	overlayString(&c.Title, o.Title)
	overlayString(&c.PDFConverter, o.PDFConverter)
	if o.Formats != nil {
		c.Formats = append([]string(nil), o.Formats...)
	}
	if o.ValueColumns != nil {
		c.ValueColumns = append([]string(nil), o.ValueColumns...)
	}
	overlayFloat(&c.Width, o.Width)
	overlayFloat(&c.Height, o.Height)
	overlayFloat(&c.YMin, o.YMin)
	overlayFloat(&c.YMax, o.YMax)
	overlayFloat(&c.Jitter, o.Jitter)
	overlayFloat(&c.PointRadius, o.PointRadius)
	overlayFloat(&c.PointOpacity, o.PointOpacity)
	overlayFloat(&c.BoxWidth, o.BoxWidth)
	overlayFloat(&c.GroupSpread, o.GroupSpread)
	overlayFloat(&c.GridOpacity, o.GridOpacity)
	if o.Seed != nil {
		c.Seed = ptrUint64(*o.Seed)
	}
}

func overlayString(dst **string, src *string) {
	if src != nil {
		*dst = ptrString(*src)
	}
}

func overlayFloat(dst **float64, src *float64) {
	if src != nil {
		*dst = ptrFloat64(*src)
	}
}

// Validate checks that the configuration values are valid.
func (c *ChartConfig) Validate() error {
	for _, f := range c.Formats {
		switch strings.ToLower(f) {
		case FormatSVG, FormatPDF, FormatPNG, FormatHTML:
		default:
			return fmt.Errorf("unsupported format %q (want svg, pdf, png or html)", f)
		}
	}

	if c.Width != nil && *c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %f", *c.Width)
	}
	if c.Height != nil && *c.Height <= 0 {
		return fmt.Errorf("height must be positive, got %f", *c.Height)
	}

	// Log scale needs a strictly positive, increasing domain.
	if c.YMin != nil && *c.YMin <= 0 {
		return fmt.Errorf("y_min must be positive for a log axis, got %g", *c.YMin)
	}
	if c.GetYMax() <= c.GetYMin() {
		return fmt.Errorf("y_max (%g) must be greater than y_min (%g)", c.GetYMax(), c.GetYMin())
	}

	if c.Jitter != nil && (*c.Jitter < 0 || *c.Jitter >= 1) {
		return fmt.Errorf("jitter must be in [0, 1), got %f", *c.Jitter)
	}
	if c.GroupSpread != nil && (*c.GroupSpread < 0 || *c.GroupSpread >= 1) {
		return fmt.Errorf("group_spread must be in [0, 1), got %f", *c.GroupSpread)
	}
	if c.PointRadius != nil && *c.PointRadius <= 0 {
		return fmt.Errorf("point_radius must be positive, got %f", *c.PointRadius)
	}
	if c.PointOpacity != nil && (*c.PointOpacity <= 0 || *c.PointOpacity > 1) {
		return fmt.Errorf("point_opacity must be in (0, 1], got %f", *c.PointOpacity)
	}
	if c.GridOpacity != nil && (*c.GridOpacity < 0 || *c.GridOpacity > 1) {
		return fmt.Errorf("grid_opacity must be in [0, 1], got %f", *c.GridOpacity)
	}
	if c.BoxWidth != nil && *c.BoxWidth < 0 {
		return fmt.Errorf("box_width must be non-negative, got %f", *c.BoxWidth)
	}

	switch conv := c.GetPDFConverter(); conv {
	case ConverterNative:
	case ConverterRSVG:
		// rsvg-convert works from the SVG we write, so it has to be requested.
		if c.WantsFormat(FormatPDF) && !c.WantsFormat(FormatSVG) {
			return fmt.Errorf("pdf_converter %q requires the svg format", conv)
		}
	default:
		return fmt.Errorf("unknown pdf_converter %q", conv)
	}

	return nil
}

// GetInput returns the input CSV path or the default.
func (c *ChartConfig) GetInput() string {
	if c.Input == nil || *c.Input == "" {
		return "data/antibiotics-1.csv"
	}
	return *c.Input
}

// GetOutputDir returns the output directory or the default.
func (c *ChartConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "."
	}
	return *c.OutputDir
}

// GetBasename returns the output file basename (no extension) or the default.
func (c *ChartConfig) GetBasename() string {
	if c.Basename == nil || *c.Basename == "" {
		return "antibiotics_single_chart"
	}
	return *c.Basename
}

// GetFormats returns the lower-cased output formats, defaulting to svg+pdf.
func (c *ChartConfig) GetFormats() []string {
	if len(c.Formats) == 0 {
		return []string{FormatSVG, FormatPDF}
	}
	out := make([]string, 0, len(c.Formats))
	seen := make(map[string]bool, len(c.Formats))
	for _, f := range c.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// WantsFormat reports whether format is among GetFormats.
func (c *ChartConfig) WantsFormat(format string) bool {
	for _, f := range c.GetFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// GetSummaryCSV returns the summary CSV file name, or "" when disabled.
func (c *ChartConfig) GetSummaryCSV() string {
	if c.SummaryCSV == nil {
		return ""
	}
	return *c.SummaryCSV
}

// GetDatabase returns the sqlite archive path, or "" when disabled.
func (c *ChartConfig) GetDatabase() string {
	if c.Database == nil {
		return ""
	}
	return *c.Database
}

// GetValueColumns returns the configured value columns. nil means auto-detect.
func (c *ChartConfig) GetValueColumns() []string {
	if len(c.ValueColumns) == 0 {
		return nil
	}
	return append([]string(nil), c.ValueColumns...)
}

// GetTitle returns the chart title or the default.
func (c *ChartConfig) GetTitle() string {
	if c.Title == nil {
		return "MIC by Antibiotic and Gram Stain (log scale)"
	}
	return *c.Title
}

// GetWidth returns the canvas width in points.
func (c *ChartConfig) GetWidth() float64 {
	if c.Width == nil {
		return 620
	}
	return *c.Width
}

// GetHeight returns the canvas height in points.
func (c *ChartConfig) GetHeight() float64 {
	if c.Height == nil {
		return 460
	}
	return *c.Height
}

// GetYMin returns the lower bound of the MIC axis.
func (c *ChartConfig) GetYMin() float64 {
	if c.YMin == nil {
		return 1e-3
	}
	return *c.YMin
}

// GetYMax returns the upper bound of the MIC axis.
func (c *ChartConfig) GetYMax() float64 {
	if c.YMax == nil {
		return 1e3
	}
	return *c.YMax
}

// GetJitter returns the horizontal jitter width.
func (c *ChartConfig) GetJitter() float64 {
	if c.Jitter == nil {
		return 0.08
	}
	return *c.Jitter
}

// GetSeed returns the jitter seed.
func (c *ChartConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetPointRadius returns the point radius in points.
func (c *ChartConfig) GetPointRadius() float64 {
	if c.PointRadius == nil {
		return 2.5
	}
	return *c.PointRadius
}

// GetPointOpacity returns the point fill opacity.
func (c *ChartConfig) GetPointOpacity() float64 {
	if c.PointOpacity == nil {
		return 0.2
	}
	return *c.PointOpacity
}

// GetBoxWidth returns the box width in points.
func (c *ChartConfig) GetBoxWidth() float64 {
	if c.BoxWidth == nil {
		return 24
	}
	return *c.BoxWidth
}

// GetGroupSpread returns how much of a category band the gram stain groups span.
func (c *ChartConfig) GetGroupSpread() float64 {
	if c.GroupSpread == nil {
		return 0.5
	}
	return *c.GroupSpread
}

// GetGridOpacity returns the grid line opacity.
func (c *ChartConfig) GetGridOpacity() float64 {
	if c.GridOpacity == nil {
		return 0.3
	}
	return *c.GridOpacity
}

// GetPDFConverter returns the PDF converter name or the default.
func (c *ChartConfig) GetPDFConverter() string {
	if c.PDFConverter == nil || *c.PDFConverter == "" {
		return ConverterNative
	}
	return *c.PDFConverter
}
