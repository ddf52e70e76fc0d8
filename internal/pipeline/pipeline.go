// Package pipeline runs one chart job end to end: load the MIC table, order
// the antibiotics, render every requested format and optionally convert,
// summarise and archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/chrislowzhengxi/data-viz/internal/chart"
	"github.com/chrislowzhengxi/data-viz/internal/config"
	"github.com/chrislowzhengxi/data-viz/internal/convert"
	"github.com/chrislowzhengxi/data-viz/internal/fsutil"
	"github.com/chrislowzhengxi/data-viz/internal/mic"
	"github.com/chrislowzhengxi/data-viz/internal/monitoring"
	"github.com/chrislowzhengxi/data-viz/internal/security"
	"github.com/chrislowzhengxi/data-viz/internal/stats"
	"github.com/chrislowzhengxi/data-viz/internal/store"
	"github.com/chrislowzhengxi/data-viz/internal/timeutil"
)

// ErrNoArchive is returned when a stored dataset is requested without an
// archive to read it from.
var ErrNoArchive = errors.New("no dataset archive configured")

// Archive is the subset of *store.Store the pipeline uses.
type Archive interface {
	SaveDataset(ctx context.Context, name, source string, records []mic.Record) (string, error)
	LoadDataset(ctx context.Context, ref string) (store.Dataset, []mic.Record, error)
	RecordRender(ctx context.Context, datasetID, format, path string) (string, error)
}

// Deps are the side-effecting collaborators of a run. Zero values pick the
// real implementations; Archive stays optional.
type Deps struct {
	FS        fsutil.FileSystem
	Converter convert.Converter
	Archive   Archive
	Clock     timeutil.Clock
}

func (d *Deps) fillDefaults() {
	if d.FS == nil {
		d.FS = fsutil.OSFileSystem{}
	}
	if d.Converter == nil {
		d.Converter = convert.NewCommandConverter()
	}
	if d.Clock == nil {
		d.Clock = timeutil.RealClock{}
	}
}

// Request selects where the records come from and how they are archived.
type Request struct {
	// FromDataset loads records from the archive (ID or name) instead of
	// the configured CSV.
	FromDataset string
	// DatasetName labels the archived copy; empty uses the basename.
	DatasetName string
}

// Output is one file written by a run.
type Output struct {
	Format string
	Path   string
}

// Result describes a finished run.
type Result struct {
	Source      string
	DatasetID   string
	Records     int
	Antibiotics []string
	GramStains  []string
	Summaries   []stats.GroupSummary
	Outputs     []Output
	Elapsed     time.Duration
}

// Paths returns the written file paths in write order.
func (r *Result) Paths() []string {
	out := make([]string, len(r.Outputs))
	for i, o := range r.Outputs {
		out[i] = o.Path
	}
	return out
}

// ChartOptions maps a config onto renderer options.
func ChartOptions(cfg *config.ChartConfig) chart.Options {
	return chart.Options{
		Title:        cfg.GetTitle(),
		Width:        vg.Length(cfg.GetWidth()),
		Height:       vg.Length(cfg.GetHeight()),
		YMin:         cfg.GetYMin(),
		YMax:         cfg.GetYMax(),
		Jitter:       cfg.GetJitter(),
		Seed:         cfg.GetSeed(),
		PointRadius:  vg.Length(cfg.GetPointRadius()),
		PointOpacity: cfg.GetPointOpacity(),
		BoxWidth:     vg.Length(cfg.GetBoxWidth()),
		GroupSpread:  cfg.GetGroupSpread(),
		GridOpacity:  cfg.GetGridOpacity(),
	}
}

// Run executes one chart job.
func Run(ctx context.Context, cfg *config.ChartConfig, req Request, deps Deps) (*Result, error) {
	if cfg == nil {
		cfg = config.EmptyChartConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	deps.fillDefaults()
	start := deps.Clock.Now()

	res := &Result{}
	records, err := load(ctx, cfg, req, deps, res)
	if err != nil {
		return nil, err
	}
	res.Records = len(records)
	res.Antibiotics = stats.OrderByMedian(records)
	res.GramStains = mic.GramStains(records)
	res.Summaries = stats.GroupSummaries(records)
	monitoring.Logf("loaded %d records from %s: %d antibiotics, %d gram stains",
		len(records), res.Source, len(res.Antibiotics), len(res.GramStains))
	monitoring.Debugf("antibiotic order by median MIC: %s", strings.Join(res.Antibiotics, ", "))

	w := &writer{
		ctx:  ctx,
		cfg:  cfg,
		deps: deps,
		opts: ChartOptions(cfg),
		dir:  cfg.GetOutputDir(),
		base: security.SanitizeFilename(cfg.GetBasename()),
		res:  res,
	}
	if err := deps.FS.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}
	if err := w.renderAll(records); err != nil {
		return nil, err
	}
	if err := w.writeSummary(); err != nil {
		return nil, err
	}
	if deps.Archive != nil {
		if err := archive(ctx, req, deps.Archive, records, w.base, res); err != nil {
			return nil, err
		}
	}

	res.Elapsed = deps.Clock.Since(start)
	monitoring.Logf("wrote %d files in %s", len(res.Outputs), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func load(ctx context.Context, cfg *config.ChartConfig, req Request, deps Deps, res *Result) ([]mic.Record, error) {
	if req.FromDataset != "" {
		if deps.Archive == nil {
			return nil, fmt.Errorf("load dataset %q: %w", req.FromDataset, ErrNoArchive)
		}
		ds, records, err := deps.Archive.LoadDataset(ctx, req.FromDataset)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("dataset %s: %w", ds.ID, mic.ErrNoRecords)
		}
		res.Source = "dataset " + ds.Name
		res.DatasetID = ds.ID
		return records, nil
	}

	input := cfg.GetInput()
	records, err := mic.Load(deps.FS, input, cfg.GetValueColumns())
	if err != nil {
		return nil, err
	}
	res.Source = input
	return records, nil
}

func archive(ctx context.Context, req Request, a Archive, records []mic.Record, base string, res *Result) error {
	if res.DatasetID == "" {
		name := req.DatasetName
		if name == "" {
			name = base
		}
		id, err := a.SaveDataset(ctx, name, res.Source, records)
		if err != nil {
			return fmt.Errorf("failed to archive dataset: %w", err)
		}
		res.DatasetID = id
		monitoring.Logf("archived dataset %s as %s", name, id)
	}
	for _, o := range res.Outputs {
		if _, err := a.RecordRender(ctx, res.DatasetID, o.Format, o.Path); err != nil {
			return err
		}
	}
	return nil
}

type writer struct {
	ctx  context.Context
	cfg  *config.ChartConfig
	deps Deps
	opts chart.Options
	dir  string
	base string
	res  *Result

	static *plot.Plot
}

func (w *writer) path(name string) (string, error) {
	return security.JoinWithin(w.dir, name)
}

func (w *writer) renderAll(records []mic.Record) error {
	convertPDF := w.cfg.GetPDFConverter() != config.ConverterNative
	for _, format := range w.cfg.GetFormats() {
		if err := w.ctx.Err(); err != nil {
			return fmt.Errorf("render cancelled: %w", err)
		}
		if format == config.FormatPDF && convertPDF {
			continue
		}
		if err := w.render(records, format); err != nil {
			return err
		}
	}
	// The converter reads the SVG, so it runs once everything else is out.
	if convertPDF && w.cfg.WantsFormat(config.FormatPDF) {
		return w.convertPDF()
	}
	return nil
}

func (w *writer) render(records []mic.Record, format string) error {
	path, err := w.path(w.base + "." + format)
	if err != nil {
		return err
	}

	if format == config.FormatHTML {
		f, err := w.deps.FS.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := chart.RenderHTML(records, w.opts, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", path, err)
		}
	} else {
		if w.static == nil {
			if w.static, err = chart.RenderStatic(records, w.opts); err != nil {
				return err
			}
		}
		if err := chart.SaveStatic(w.static, w.deps.FS, path, w.opts.Width, w.opts.Height); err != nil {
			return err
		}
	}

	w.res.Outputs = append(w.res.Outputs, Output{Format: format, Path: path})
	monitoring.Logf("saved %s", path)
	return nil
}

func (w *writer) convertPDF() error {
	svgPath, err := w.path(w.base + "." + config.FormatSVG)
	if err != nil {
		return err
	}
	pdfPath, err := w.path(w.base + "." + config.FormatPDF)
	if err != nil {
		return err
	}
	if err := w.deps.Converter.Convert(w.ctx, svgPath, pdfPath); err != nil {
		return err
	}
	w.res.Outputs = append(w.res.Outputs, Output{Format: config.FormatPDF, Path: pdfPath})
	monitoring.Logf("saved %s (converted from %s)", pdfPath, svgPath)
	return nil
}

func (w *writer) writeSummary() error {
	name := w.cfg.GetSummaryCSV()
	if name == "" {
		return nil
	}
	path, err := w.path(security.SanitizeFilename(name))
	if err != nil {
		return err
	}
	f, err := w.deps.FS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := stats.WriteSummaryCSV(f, w.res.Summaries); err != nil {
		f.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	w.res.Outputs = append(w.res.Outputs, Output{Format: "csv", Path: path})
	monitoring.Logf("saved %s", path)
	return nil
}
