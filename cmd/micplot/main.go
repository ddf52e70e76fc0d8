// Command micplot renders the antibiotic MIC chart: a log-scale box plot
// with jittered points per antibiotic and gram stain, written as SVG and PDF
// (optionally PNG and interactive HTML).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/chrislowzhengxi/data-viz/internal/config"
	"github.com/chrislowzhengxi/data-viz/internal/monitoring"
	"github.com/chrislowzhengxi/data-viz/internal/pipeline"
	"github.com/chrislowzhengxi/data-viz/internal/store"
	"github.com/chrislowzhengxi/data-viz/internal/version"
)

var (
	configFile   = flag.String("config", "", "Path to a JSON chart config (optional)")
	inputPath    = flag.String("input", "data/antibiotics-1.csv", "Wide MIC CSV to load")
	outDir       = flag.String("out-dir", ".", "Directory for the rendered files")
	basename     = flag.String("name", "antibiotics_single_chart", "Output file basename, without extension")
	formats      = flag.String("formats", "svg,pdf", "Comma-separated output formats: svg, pdf, png, html")
	seed         = flag.Uint64("seed", 1, "Seed for the horizontal jitter")
	jitter       = flag.Float64("jitter", 0.08, "Jitter width as a fraction of a category band (0 disables)")
	summaryCSV   = flag.String("summary", "", "Also write per-group box statistics to this CSV file in -out-dir")
	dbPath       = flag.String("db", "", "Archive datasets and renders in this sqlite database")
	datasetName  = flag.String("dataset", "", "Name for the archived dataset (default: the basename)")
	fromDataset  = flag.String("from-db", "", "Render a dataset from -db (ID or name) instead of -input")
	listDatasets = flag.Bool("list", false, "List the datasets archived in -db and exit")
	pdfConverter = flag.String("pdf-converter", "native", "PDF backend: native or rsvg-convert")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := buildConfig(visitedFlags())
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("micplot: %v", err)
	}
}

// visitedFlags reports which flags were set on the command line.
func visitedFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// buildConfig starts from the -config file (or built-in defaults) and
// applies the flags that were set explicitly.
func buildConfig(set map[string]bool) (*config.ChartConfig, error) {
	cfg := config.EmptyChartConfig()
	if *configFile != "" {
		loaded, err := config.LoadChartConfig(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		monitoring.Logf("loaded config from %s", *configFile)
	}

	o := config.EmptyChartConfig()
	if set["input"] {
		o.Input = config.PtrString(*inputPath)
	}
	if set["out-dir"] {
		o.OutputDir = config.PtrString(*outDir)
	}
	if set["name"] {
		o.Basename = config.PtrString(*basename)
	}
	if set["formats"] {
		o.Formats = splitList(*formats)
	}
	if set["seed"] {
		o.Seed = config.PtrUint64(*seed)
	}
	if set["jitter"] {
		o.Jitter = config.PtrFloat64(*jitter)
	}
	if set["summary"] {
		o.SummaryCSV = config.PtrString(*summaryCSV)
	}
	if set["db"] {
		o.Database = config.PtrString(*dbPath)
	}
	if set["pdf-converter"] {
		o.PDFConverter = config.PtrString(*pdfConverter)
	}
	cfg.Overlay(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, cfg *config.ChartConfig, stdout io.Writer) error {
	var deps pipeline.Deps

	if path := cfg.GetDatabase(); path != "" {
		s, err := store.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer s.Close()

		if *listDatasets {
			return printDatasets(ctx, s, stdout)
		}
		deps.Archive = s
	} else if *listDatasets || *fromDataset != "" {
		return fmt.Errorf("-list and -from-db need -db: %w", pipeline.ErrNoArchive)
	}

	res, err := pipeline.Run(ctx, cfg, pipeline.Request{
		FromDataset: *fromDataset,
		DatasetName: *datasetName,
	}, deps)
	if err != nil {
		return err
	}
	for _, p := range res.Paths() {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func printDatasets(ctx context.Context, s *store.Store, w io.Writer) error {
	list, err := s.ListDatasets(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRECORDS\tCREATED\tSOURCE")
	for _, ds := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			ds.ID, ds.Name, ds.Records, ds.CreatedAt.Format("2006-01-02 15:04:05"), ds.Source)
	}
	return tw.Flush()
}
