// Command protrep selects representative proteins for the clusters of a
// TM-score similarity matrix and runs the supporting steps around it.
//
// Usage:
//
//	protrep <command> [flags]
//
// Commands: representatives, centroid, subclusters, elbow, split, reduce,
// trace. Run `protrep <command> -h` for the flags of a command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/protein-representatives/pkg/config"
	"github.com/gilchrisn/protein-representatives/pkg/foldseek"
	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/partition"
	"github.com/gilchrisn/protein-representatives/pkg/pipeline"
	"github.com/gilchrisn/protein-representatives/pkg/plot"
	"github.com/gilchrisn/protein-representatives/pkg/store"
)

// SnapshotFile is written into the output directory of every table run.
const SnapshotFile = "protrep.yaml"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "protrep: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: protrep <command> [flags]

Commands:
  representatives  highest-mean representative per cluster
  centroid         closest-to-centroid, lowest and highest per cluster
  subclusters      k-means sub-clusters and their representatives
  elbow            elbow analysis per cluster, or of one matrix
  split            write the sub-matrix of every cluster
  reduce           keep the aligner's representative structures per folder
  trace            plot a two-column TSV as a line`)
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "representatives", "centroid", "subclusters", "elbow", "split":
		mode, _ := pipeline.ParseMode(cmd)
		return runMode(ctx, mode, rest, stderr)
	case "reduce":
		return runReduce(ctx, rest, stderr)
	case "trace":
		return runTrace(rest, stderr)
	case "-h", "-help", "--help", "help":
		usage(stderr)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return errUsage
	}
}

// ===== Shared flags =====

// overrides maps flag names to the config keys they set. Only flags given
// on the command line are applied, so file and environment values survive.
type overrides map[string]string

func (o overrides) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		if key, ok := o[f.Name]; ok {
			cfg.Set(key, f.Value.String())
		}
	})
}

// setup parses args into a validated config and its logger.
func setup(fs *flag.FlagSet, keys overrides, args []string, stderr io.Writer) (*config.Config, zerolog.Logger, error) {
	configPath := fs.String("config", "", "YAML config file")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (console or json)")
	keys["log-level"] = "logging.level"
	keys["log-format"] = "logging.format"

	if err := fs.Parse(args); err != nil {
		return nil, zerolog.Nop(), errUsage
	}

	cfg := config.NewConfig()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			return nil, zerolog.Nop(), err
		}
	}
	keys.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, cfg.NewLogger(stderr), nil
}

// ===== Table modes =====

func runMode(ctx context.Context, mode pipeline.Mode, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	fs.SetOutput(stderr)
	keys := overrides{
		"matrix":         "input.matrix",
		"clusters":       "input.clusters",
		"item-column":    "input.item_column",
		"cluster-column": "input.cluster_column",
		"output":         "output.dir",
		"sqlite":         "output.sqlite_path",
		"parallel":       "performance.parallel",
		"workers":        "performance.num_workers",
	}
	fs.String("matrix", "", "TM-score matrix TSV")
	fs.String("clusters", "", "cluster assignment TSV")
	fs.String("item-column", "", "item column of the cluster file")
	fs.String("cluster-column", "", "label column of the cluster file")
	fs.String("output", "", "output directory")
	fs.String("sqlite", "", "also store results in this SQLite database")
	fs.Bool("parallel", false, "process clusters concurrently")
	fs.Int("workers", 0, "number of concurrent clusters")

	var strategy *string
	switch mode {
	case pipeline.ModeSubclusters:
		strategy = fs.String("strategy", "signed", "representative strategy: signed, highest or euclidean")
		addKMeansFlags(fs, keys)
		keys["k-mode"] = "kmeans.k_mode"
		keys["features"] = "kmeans.features"
		fs.String("k-mode", "", "fixed or elbow")
		fs.String("features", "", "k-means features: rows or row_means")
		addElbowFlags(fs, keys)
	case pipeline.ModeElbow:
		addKMeansFlags(fs, keys)
		keys["features"] = "kmeans.features"
		fs.String("features", "", "k-means features: rows or row_means")
		addElbowFlags(fs, keys)
	}

	cfg, logger, err := setup(fs, keys, args, stderr)
	if err != nil {
		return err
	}

	opts, err := pipeline.OptionsFromConfig(cfg, mode)
	if err != nil {
		return err
	}
	if strategy != nil {
		opts.Strategy = *strategy
		if err := opts.Validate(); err != nil {
			return err
		}
	}

	if cfg.MatrixPath() == "" {
		return fmt.Errorf("--matrix is required")
	}
	if cfg.ClustersPath() == "" && mode != pipeline.ModeElbow {
		return fmt.Errorf("--clusters is required for %s", mode)
	}

	logger.Info().Str("matrix", cfg.MatrixPath()).Msg("Loading similarity matrix")
	m, err := matrix.Load(cfg.MatrixPath())
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(opts, logger).WithRunID(cfg.RunID())

	snapshot := filepath.Join(opts.OutputDir, SnapshotFile)
	if err := cfg.WriteSnapshot(snapshot); err != nil {
		return err
	}
	if data, err := os.ReadFile(snapshot); err == nil {
		runner.WithConfigSnapshot(string(data))
	}

	if path := cfg.SQLitePath(); path != "" {
		db, err := store.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()
		runner.WithSink(db)
	}

	var report *pipeline.Report
	if cfg.ClustersPath() == "" {
		name := strings.TrimSuffix(filepath.Base(cfg.MatrixPath()), filepath.Ext(cfg.MatrixPath()))
		report, err = runner.RunMatrix(ctx, m, name)
	} else {
		var p *partition.Partition
		p, err = partition.Load(cfg.ClustersPath(), partition.Options{
			ItemColumn:    cfg.ItemColumn(),
			ClusterColumn: cfg.ClusterColumn(),
		})
		if err != nil {
			return err
		}
		for _, c := range p.Conflicts {
			logger.Warn().Str("item", c.Item).Str("kept", c.Kept).Str("rejected", c.Rejected).Msg("Item listed under two clusters")
		}
		report, err = runner.Run(ctx, m, p)
	}
	if err != nil {
		return err
	}

	summarize(logger, report)
	return nil
}

func addKMeansFlags(fs *flag.FlagSet, keys overrides) {
	keys["k"] = "kmeans.k"
	keys["seed"] = "kmeans.seed"
	keys["n-init"] = "kmeans.n_init"
	keys["max-iter"] = "kmeans.max_iterations"
	fs.Int("k", 0, "number of sub-clusters")
	fs.Int64("seed", 0, "k-means random seed")
	fs.Int("n-init", 0, "k-means restarts")
	fs.Int("max-iter", 0, "k-means iteration limit")
}

func addElbowFlags(fs *flag.FlagSet, keys overrides) {
	keys["max-k"] = "elbow.max_k"
	keys["sensitivity"] = "elbow.sensitivity"
	keys["plots"] = "output.plots"
	fs.Int("max-k", 0, "largest k tried by the elbow analysis")
	fs.Float64("sensitivity", 0, "knee detection sensitivity")
	fs.Bool("plots", true, "render elbow plots")
}

func summarize(logger zerolog.Logger, report *pipeline.Report) {
	for _, f := range report.Failures {
		ev := logger.Warn().Err(f.Err).Str("cluster", f.Cluster)
		if f.SubCluster != "" {
			ev = ev.Str("subcluster", f.SubCluster)
		}
		ev.Msg("Skipped")
	}
	if n := len(report.Undefined()); n > 0 {
		logger.Warn().Int("groups", n).Msg("Groups without any valid score were written with empty cells")
	}
	logger.Info().
		Int("clusters", report.Clusters).
		Int("selections", len(report.Selections)).
		Int("failures", len(report.Failures)).
		Int("files", len(report.Files)).
		Dur("duration", report.Duration).
		Msg("Done")
}

// ===== reduce =====

func runReduce(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("reduce", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keys := overrides{
		"output":   "output.dir",
		"binary":   "foldseek.binary",
		"coverage": "foldseek.coverage",
		"listing":  "foldseek.listing",
	}
	input := fs.String("input", "", "folder with one subfolder of structures per cluster")
	fs.String("output", "", "output folder")
	fs.String("binary", "", "aligner executable")
	fs.Float64("coverage", 0, "aligner coverage threshold")
	fs.String("listing", "", "representative listing written by the aligner")

	cfg, logger, err := setup(fs, keys, args, stderr)
	if err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	aligner := foldseek.New(logger)
	aligner.Binary = cfg.AlignerBinary()
	aligner.Coverage = cfg.AlignerCoverage()
	aligner.Listing = cfg.AlignerListing()

	report, err := foldseek.NewReducer(aligner, logger).Reduce(ctx, *input, cfg.OutputDir())
	if err != nil {
		return err
	}
	copied := 0
	for _, f := range report.Folders {
		copied += len(f.Copied)
	}
	logger.Info().Int("folders", len(report.Folders)).Int("copied", copied).Msg("Done")
	return report.Err()
}

// ===== trace =====

func runTrace(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "two-column TSV")
	out := fs.String("out", "trace.svg", "figure path; the extension selects the format")
	title := fs.String("title", "", "figure title")
	xlabel := fs.String("xlabel", "", "x axis label")
	ylabel := fs.String("ylabel", "", "y axis label")

	_, logger, err := setup(fs, overrides{}, args, stderr)
	if err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	series, err := plot.LoadSeries(*input)
	if err != nil {
		return err
	}

	style := plot.TraceStyle()
	style.Title = *title
	if *xlabel != "" {
		style.XLabel = *xlabel
	}
	if *ylabel != "" {
		style.YLabel = *ylabel
	}
	if err := plot.NewRenderer().Line(*out, series.X, series.Y, style); err != nil {
		return err
	}
	logger.Info().Str("path", *out).Int("points", len(series.X)).Msg("Wrote trace")
	return nil
}
