package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/protein-representatives/pkg/elbow"
	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/output"
	"github.com/gilchrisn/protein-representatives/pkg/plot"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
	"github.com/gilchrisn/protein-representatives/pkg/subcluster"
)

// ElbowDir is the output subdirectory for elbow artifacts written while
// choosing k in ModeSubclusters.
const ElbowDir = "elbow"

// ===== Sub-clusters =====

func (r *Runner) subclusters(ctx context.Context, res *clusterResult, logger zerolog.Logger, label string, block *matrix.Block) {
	strategy, err := subclusterStrategy(r.opts.Strategy)
	if err != nil {
		res.fail(label, "", err)
		return
	}

	in, err := subcluster.NewInput(label, block, r.opts.Features)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping cluster")
		res.fail(label, "", err)
		return
	}
	if len(in.Unassigned) > 0 {
		logger.Warn().Strs("items", in.Unassigned).Msg("Items without a valid mean similarity left out of k-means")
	}

	// Step 1: choose k
	k := r.opts.K
	if r.opts.KMode == KModeElbow {
		analysis, err := in.Elbow(r.opts.Elbow)
		if err != nil {
			logger.Warn().Err(err).Msg("Elbow analysis failed")
			res.fail(label, "", err)
			return
		}
		k = analysis.OptimalK
		res.elbow = &ElbowOutcome{Cluster: label, Result: analysis}
		res.files = append(res.files, r.writeElbow(logger, filepath.Join(r.opts.OutputDir, ElbowDir), label, analysis)...)
		logger.Debug().Int("k", k).Bool("detected", analysis.Detected).Msg("Chose k")
	}

	// Step 2: split
	part, err := in.Split(k, r.opts.KMeans)
	if err != nil {
		logger.Warn().Err(err).Int("k", k).Int("items", in.Len()).Msg("Skipping cluster")
		res.fail(label, "", err)
		return
	}
	logger.Debug().Int("k", k).Float64("inertia", part.Inertia).Msg("Split cluster")

	// Step 3: select per sub-cluster
	for _, sc := range part.SubClusters {
		if ctx.Err() != nil {
			return
		}
		r.selectSubcluster(res, logger, label, part, sc, strategy)
	}
}

// selectSubcluster records the selection and membership column of one
// sub-cluster. Every sub-cluster keeps its membership column, empty or not.
func (r *Runner) selectSubcluster(res *clusterResult, logger zerolog.Logger, label string, part *subcluster.Partition, sc subcluster.SubCluster, strategy representative.Strategy) {
	res.memberships = append(res.memberships, output.Membership{
		Cluster:    label,
		SubCluster: sc.Label,
		Items:      append([]string(nil), sc.Members...),
	})

	group, err := part.Group(sc, strategy)
	if err != nil {
		logger.Warn().Err(err).Str("subcluster", sc.Label).Msg("Skipping sub-cluster")
		res.fail(label, sc.Label, err)
		return
	}
	sel, err := strategy.Select(group)
	if err != nil {
		logger.Warn().Err(err).Str("subcluster", sc.Label).Msg("Selection failed")
		res.fail(label, sc.Label, err)
		return
	}
	if len(sel.Picks) == 0 {
		logger.Warn().Str("subcluster", sc.Label).Int("items", len(sc.Members)).Msg("No valid score in sub-cluster")
	}
	res.selections = append(res.selections, sel)
}

// ===== Elbow =====

func (r *Runner) elbow(res *clusterResult, logger zerolog.Logger, label string, block *matrix.Block) {
	in, err := subcluster.NewInput(label, block, r.opts.Features)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping cluster")
		res.fail(label, "", err)
		return
	}
	analysis, err := in.Elbow(r.opts.Elbow)
	if err != nil {
		logger.Warn().Err(err).Msg("Elbow analysis failed")
		res.fail(label, "", err)
		return
	}
	if analysis.Capped {
		logger.Debug().Int("max_k", len(analysis.Curve.K)).Msg("Max k capped at the number of items")
	}
	res.elbow = &ElbowOutcome{Cluster: label, Result: analysis}
	res.files = append(res.files, r.writeElbow(logger, r.opts.OutputDir, label, analysis)...)
	logger.Info().Int("k", analysis.OptimalK).Bool("detected", analysis.Detected).Msg("Optimal k")
}

// writeElbow writes <label>.txt and, when plots are enabled, <label>.svg.
// Write errors are logged and recorded; they do not affect other clusters.
func (r *Runner) writeElbow(logger zerolog.Logger, dir, label string, analysis *elbow.Result) []string {
	var files []string
	path, err := output.WriteFile(dir, label+".txt", func(w io.Writer) error {
		return elbow.WriteReport(w, analysis.OptimalK)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write elbow report")
		return files
	}
	files = append(files, path)

	if r.opts.Plots && r.renderer != nil {
		svg := filepath.Join(dir, label+".svg")
		if err := r.renderer.Elbow(svg, analysis.Curve.Xs(), analysis.Curve.Inertia, analysis.OptimalK, plot.ElbowStyle()); err != nil {
			logger.Error().Err(err).Msg("Failed to render elbow plot")
			return files
		}
		files = append(files, svg)
	}
	return files
}

// ===== Split =====

func (r *Runner) split(res *clusterResult, logger zerolog.Logger, label string, block *matrix.Block) {
	path, err := output.WriteFile(r.opts.OutputDir, label+".tsv", block.WriteTSV)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write sub-matrix")
		res.fail(label, "", err)
		return
	}
	res.files = append(res.files, path)
	logger.Debug().Str("path", path).Int("items", block.Len()).Msg("Wrote sub-matrix")
}

// ===== Tables and sink =====

func (r *Runner) writeTables(report *Report) ([]string, error) {
	type table struct {
		name  string
		write func(io.Writer) error
	}
	var tables []table

	switch r.opts.Mode {
	case ModeRepresentatives:
		tables = append(tables, table{output.ClusterRepresentativesFile, output.ClusterRepresentatives(report.Selections).WriteTSV})
	case ModeCentroid:
		tables = append(tables,
			table{output.CombinedFile, output.Combined(report.Selections).WriteTSV},
			table{output.ArithmeticMeanFile, output.ArithmeticMean(report.Selections).WriteTSV})
	case ModeSubclusters:
		build, err := output.SubclusterTable(r.opts.Strategy)
		if err != nil {
			return nil, err
		}
		tables = append(tables,
			table{output.SubclusterRepresentatives, build(report.Selections).WriteTSV},
			table{output.MembershipFile, func(w io.Writer) error { return output.WriteMembership(w, report.Memberships) }})
	}

	var files []string
	for _, t := range tables {
		path, err := output.WriteFile(r.opts.OutputDir, t.name, t.write)
		if err != nil {
			return files, err
		}
		r.logger.Info().Str("path", path).Msg("Wrote table")
		files = append(files, path)
	}
	return files, nil
}

func (r *Runner) persist(ctx context.Context, report *Report) error {
	if len(report.Selections) > 0 {
		if err := r.sink.SaveSelections(ctx, r.runID, report.Selections); err != nil {
			return fmt.Errorf("storing selections: %w", err)
		}
	}
	if len(report.Memberships) > 0 {
		if err := r.sink.SaveMemberships(ctx, r.runID, report.Memberships); err != nil {
			return fmt.Errorf("storing memberships: %w", err)
		}
	}
	if err := r.sink.FinishRun(ctx, r.runID, time.Now(), report.Clusters, len(report.Failures)); err != nil {
		return fmt.Errorf("recording run end: %w", err)
	}
	return nil
}
