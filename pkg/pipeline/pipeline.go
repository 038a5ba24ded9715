// Package pipeline runs representative selection over every cluster of a
// partition: restrict the similarity matrix to the cluster, optionally split
// it into k-means sub-clusters, select representatives and write the
// resulting tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/protein-representatives/pkg/elbow"
	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/output"
	"github.com/gilchrisn/protein-representatives/pkg/partition"
	"github.com/gilchrisn/protein-representatives/pkg/plot"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
	"github.com/gilchrisn/protein-representatives/pkg/store"
)

// Sink receives the results of a run in addition to the TSV files.
// *store.SQLiteStore implements it.
type Sink interface {
	BeginRun(ctx context.Context, run store.Run) error
	SaveSelections(ctx context.Context, runID string, sels []representative.Selection) error
	SaveMemberships(ctx context.Context, runID string, cols []output.Membership) error
	FinishRun(ctx context.Context, id string, finished time.Time, clusters, failures int) error
}

// Failure is a per-cluster error that did not stop the run.
type Failure struct {
	Cluster    string
	SubCluster string
	Err        error
}

// Missing is an item listed for a cluster but absent from the matrix.
type Missing struct {
	Cluster string
	matrix.MissingItemError
}

// ElbowOutcome is the elbow analysis of one cluster.
type ElbowOutcome struct {
	Cluster string
	Result  *elbow.Result
}

// Report is everything a run produced, in sorted cluster order.
type Report struct {
	RunID    string
	Mode     Mode
	Strategy string
	Clusters int

	Selections  []representative.Selection
	Memberships []output.Membership
	Elbows      []ElbowOutcome
	Missing     []Missing
	Failures    []Failure
	Files       []string

	Duration time.Duration
}

// Undefined returns the selections whose group had no valid score.
func (r *Report) Undefined() []representative.Selection {
	var out []representative.Selection
	for _, s := range r.Selections {
		if len(s.Picks) == 0 {
			out = append(out, s)
		}
	}
	return out
}

// Runner executes one mode over a partition.
type Runner struct {
	opts     Options
	logger   zerolog.Logger
	renderer plot.Renderer
	sink     Sink
	runID    string
	snapshot string
}

// NewRunner creates a runner. The renderer defaults to gonum/plot and the
// run id to a fresh UUID.
func NewRunner(opts Options, logger zerolog.Logger) *Runner {
	return &Runner{
		opts:     opts,
		logger:   logger,
		renderer: plot.NewRenderer(),
		runID:    uuid.NewString(),
	}
}

// WithSink makes the runner persist its results to sink.
func (r *Runner) WithSink(sink Sink) *Runner {
	r.sink = sink
	return r
}

// WithRenderer replaces the figure renderer.
func (r *Runner) WithRenderer(renderer plot.Renderer) *Runner {
	r.renderer = renderer
	return r
}

// WithRunID sets the run id, typically the one the logger is tagged with.
func (r *Runner) WithRunID(id string) *Runner {
	r.runID = id
	return r
}

// WithConfigSnapshot records the YAML settings stored with the run.
func (r *Runner) WithConfigSnapshot(yaml string) *Runner {
	r.snapshot = yaml
	return r
}

// RunID returns the id of the run.
func (r *Runner) RunID() string { return r.runID }

type clusterJob struct {
	label   string
	members []string
}

// clusterResult collects the output of one cluster. Results are stored by
// cluster index so that parallel runs keep the sorted order.
type clusterResult struct {
	selections  []representative.Selection
	memberships []output.Membership
	elbow       *ElbowOutcome
	missing     []Missing
	failures    []Failure
	files       []string
}

func (c *clusterResult) fail(cluster, sub string, err error) {
	c.failures = append(c.failures, Failure{Cluster: cluster, SubCluster: sub, Err: err})
}

// Run processes every cluster of p against m and writes the mode's tables.
// Per-cluster problems are collected in the report; the returned error is
// for failures that stop the run (context cancellation, unwritable output,
// sink errors).
func (r *Runner) Run(ctx context.Context, m *matrix.SimilarityMatrix, p *partition.Partition) (*Report, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, err
	}
	labels := p.Labels()
	jobs := make([]clusterJob, len(labels))
	for i, label := range labels {
		jobs[i] = clusterJob{label: label, members: p.Members(label)}
	}
	return r.run(ctx, m, jobs)
}

// RunMatrix treats the whole matrix as a single cluster named name. It is
// used for matrices that were split per cluster beforehand.
func (r *Runner) RunMatrix(ctx context.Context, m *matrix.SimilarityMatrix, name string) (*Report, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, err
	}
	return r.run(ctx, m, []clusterJob{{label: name, members: m.RowIDs()}})
}

func (r *Runner) run(ctx context.Context, m *matrix.SimilarityMatrix, jobs []clusterJob) (*Report, error) {
	start := time.Now()
	logger := r.logger.With().Str("mode", string(r.opts.Mode)).Logger()
	logger.Info().Int("clusters", len(jobs)).Bool("parallel", r.opts.Parallel).Msg("Starting run")

	if r.sink != nil {
		run := store.Run{ID: r.runID, Mode: string(r.opts.Mode), Strategy: r.strategyName(), Config: r.snapshot, StartedAt: start}
		if err := r.sink.BeginRun(ctx, run); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
	}

	results := make([]clusterResult, len(jobs))
	if err := r.processAll(ctx, m, jobs, results); err != nil {
		return nil, err
	}

	report := &Report{RunID: r.runID, Mode: r.opts.Mode, Strategy: r.strategyName(), Clusters: len(jobs)}
	for _, res := range results {
		report.Selections = append(report.Selections, res.selections...)
		report.Memberships = append(report.Memberships, res.memberships...)
		report.Missing = append(report.Missing, res.missing...)
		report.Failures = append(report.Failures, res.failures...)
		report.Files = append(report.Files, res.files...)
		if res.elbow != nil {
			report.Elbows = append(report.Elbows, *res.elbow)
		}
	}

	files, err := r.writeTables(report)
	if err != nil {
		return nil, err
	}
	report.Files = append(report.Files, files...)

	if r.sink != nil {
		if err := r.persist(ctx, report); err != nil {
			return nil, err
		}
	}

	report.Duration = time.Since(start)
	logger.Info().
		Int("selections", len(report.Selections)).
		Int("failures", len(report.Failures)).
		Int("missing_items", len(report.Missing)).
		Dur("duration", report.Duration).
		Msg("Run finished")
	return report, nil
}

func (r *Runner) strategyName() string {
	switch r.opts.Mode {
	case ModeRepresentatives:
		return representative.HighestMean{}.Name()
	case ModeCentroid:
		return representative.ClosestToCentroid{}.Name()
	case ModeSubclusters:
		return r.opts.Strategy
	}
	return ""
}

func (r *Runner) processAll(ctx context.Context, m *matrix.SimilarityMatrix, jobs []clusterJob, results []clusterResult) error {
	if !r.opts.Parallel || r.opts.NumWorkers <= 1 {
		for i, job := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.processCluster(ctx, m, job)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.NumWorkers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.processCluster(gctx, m, job)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) processCluster(ctx context.Context, m *matrix.SimilarityMatrix, job clusterJob) clusterResult {
	var res clusterResult
	logger := r.logger.With().Str("cluster", job.label).Logger()

	block, err := m.Restrict(job.members)
	if err != nil {
		var ee *matrix.EmptyGroupError
		if errors.As(err, &ee) {
			ee.Cluster = job.label
		}
		logger.Warn().Err(err).Msg("Skipping cluster")
		res.fail(job.label, "", err)
		return res
	}
	for _, mi := range block.Missing {
		res.missing = append(res.missing, Missing{Cluster: job.label, MissingItemError: mi})
		logger.Debug().Str("item", mi.Item).Msg("Item not in similarity matrix")
	}
	if len(block.Missing) > 0 {
		logger.Warn().Int("missing", len(block.Missing)).Int("kept", block.Len()).Msg("Dropped items absent from the similarity matrix")
	}

	switch r.opts.Mode {
	case ModeRepresentatives:
		r.selectWhole(&res, logger, job.label, block, representative.HighestMean{})
	case ModeCentroid:
		r.selectWhole(&res, logger, job.label, block, representative.ClosestToCentroid{})
	case ModeSubclusters:
		r.subclusters(ctx, &res, logger, job.label, block)
	case ModeElbow:
		r.elbow(&res, logger, job.label, block)
	case ModeSplit:
		r.split(&res, logger, job.label, block)
	}
	return res
}

func (r *Runner) selectWhole(res *clusterResult, logger zerolog.Logger, label string, block *matrix.Block, strategy representative.Strategy) {
	sel, err := strategy.Select(representative.Group{
		Cluster: label,
		Items:   block.RowIDs,
		Scores:  block.Data,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Selection failed")
		res.fail(label, "", err)
		return
	}
	if len(sel.Picks) == 0 {
		logger.Warn().Int("items", block.Len()).Msg("No valid score in cluster")
	}
	res.selections = append(res.selections, sel)
}
