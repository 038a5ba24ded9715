package pipeline

import (
	"fmt"

	"github.com/gilchrisn/protein-representatives/pkg/config"
	"github.com/gilchrisn/protein-representatives/pkg/elbow"
	"github.com/gilchrisn/protein-representatives/pkg/kmeans"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
	"github.com/gilchrisn/protein-representatives/pkg/subcluster"
)

// Mode selects what a Runner computes for every cluster.
type Mode string

const (
	// ModeRepresentatives picks the highest-mean item of every cluster.
	ModeRepresentatives Mode = "representatives"
	// ModeCentroid picks the closest-to-centroid, lowest and highest items.
	ModeCentroid Mode = "centroid"
	// ModeSubclusters splits every cluster with k-means and selects
	// representatives per sub-cluster.
	ModeSubclusters Mode = "subclusters"
	// ModeElbow writes the elbow analysis of every cluster.
	ModeElbow Mode = "elbow"
	// ModeSplit writes every cluster's restricted matrix.
	ModeSplit Mode = "split"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRepresentatives, ModeCentroid, ModeSubclusters, ModeElbow, ModeSplit:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// K selection for ModeSubclusters.
const (
	KModeFixed = "fixed"
	KModeElbow = "elbow"
)

// Options configures a Runner.
type Options struct {
	Mode Mode

	// Strategy is the sub-cluster representative strategy: signed,
	// highest or euclidean.
	Strategy string

	KMode    string
	K        int
	Features subcluster.FeatureMode
	KMeans   kmeans.Config
	Elbow    elbow.Options

	OutputDir string
	Plots     bool

	Parallel   bool
	NumWorkers int
}

// DefaultOptions returns the defaults for mode.
func DefaultOptions(mode Mode) Options {
	return Options{
		Mode:       mode,
		Strategy:   representative.SignedCentroid{}.Name(),
		KMode:      KModeFixed,
		K:          3,
		Features:   subcluster.FeatureRows,
		KMeans:     kmeans.DefaultConfig(),
		Elbow:      elbow.DefaultOptions(),
		OutputDir:  "output",
		Plots:      true,
		NumWorkers: 1,
	}
}

// OptionsFromConfig builds Options for mode from a validated Config.
func OptionsFromConfig(c *config.Config, mode Mode) (Options, error) {
	features, err := subcluster.ParseFeatureMode(c.Features())
	if err != nil {
		return Options{}, err
	}

	opts := DefaultOptions(mode)
	opts.KMode = c.KMode()
	opts.K = c.K()
	opts.Features = features
	opts.KMeans = kmeans.Config{
		K:             c.K(),
		NInit:         c.NInit(),
		MaxIterations: c.MaxIterations(),
		Tolerance:     c.Tolerance(),
		Seed:          c.Seed(),
	}
	opts.Elbow = elbow.Options{
		MaxK:        c.MaxK(),
		Sensitivity: c.Sensitivity(),
		KMeans:      opts.KMeans,
	}
	opts.OutputDir = c.OutputDir()
	opts.Plots = c.Plots()
	opts.Parallel = c.Parallel()
	opts.NumWorkers = c.NumWorkers()
	return opts, opts.Validate()
}

// Validate checks the options that the Runner relies on.
func (o Options) Validate() error {
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.Mode == ModeSubclusters {
		if _, err := subclusterStrategy(o.Strategy); err != nil {
			return err
		}
		if o.KMode != KModeFixed && o.KMode != KModeElbow {
			return fmt.Errorf("unknown k mode %q", o.KMode)
		}
		if o.KMode == KModeFixed && o.K < 1 {
			return fmt.Errorf("k must be at least 1, got %d", o.K)
		}
	}
	if o.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

func subclusterStrategy(name string) (representative.Strategy, error) {
	switch name {
	case representative.SignedCentroid{}.Name(), representative.HighestMean{}.Name(), representative.Euclidean{}.Name():
		return representative.ByName(name)
	}
	return nil, fmt.Errorf("strategy %q cannot be used for sub-clusters (want signed, highest or euclidean)", name)
}
