// Package subcluster splits one cluster's restricted similarity matrix into
// k-means sub-clusters, on either the raw similarity rows or the row-mean
// reduction of them.
package subcluster

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/protein-representatives/pkg/elbow"
	"github.com/gilchrisn/protein-representatives/pkg/kmeans"
	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

// FeatureMode selects what k-means sees for each item.
type FeatureMode string

const (
	// FeatureRows uses each item's similarity row as its feature vector.
	FeatureRows FeatureMode = "rows"
	// FeatureRowMeans uses the item's filtered mean similarity as a single
	// feature.
	FeatureRowMeans FeatureMode = "row_means"
)

// ParseFeatureMode validates a feature mode name.
func ParseFeatureMode(s string) (FeatureMode, error) {
	switch FeatureMode(s) {
	case FeatureRows, FeatureRowMeans:
		return FeatureMode(s), nil
	}
	return "", fmt.Errorf("unknown feature mode %q (want %q or %q)", s, FeatureRows, FeatureRowMeans)
}

// Label renders a sub-cluster index the way the output tables name it.
func Label(i int) string { return fmt.Sprintf("KC%d", i) }

// Input is a cluster prepared for k-means.
type Input struct {
	Cluster string
	Block   *matrix.Block
	Mode    FeatureMode

	// Features has one row per clustered item. Rows[i] is the block row of
	// feature row i.
	Features *mat.Dense
	Rows     []int

	// Unassigned lists items left out of clustering because their row mean
	// is undefined (FeatureRowMeans only).
	Unassigned []string
}

// NewInput derives the k-means features of a cluster block.
func NewInput(cluster string, block *matrix.Block, mode FeatureMode) (*Input, error) {
	if block == nil || block.Len() == 0 {
		return nil, &matrix.EmptyGroupError{Cluster: cluster}
	}
	in := &Input{Cluster: cluster, Block: block, Mode: mode}

	switch mode {
	case FeatureRows:
		in.Features = mat.DenseCopyOf(block.Data)
		in.Rows = make([]int, block.Len())
		for i := range in.Rows {
			in.Rows[i] = i
		}

	case FeatureRowMeans:
		var values []float64
		for i, m := range representative.RowMeans(block.Data) {
			if !m.Valid {
				in.Unassigned = append(in.Unassigned, block.RowIDs[i])
				continue
			}
			values = append(values, m.Value)
			in.Rows = append(in.Rows, i)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("cluster %s: no item has a valid mean similarity: %w",
				cluster, &matrix.EmptyGroupError{Cluster: cluster, Requested: block.Len()})
		}
		in.Features = mat.NewDense(len(values), 1, values)

	default:
		return nil, fmt.Errorf("unknown feature mode %q", mode)
	}
	return in, nil
}

// Len returns the number of items that take part in clustering.
func (in *Input) Len() int { return len(in.Rows) }

// Elbow runs the elbow analysis on the input's features.
func (in *Input) Elbow(opts elbow.Options) (*elbow.Result, error) {
	res, err := elbow.Analyze(in.Features, opts)
	if err != nil {
		return nil, fmt.Errorf("cluster %s: %w", in.Cluster, err)
	}
	return res, nil
}

// SubCluster is one k-means group of a cluster.
type SubCluster struct {
	Index int
	Label string

	// Members are in the cluster's input order.
	Members []string

	// Rows index the parent block; FeatureRows index Input.Features.
	Rows        []int
	FeatureRows []int

	// Center is the fitted k-means centre in feature space.
	Center []float64
}

// Empty reports whether k-means assigned nothing to the sub-cluster.
func (s SubCluster) Empty() bool { return len(s.Members) == 0 }

// Partition is the result of Split.
type Partition struct {
	Input       *Input
	K           int
	SubClusters []SubCluster
	Inertia     float64
}

// Split partitions the input into k sub-clusters. Sub-cluster indices are
// renumbered by first appearance in input order so that the first item is
// always in KC0.
func (in *Input) Split(k int, cfg kmeans.Config) (*Partition, error) {
	if k < 1 {
		return nil, fmt.Errorf("cluster %s: k must be at least 1, got %d", in.Cluster, k)
	}
	if k > in.Len() {
		return nil, &kmeans.InsufficientItemsError{K: k, Items: in.Len()}
	}

	cfg.K = k
	fit, err := kmeans.Fit(in.Features, cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster %s: %w", in.Cluster, err)
	}

	order := relabel(fit.Labels, k)
	p := &Partition{
		Input:       in,
		K:           k,
		SubClusters: make([]SubCluster, k),
		Inertia:     fit.Inertia,
	}
	for old, idx := range order {
		p.SubClusters[idx] = SubCluster{
			Index:  idx,
			Label:  Label(idx),
			Center: mat.Row(nil, old, fit.Centers),
		}
	}
	for f, old := range fit.Labels {
		sc := &p.SubClusters[order[old]]
		row := in.Rows[f]
		sc.Members = append(sc.Members, in.Block.RowIDs[row])
		sc.Rows = append(sc.Rows, row)
		sc.FeatureRows = append(sc.FeatureRows, f)
	}
	return p, nil
}

// relabel maps k-means labels to indices in order of first appearance.
// Labels that never appear keep their relative order after the rest.
func relabel(labels []int, k int) []int {
	order := make([]int, k)
	for i := range order {
		order[i] = -1
	}
	next := 0
	for _, l := range labels {
		if order[l] < 0 {
			order[l] = next
			next++
		}
	}
	for l := range order {
		if order[l] < 0 {
			order[l] = next
			next++
		}
	}
	return order
}

// Assignments returns the item -> sub-cluster label mapping.
func (p *Partition) Assignments() map[string]string {
	out := make(map[string]string)
	for _, sc := range p.SubClusters {
		for _, m := range sc.Members {
			out[m] = sc.Label
		}
	}
	return out
}
