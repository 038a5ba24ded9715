package subcluster

import (
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

// Group builds the input a representative strategy needs for sc:
//
//   - HighestMean: the sub-cluster's rows over every column of the parent
//     cluster.
//   - SignedCentroid and ClosestToCentroid: the sub-cluster's own square
//     matrix.
//   - Euclidean: the sub-cluster's feature rows and its fitted centre.
func (p *Partition) Group(sc SubCluster, strategy representative.Strategy) (representative.Group, error) {
	if sc.Empty() {
		return representative.Group{}, &matrix.EmptyGroupError{Cluster: p.Input.Cluster, SubCluster: sc.Label}
	}
	g := representative.Group{
		Cluster:    p.Input.Cluster,
		SubCluster: sc.Label,
		Items:      append([]string(nil), sc.Members...),
	}

	switch strategy.(type) {
	case representative.HighestMean:
		b, err := p.Input.Block.SelectRows(sc.Rows)
		if err != nil {
			return g, err
		}
		g.Scores = b.Data

	case representative.Euclidean:
		_, d := p.Input.Features.Dims()
		features := mat.NewDense(len(sc.FeatureRows), d, nil)
		for i, f := range sc.FeatureRows {
			features.SetRow(i, p.Input.Features.RawRowView(f))
		}
		g.Scores = features
		g.Center = append([]float64(nil), sc.Center...)

	default:
		b, err := p.Input.Block.Square(sc.Rows)
		if err != nil {
			return g, err
		}
		g.Scores = b.Data
	}
	return g, nil
}
