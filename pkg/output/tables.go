package output

import (
	"fmt"
	"strings"

	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

// ClusterRepresentatives is the single-representative table: the item with
// the highest mean similarity per cluster.
func ClusterRepresentatives(sels []representative.Selection) *Table {
	t := NewTable("Cluster", "Highest Protein", "TM-score")
	for _, s := range sels {
		t.Append(s.Cluster, s.Item(representative.RoleHighest), s.ScoreOf(representative.RoleHighest).String())
	}
	return t
}

// ArithmeticMean lists the closest-to-centroid, lowest and highest items of
// each cluster.
func ArithmeticMean(sels []representative.Selection) *Table {
	t := NewTable("Cluster",
		"Closest Protein", "TM-score",
		"Lowest Protein", "TM-score",
		"Highest Protein", "TM-score")
	for _, s := range sels {
		t.Append(s.Cluster,
			s.Item(representative.RoleClosest), s.ScoreOf(representative.RoleClosest).String(),
			s.Item(representative.RoleLowest), s.ScoreOf(representative.RoleLowest).String(),
			s.Item(representative.RoleHighest), s.ScoreOf(representative.RoleHighest).String())
	}
	return t
}

// Combined lists each cluster's arithmetic centroid.
func Combined(sels []representative.Selection) *Table {
	t := NewTable("Cluster", "Arithmetic Mean")
	for _, s := range sels {
		t.Append(s.Cluster, s.Centroid.String())
	}
	return t
}

// SignedSubclusters is the sub-cluster table of the signed centroid strategy.
func SignedSubclusters(sels []representative.Selection) *Table {
	t := NewTable("LeidenCluster", "KMeansCluster", "Centroid",
		"ClosestProtein", "ClosestValue",
		"FarthestAboveProtein", "FarthestAboveValue",
		"FarthestBelowProtein", "FarthestBelowValue")
	for _, s := range sels {
		t.Append(s.Cluster, s.SubCluster, s.Centroid.String(),
			s.Item(representative.RoleClosest), s.ScoreOf(representative.RoleClosest).String(),
			s.Item(representative.RoleFarthestAbove), s.ScoreOf(representative.RoleFarthestAbove).String(),
			s.Item(representative.RoleFarthestBelow), s.ScoreOf(representative.RoleFarthestBelow).String())
	}
	return t
}

// HighestSubclusters is the sub-cluster table of the highest-mean strategy.
func HighestSubclusters(sels []representative.Selection) *Table {
	t := NewTable("LeidenCluster", "KMeansCluster", "HighestProtein", "HighestScore")
	for _, s := range sels {
		t.Append(s.Cluster, s.SubCluster,
			s.Item(representative.RoleHighest), s.ScoreOf(representative.RoleHighest).String())
	}
	return t
}

// EuclideanSubclusters is the sub-cluster table of the Euclidean strategy.
// The *Mean columns hold the L2 distance to the centre.
func EuclideanSubclusters(sels []representative.Selection) *Table {
	t := NewTable("LeidenCluster", "KMeansCluster", "ClusterCentroid",
		"ClosestKmeans", "ClosestKmeansValue", "ClosestKmeansMean",
		"FarthestKmeans", "FarthestKmeansValue", "FarthestKmeansMean")
	for _, s := range sels {
		closest, _ := s.Pick(representative.RoleEuclideanClosest)
		farthest, _ := s.Pick(representative.RoleEuclideanFarthest)
		t.Append(s.Cluster, s.SubCluster, joinFixed(s.Center),
			closest.Item, joinFloats(closest.Vector), distance(closest.Score),
			farthest.Item, joinFloats(farthest.Vector), distance(farthest.Score))
	}
	return t
}

// SubclusterTable returns the table builder for a sub-cluster strategy.
func SubclusterTable(strategy string) (func([]representative.Selection) *Table, error) {
	switch strategy {
	case representative.SignedCentroid{}.Name():
		return SignedSubclusters, nil
	case representative.HighestMean{}.Name():
		return HighestSubclusters, nil
	case representative.Euclidean{}.Name():
		return EuclideanSubclusters, nil
	}
	return nil, fmt.Errorf("no sub-cluster table for strategy %q", strategy)
}

func joinFixed(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.3f", x)
	}
	return strings.Join(parts, ", ")
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = matrix.FormatFloat(x)
	}
	return strings.Join(parts, ", ")
}

func distance(s representative.Score) string {
	if !s.Valid {
		return ""
	}
	return fmt.Sprintf("%.3f", s.Value)
}
