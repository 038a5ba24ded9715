// Package representative selects the members that best stand for a group
// of proteins. Four strategies share the Strategy interface:
//
//   - HighestMean: the item with the largest filtered mean similarity.
//   - ClosestToCentroid: the item whose mean is nearest the mean of means,
//     together with the lowest and highest items.
//   - SignedCentroid: closest, farthest above and farthest below the
//     group's own centroid.
//   - Euclidean: the rows nearest to and farthest from a fitted k-means
//     centre.
//
// Exact ties are broken in favour of the lexicographically smallest item.
package representative

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/protein-representatives/pkg/matrix"
)

// Role names the position a picked item holds in its group.
type Role string

const (
	RoleHighest           Role = "highest"
	RoleLowest            Role = "lowest"
	RoleClosest           Role = "closest"
	RoleFarthestAbove     Role = "farthest_above"
	RoleFarthestBelow     Role = "farthest_below"
	RoleEuclideanClosest  Role = "euclidean_closest"
	RoleEuclideanFarthest Role = "euclidean_farthest"
)

// Pick is one selected item.
type Pick struct {
	Role  Role
	Item  string
	Score Score // filtered mean, or the L2 distance for Euclidean roles

	// Vector is the item's feature row. Only the Euclidean strategy sets it.
	Vector []float64
}

// Group is the input of a strategy.
type Group struct {
	Cluster    string
	SubCluster string

	// Items label the rows of Scores.
	Items []string

	// Scores holds one row per item. Mean-based strategies average each row
	// after exclusion; Euclidean treats each row as a feature vector.
	Scores mat.Matrix

	// Center is the fitted k-means centre, required by Euclidean.
	Center []float64
}

// Selection is the outcome of a strategy for one group.
type Selection struct {
	Cluster    string
	SubCluster string
	Strategy   string

	// Centroid is the mean of the members' means for mean-based strategies.
	Centroid Score

	// Center is the k-means centre used by Euclidean.
	Center []float64

	Picks []Pick
}

// Pick returns the item selected for role.
func (s Selection) Pick(role Role) (Pick, bool) {
	for _, p := range s.Picks {
		if p.Role == role {
			return p, true
		}
	}
	return Pick{}, false
}

// Item returns the item picked for role, or "" when the role is absent.
func (s Selection) Item(role Role) string {
	p, _ := s.Pick(role)
	return p.Item
}

// ScoreOf returns the score picked for role, or NoScore.
func (s Selection) ScoreOf(role Role) Score {
	p, ok := s.Pick(role)
	if !ok {
		return NoScore
	}
	return p.Score
}

// Strategy selects representatives for a group.
type Strategy interface {
	Name() string
	Select(g Group) (Selection, error)
}

// ByName returns the strategy registered under name.
func ByName(name string) (Strategy, error) {
	switch name {
	case HighestMean{}.Name():
		return HighestMean{}, nil
	case ClosestToCentroid{}.Name():
		return ClosestToCentroid{}, nil
	case SignedCentroid{}.Name():
		return SignedCentroid{}, nil
	case Euclidean{}.Name():
		return Euclidean{}, nil
	}
	return nil, fmt.Errorf("unknown representative strategy %q", name)
}

func (g Group) check() error {
	if g.Scores == nil || len(g.Items) == 0 {
		return &matrix.EmptyGroupError{Cluster: g.Cluster, SubCluster: g.SubCluster}
	}
	r, _ := g.Scores.Dims()
	if r != len(g.Items) {
		return fmt.Errorf("group has %d items but %d score rows", len(g.Items), r)
	}
	return nil
}

func (g Group) selection(strategy string) Selection {
	return Selection{Cluster: g.Cluster, SubCluster: g.SubCluster, Strategy: strategy}
}

// argBest returns the index of the eligible candidate whose key is best
// under better, or -1. better must be strict; equal keys fall back to the
// smaller item.
func argBest(items []string, keys []float64, eligible func(i int) bool, better func(a, b float64) bool) int {
	best := -1
	for i := range items {
		if !eligible(i) {
			continue
		}
		switch {
		case best < 0, better(keys[i], keys[best]):
			best = i
		case keys[i] == keys[best] && items[i] < items[best]:
			best = i
		}
	}
	return best
}

func greater(a, b float64) bool { return a > b }
func less(a, b float64) bool    { return a < b }

func values(scores []Score) []float64 {
	v := make([]float64, len(scores))
	for i, s := range scores {
		v[i] = s.Value
	}
	return v
}

func meanPick(role Role, items []string, means []Score, i int) Pick {
	return Pick{Role: role, Item: items[i], Score: means[i]}
}

// ===== Highest mean =====

// HighestMean picks the item with the largest filtered mean.
type HighestMean struct{}

func (HighestMean) Name() string { return "highest" }

func (s HighestMean) Select(g Group) (Selection, error) {
	if err := g.check(); err != nil {
		return Selection{}, err
	}
	sel := g.selection(s.Name())
	means := RowMeans(g.Scores)
	keys := values(means)
	valid := func(i int) bool { return means[i].Valid }

	if i := argBest(g.Items, keys, valid, greater); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleHighest, g.Items, means, i))
	}
	return sel, nil
}

// ===== Closest to the arithmetic centroid =====

// ClosestToCentroid picks the item whose mean lies nearest the centroid of
// all valid means, plus the lowest and highest items.
type ClosestToCentroid struct{}

func (ClosestToCentroid) Name() string { return "centroid" }

func (s ClosestToCentroid) Select(g Group) (Selection, error) {
	if err := g.check(); err != nil {
		return Selection{}, err
	}
	sel := g.selection(s.Name())
	means := RowMeans(g.Scores)
	sel.Centroid = Centroid(means)
	if !sel.Centroid.Valid {
		return sel, nil
	}

	keys := values(means)
	valid := func(i int) bool { return means[i].Valid }

	dist := make([]float64, len(means))
	for i, m := range means {
		dist[i] = math.Abs(m.Value - sel.Centroid.Value)
	}
	if i := argBest(g.Items, dist, valid, less); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleClosest, g.Items, means, i))
	}
	if i := argBest(g.Items, keys, valid, less); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleLowest, g.Items, means, i))
	}
	if i := argBest(g.Items, keys, valid, greater); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleHighest, g.Items, means, i))
	}
	return sel, nil
}

// ===== Signed distance to a sub-cluster centroid =====

// SignedCentroid picks the item closest to the group centroid and the items
// farthest above and below it. Only items strictly above (below) the
// centroid are eligible for farthest above (below); when there are none the
// role is absent from the selection.
//
// Scores is expected to be the group's own square matrix, so that every
// mean is taken over the group's members only.
type SignedCentroid struct{}

func (SignedCentroid) Name() string { return "signed" }

func (s SignedCentroid) Select(g Group) (Selection, error) {
	if err := g.check(); err != nil {
		return Selection{}, err
	}
	sel := g.selection(s.Name())
	means := RowMeans(g.Scores)
	sel.Centroid = Centroid(means)
	if !sel.Centroid.Valid {
		return sel, nil
	}
	c := sel.Centroid.Value

	offset := make([]float64, len(means))
	dist := make([]float64, len(means))
	for i, m := range means {
		offset[i] = m.Value - c
		dist[i] = math.Abs(offset[i])
	}
	valid := func(i int) bool { return means[i].Valid }
	above := func(i int) bool { return means[i].Valid && offset[i] > 0 }
	below := func(i int) bool { return means[i].Valid && offset[i] < 0 }

	if i := argBest(g.Items, dist, valid, less); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleClosest, g.Items, means, i))
	}
	if i := argBest(g.Items, offset, above, greater); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleFarthestAbove, g.Items, means, i))
	}
	if i := argBest(g.Items, offset, below, less); i >= 0 {
		sel.Picks = append(sel.Picks, meanPick(RoleFarthestBelow, g.Items, means, i))
	}
	return sel, nil
}

// ===== Euclidean distance to a fitted centre =====

// Euclidean picks the rows at minimum and maximum L2 distance from
// Group.Center. Rows are used as given; no exclusion is applied.
type Euclidean struct{}

func (Euclidean) Name() string { return "euclidean" }

func (s Euclidean) Select(g Group) (Selection, error) {
	if err := g.check(); err != nil {
		return Selection{}, err
	}
	_, c := g.Scores.Dims()
	if len(g.Center) != c {
		return Selection{}, fmt.Errorf("centre has %d dimensions, rows have %d", len(g.Center), c)
	}

	sel := g.selection(s.Name())
	sel.Center = append([]float64(nil), g.Center...)

	rows := make([][]float64, len(g.Items))
	dist := make([]float64, len(g.Items))
	for i := range g.Items {
		rows[i] = mat.Row(nil, i, g.Scores)
		dist[i] = floats.Distance(rows[i], g.Center, 2)
	}
	finite := func(i int) bool { return !math.IsNaN(dist[i]) }

	if i := argBest(g.Items, dist, finite, less); i >= 0 {
		sel.Picks = append(sel.Picks, Pick{Role: RoleEuclideanClosest, Item: g.Items[i], Score: Valid(dist[i]), Vector: rows[i]})
	}
	if i := argBest(g.Items, dist, finite, greater); i >= 0 {
		sel.Picks = append(sel.Picks, Pick{Role: RoleEuclideanFarthest, Item: g.Items[i], Score: Valid(dist[i]), Vector: rows[i]})
	}
	return sel, nil
}
