package subcluster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/protein-representatives/pkg/elbow"
	"github.com/gilchrisn/protein-representatives/pkg/kmeans"
	"github.com/gilchrisn/protein-representatives/pkg/matrix"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

// twoFamilies returns a block where b1..b3 and a1..a3 form two tight
// groups, listed with a b-item first.
func twoFamilies(t *testing.T) *matrix.Block {
	t.Helper()
	ids := []string{"b1", "a1", "b2", "a2", "b3", "a3"}
	family := map[string]string{"a1": "a", "a2": "a", "a3": "a", "b1": "b", "b2": "b", "b3": "b"}

	data := mat.NewDense(len(ids), len(ids), nil)
	for i, x := range ids {
		for j, y := range ids {
			switch {
			case i == j:
				data.Set(i, j, 1.0)
			case family[x] == family[y]:
				data.Set(i, j, 0.9)
			default:
				data.Set(i, j, 0.1)
			}
		}
	}
	m, err := matrix.New(ids, data)
	require.NoError(t, err)
	block, err := m.Restrict(ids)
	require.NoError(t, err)
	return block
}

func TestSplitRows(t *testing.T) {
	in, err := NewInput("LC00", twoFamilies(t), FeatureRows)
	require.NoError(t, err)
	assert.Equal(t, 6, in.Len())

	p, err := in.Split(2, kmeans.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, p.SubClusters, 2)

	kc0, kc1 := p.SubClusters[0], p.SubClusters[1]
	assert.Equal(t, "KC0", kc0.Label)
	assert.Equal(t, "KC1", kc1.Label)
	assert.Equal(t, []string{"b1", "b2", "b3"}, kc0.Members)
	assert.Equal(t, []string{"a1", "a2", "a3"}, kc1.Members)
	assert.Equal(t, []int{0, 2, 4}, kc0.Rows)
	assert.Len(t, kc0.Center, 6)

	assign := p.Assignments()
	assert.Equal(t, "KC1", assign["a2"])
	assert.Equal(t, "KC0", assign["b3"])
}

func TestSplitRowMeans(t *testing.T) {
	ids := []string{"p", "q", "r", "s"}
	data := mat.NewDense(4, 4, []float64{
		1.0, 0.8, 0.8, 0.0,
		0.8, 1.0, 0.8, 0.0,
		0.8, 0.8, 1.0, 0.0,
		0.0, 0.0, 0.0, 1.0,
	})
	m, err := matrix.New(ids, data)
	require.NoError(t, err)
	block, err := m.Restrict(ids)
	require.NoError(t, err)

	in, err := NewInput("LC01", block, FeatureRowMeans)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, in.Unassigned)
	assert.Equal(t, []int{0, 1, 2}, in.Rows)
	r, c := in.Features.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, 0.8, in.Features.At(0, 0), 1e-12)

	p, err := in.Split(1, kmeans.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "q", "r"}, p.SubClusters[0].Members)
}

func TestSplitInsufficientItems(t *testing.T) {
	in, err := NewInput("LC02", twoFamilies(t), FeatureRows)
	require.NoError(t, err)

	_, err = in.Split(7, kmeans.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, kmeans.ErrInsufficientItems))

	var ie *kmeans.InsufficientItemsError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 7, ie.K)
	assert.Equal(t, 6, ie.Items)
}

func TestNewInputErrors(t *testing.T) {
	t.Run("NilBlock", func(t *testing.T) {
		_, err := NewInput("LC03", nil, FeatureRows)
		assert.True(t, errors.Is(err, matrix.ErrEmptyGroup))
	})

	t.Run("NoValidMeans", func(t *testing.T) {
		m, err := matrix.New([]string{"x", "y"}, mat.NewDense(2, 2, []float64{1, 0, 0, 1}))
		require.NoError(t, err)
		block, err := m.Restrict([]string{"x", "y"})
		require.NoError(t, err)

		_, err = NewInput("LC04", block, FeatureRowMeans)
		assert.True(t, errors.Is(err, matrix.ErrEmptyGroup))
	})

	t.Run("UnknownMode", func(t *testing.T) {
		_, err := NewInput("LC05", twoFamilies(t), FeatureMode("columns"))
		assert.Error(t, err)
	})
}

func TestParseFeatureMode(t *testing.T) {
	mode, err := ParseFeatureMode("row_means")
	require.NoError(t, err)
	assert.Equal(t, FeatureRowMeans, mode)
	_, err = ParseFeatureMode("pca")
	assert.Error(t, err)
}

func TestRelabel(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		k      int
		want   []int
	}{
		{"AlreadyOrdered", []int{0, 0, 1, 2}, 3, []int{0, 1, 2}},
		{"Reversed", []int{2, 1, 0}, 3, []int{2, 1, 0}},
		{"MissingLabel", []int{2, 2, 0}, 3, []int{1, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relabel(tt.labels, tt.k))
		})
	}
}

func TestElbowOnInput(t *testing.T) {
	in, err := NewInput("LC06", twoFamilies(t), FeatureRows)
	require.NoError(t, err)

	opts := elbow.DefaultOptions()
	res, err := in.Elbow(opts)
	require.NoError(t, err)
	assert.True(t, res.Capped)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, res.Curve.K)
}

func TestGroup(t *testing.T) {
	in, err := NewInput("LC07", twoFamilies(t), FeatureRows)
	require.NoError(t, err)
	p, err := in.Split(2, kmeans.DefaultConfig())
	require.NoError(t, err)
	sc := p.SubClusters[1]

	t.Run("Highest", func(t *testing.T) {
		g, err := p.Group(sc, representative.HighestMean{})
		require.NoError(t, err)
		r, c := g.Scores.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 6, c)
		assert.Equal(t, "KC1", g.SubCluster)
	})

	t.Run("Signed", func(t *testing.T) {
		g, err := p.Group(sc, representative.SignedCentroid{})
		require.NoError(t, err)
		r, c := g.Scores.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 3, c)

		sel, err := representative.SignedCentroid{}.Select(g)
		require.NoError(t, err)
		assert.InDelta(t, 0.9, sel.Centroid.Value, 1e-12)
	})

	t.Run("Euclidean", func(t *testing.T) {
		g, err := p.Group(sc, representative.Euclidean{})
		require.NoError(t, err)
		assert.Equal(t, sc.Center, g.Center)
		_, c := g.Scores.Dims()
		assert.Equal(t, 6, c)
	})

	t.Run("EmptySubCluster", func(t *testing.T) {
		_, err := p.Group(SubCluster{Label: "KC2"}, representative.HighestMean{})
		var ee *matrix.EmptyGroupError
		require.True(t, errors.As(err, &ee))
		assert.Equal(t, "LC07", ee.Cluster)
		assert.Equal(t, "KC2", ee.SubCluster)
	})
}

func TestSplitIdenticalFeatures(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	data := mat.NewDense(4, 4, nil)
	for i := range ids {
		for j := range ids {
			if i == j {
				data.Set(i, j, 1.0)
			} else {
				data.Set(i, j, 0.9)
			}
		}
	}
	m, err := matrix.New(ids, data)
	require.NoError(t, err)
	block, err := m.Restrict(ids)
	require.NoError(t, err)

	in, err := NewInput("LC03", block, FeatureRowMeans)
	require.NoError(t, err)
	p, err := in.Split(3, kmeans.DefaultConfig())
	require.NoError(t, err)

	require.Len(t, p.SubClusters, 3)
	total := 0
	for _, sc := range p.SubClusters {
		assert.False(t, sc.Empty(), sc.Label)
		total += len(sc.Members)
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"A"}, p.SubClusters[0].Members)
}
