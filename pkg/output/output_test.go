package output

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

func lines(t *testing.T, s string) []string {
	t.Helper()
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestWriteMembership(t *testing.T) {
	cols := []Membership{
		{Cluster: "LC00", SubCluster: "KC0", Items: []string{"a", "b", "c", "d", "e"}},
		{Cluster: "LC01", SubCluster: "KC0", Items: []string{"x", "y"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMembership(&buf, cols))

	got := lines(t, buf.String())
	require.Len(t, got, 7)
	assert.Equal(t, "LC00\tLC01", got[0])
	assert.Equal(t, "KC0\tKC0", got[1])
	assert.Equal(t, "a\tx", got[2])
	assert.Equal(t, "b\ty", got[3])
	assert.Equal(t, "c\t", got[4])
	assert.Equal(t, "d\t", got[5])
	assert.Equal(t, "e\t", got[6])
}

func TestWriteMembershipNoColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMembership(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestWriteMembershipEmptyColumn(t *testing.T) {
	cols := []Membership{
		{Cluster: "LC00", SubCluster: "KC0", Items: []string{"a", "b"}},
		{Cluster: "LC00", SubCluster: "KC1"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMembership(&buf, cols))
	assert.Equal(t, []string{"LC00\tLC00", "KC0\tKC1", "a\t", "b\t"}, lines(t, buf.String()))
}

func TestClusterRepresentatives(t *testing.T) {
	sels := []representative.Selection{
		{Cluster: "LC00", Picks: []representative.Pick{
			{Role: representative.RoleHighest, Item: "A", Score: representative.Valid(0.9)},
		}},
		{Cluster: "LC01"},
	}

	var buf bytes.Buffer
	require.NoError(t, ClusterRepresentatives(sels).WriteTSV(&buf))
	assert.Equal(t, "Cluster\tHighest Protein\tTM-score\nLC00\tA\t0.9\nLC01\t\t\n", buf.String())
}

func TestArithmeticAndCombined(t *testing.T) {
	sels := []representative.Selection{{
		Cluster:  "LC00",
		Centroid: representative.Valid(0.55),
		Picks: []representative.Pick{
			{Role: representative.RoleClosest, Item: "d", Score: representative.Valid(0.55)},
			{Role: representative.RoleLowest, Item: "e", Score: representative.Valid(0.35)},
			{Role: representative.RoleHighest, Item: "b", Score: representative.Valid(0.65)},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, ArithmeticMean(sels).WriteTSV(&buf))
	got := lines(t, buf.String())
	assert.Equal(t, "Cluster\tClosest Protein\tTM-score\tLowest Protein\tTM-score\tHighest Protein\tTM-score", got[0])
	assert.Equal(t, "LC00\td\t0.55\te\t0.35\tb\t0.65", got[1])

	buf.Reset()
	require.NoError(t, Combined(sels).WriteTSV(&buf))
	assert.Equal(t, "Cluster\tArithmetic Mean\nLC00\t0.55\n", buf.String())
}

func TestSignedSubclustersMissingSide(t *testing.T) {
	sels := []representative.Selection{{
		Cluster:    "LC00",
		SubCluster: "KC1",
		Centroid:   representative.Valid(0.5),
		Picks: []representative.Pick{
			{Role: representative.RoleClosest, Item: "m", Score: representative.Valid(0.5)},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, SignedSubclusters(sels).WriteTSV(&buf))
	got := lines(t, buf.String())
	require.Len(t, got, 2)
	assert.Equal(t, "LC00\tKC1\t0.5\tm\t0.5\t\t\t\t", got[1])
}

func TestEuclideanSubclusters(t *testing.T) {
	sels := []representative.Selection{{
		Cluster:    "LC02",
		SubCluster: "KC0",
		Center:     []float64{0.91234, 0.5},
		Picks: []representative.Pick{
			{Role: representative.RoleEuclideanClosest, Item: "p", Score: representative.Valid(0.12345), Vector: []float64{1, 0.5}},
			{Role: representative.RoleEuclideanFarthest, Item: "q", Score: representative.Valid(0.5), Vector: []float64{0.25, 1}},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, EuclideanSubclusters(sels).WriteTSV(&buf))
	got := lines(t, buf.String())
	assert.Equal(t, "LC02\tKC0\t0.912, 0.500\tp\t1.0, 0.5\t0.123\tq\t0.25, 1.0\t0.500", got[1])
}

func TestSubclusterTable(t *testing.T) {
	for _, name := range []string{"signed", "highest", "euclidean"} {
		build, err := SubclusterTable(name)
		require.NoError(t, err)
		assert.NotNil(t, build(nil))
	}
	_, err := SubclusterTable("centroid")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	table := NewTable("Cluster", "Arithmetic Mean")
	table.Append("LC00")

	path, err := WriteFile(dir, CombinedFile, func(w io.Writer) error { return table.WriteTSV(w) })
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, CombinedFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Cluster\tArithmetic Mean\nLC00\t\n", string(data))
}
