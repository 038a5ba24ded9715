package partition

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	input := "protid\tLeidenCluster\tScore\n" +
		"P3\tLC02\t0.1\n" +
		"P1\tLC00\t0.2\n" +
		"P2\tLC00\t0.3\n" +
		"P4\tLC02\t0.4\n"

	p, err := Read(strings.NewReader(input), "features.tsv", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"LC00", "LC02"}, p.Labels())
	assert.Equal(t, []string{"P1", "P2"}, p.Members("LC00"))
	assert.Equal(t, []string{"P3", "P4"}, p.Members("LC02"))
	assert.Equal(t, 4, p.Len())

	label, ok := p.ClusterOf("P4")
	assert.True(t, ok)
	assert.Equal(t, "LC02", label)
}

func TestReadNumericLabels(t *testing.T) {
	input := "LeidenCluster\tprotid\n10\ta\n2\tb\n1\tc\n"

	p, err := Read(strings.NewReader(input), "x", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "10"}, p.Labels())
}

func TestReadMissingColumn(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
	}{
		{"NoItem", "id\tLeidenCluster\na\t1\n", "protid"},
		{"NoCluster", "protid\tcluster\na\t1\n", "LeidenCluster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), "clusters.tsv", DefaultOptions())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingColumn))

			var mc *MissingColumnError
			require.True(t, errors.As(err, &mc))
			assert.Equal(t, tt.column, mc.Column)
			assert.Contains(t, err.Error(), "clusters.tsv")
		})
	}
}

func TestReadCustomColumns(t *testing.T) {
	input := "name\tgroup\nx\tg1\ny\tg1\n"
	p, err := Read(strings.NewReader(input), "x", Options{ItemColumn: "name", ClusterColumn: "group"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, p.Members("g1"))
}

func TestConflictingAssignments(t *testing.T) {
	p := FromAssignments([][2]string{
		{"a", "LC1"},
		{"b", "LC1"},
		{"a", "LC2"},
		{"b", "LC1"},
	})

	assert.Equal(t, []string{"a", "b"}, p.Members("LC1"))
	assert.Empty(t, p.Members("LC2"))
	assert.Equal(t, []string{"LC1"}, p.Labels())
	require.Len(t, p.Conflicts, 1)
	assert.Equal(t, Conflict{Item: "a", Kept: "LC1", Rejected: "LC2"}, p.Conflicts[0])
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leiden_features.tsv")
	require.NoError(t, os.WriteFile(path, []byte("protid\tLeidenCluster\nA\tLC01\n"), 0644))

	p, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, p.Members("LC01"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.tsv"), Options{})
	assert.Error(t, err)
}
