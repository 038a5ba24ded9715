package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMatrix = "\tA\tB\tC\tX\tY\n" +
	"A\t1.0\t0.9\t0.9\t0.0\t0.0\n" +
	"B\t0.9\t1.0\t0.9\t0.0\t0.0\n" +
	"C\t0.9\t0.9\t1.0\t0.0\t0.0\n" +
	"X\t0.0\t0.0\t0.0\t1.0\t0.4\n" +
	"Y\t0.0\t0.0\t0.0\t0.4\t1.0\n"

const testClusters = "protid\tLeidenCluster\n" +
	"B\t0\nA\t0\nC\t0\nY\t1\nX\t1\n"

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	m := filepath.Join(dir, "matrix.tsv")
	c := filepath.Join(dir, "clusters.tsv")
	require.NoError(t, os.WriteFile(m, []byte(testMatrix), 0644))
	require.NoError(t, os.WriteFile(c, []byte(testClusters), 0644))
	return m, c
}

func TestRunRepresentatives(t *testing.T) {
	m, c := writeInputs(t)
	out := t.TempDir()
	var stderr bytes.Buffer

	err := run(context.Background(), []string{
		"representatives", "-matrix", m, "-clusters", c, "-output", out, "-log-format", "json",
	}, &stderr)
	require.NoError(t, err, stderr.String())

	data, err := os.ReadFile(filepath.Join(out, "cluster_representatives.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "Cluster\tHighest Protein\tTM-score\n0\tA\t0.9\n1\tX\t0.4\n", string(data))
	assert.FileExists(t, filepath.Join(out, SnapshotFile))
	assert.Contains(t, stderr.String(), `"service":"protrep"`)
}

func TestRunSplitWithStore(t *testing.T) {
	m, c := writeInputs(t)
	out := t.TempDir()
	db := filepath.Join(t.TempDir(), "runs.db")

	err := run(context.Background(), []string{
		"split", "-matrix", m, "-clusters", c, "-output", out, "-sqlite", db, "-log-level", "error",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "0.tsv"))
	assert.FileExists(t, filepath.Join(out, "1.tsv"))
	assert.FileExists(t, db)
}

func TestRunErrors(t *testing.T) {
	m, _ := writeInputs(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"NoCommand", nil, "usage"},
		{"UnknownCommand", []string{"cluster"}, "usage"},
		{"MissingMatrix", []string{"representatives", "-output", t.TempDir()}, "--matrix is required"},
		{"MissingClusters", []string{"centroid", "-matrix", m, "-output", t.TempDir()}, "--clusters is required"},
		{"BadStrategy", []string{"subclusters", "-strategy", "centroid", "-matrix", m}, "cannot be used for sub-clusters"},
		{"InvalidK", []string{"subclusters", "-k", "0", "-matrix", m}, "invalid configuration"},
		{"ReduceWithoutInput", []string{"reduce"}, "--input is required"},
		{"TraceWithoutInput", []string{"trace"}, "--input is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestEnvironmentOverride(t *testing.T) {
	m, c := writeInputs(t)
	out := t.TempDir()
	t.Setenv("PROTREP_OUTPUT_DIR", out)

	err := run(context.Background(), []string{
		"centroid", "-matrix", m, "-clusters", c, "-log-level", "error",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "combined.tsv"))
}
