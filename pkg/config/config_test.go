package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	c := NewConfig()

	assert.Equal(t, "protid", c.ItemColumn())
	assert.Equal(t, "LeidenCluster", c.ClusterColumn())
	assert.Equal(t, 3, c.K())
	assert.Equal(t, "fixed", c.KMode())
	assert.Equal(t, "rows", c.Features())
	assert.Equal(t, int64(0), c.Seed())
	assert.Equal(t, 10, c.NInit())
	assert.Equal(t, 300, c.MaxIterations())
	assert.Equal(t, 1e-4, c.Tolerance())
	assert.Equal(t, 10, c.MaxK())
	assert.Equal(t, 0.1, c.AlignerCoverage())
	assert.Equal(t, "res_rep_seq.fasta", c.AlignerListing())
	assert.True(t, c.Plots())
	assert.False(t, c.Parallel())
	assert.NotEmpty(t, c.RunID())
	assert.NoError(t, c.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protrep.yaml")
	content := "kmeans:\n  k: 5\n  features: row_means\nelbow:\n  max_k: 6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c := NewConfig()
	require.NoError(t, c.LoadFromFile(path))
	assert.Equal(t, 5, c.K())
	assert.Equal(t, "row_means", c.Features())
	assert.Equal(t, 6, c.MaxK())
	assert.Equal(t, 300, c.MaxIterations())

	assert.Error(t, NewConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PROTREP_KMEANS_K", "7")
	t.Setenv("PROTREP_LOGGING_LEVEL", "debug")

	c := NewConfig()
	assert.Equal(t, 7, c.K())
	assert.Equal(t, "debug", c.LogLevel())
}

func TestSetOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protrep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kmeans:\n  k: 5\n"), 0644))

	c := NewConfig()
	require.NoError(t, c.LoadFromFile(path))
	c.Set("kmeans.k", 2)
	assert.Equal(t, 2, c.K())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"ZeroK", "kmeans.k", 0},
		{"UnknownKMode", "kmeans.k_mode", "auto"},
		{"UnknownFeatures", "kmeans.features", "columns"},
		{"ZeroMaxK", "elbow.max_k", 0},
		{"BadLogFormat", "logging.format", "xml"},
		{"CoverageAboveOne", "foldseek.coverage", 1.5},
		{"NoWorkers", "performance.num_workers", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			c.Set(tt.key, tt.value)
			assert.Error(t, c.Validate())
		})
	}
}

func TestWriteSnapshot(t *testing.T) {
	c := NewConfig()
	c.Set("kmeans.k", 4)
	path := filepath.Join(t.TempDir(), "run", "config.yaml")
	require.NoError(t, c.WriteSnapshot(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var s Settings
	require.NoError(t, yaml.Unmarshal(data, &s))
	assert.Equal(t, 4, s.KMeans.K)
	assert.Equal(t, c.RunID(), s.RunID)
	assert.Equal(t, "LeidenCluster", s.Input.ClusterColumn)
}

func TestNewLogger(t *testing.T) {
	c := NewConfig()
	c.Set("logging.format", "json")

	var buf bytes.Buffer
	logger := c.NewLogger(&buf)
	logger.Info().Str("cluster", "LC00").Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"service":"protrep"`)
	assert.Contains(t, out, `"run_id":"`+c.RunID()+`"`)
	assert.Contains(t, out, `"cluster":"LC00"`)

	buf.Reset()
	c.Set("logging.level", "warn")
	quiet := c.NewLogger(&buf)
	quiet.Info().Msg("suppressed")
	assert.Empty(t, buf.String())
}
