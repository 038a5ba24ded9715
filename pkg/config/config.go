// Package config manages the pipeline configuration using Viper: built-in
// defaults, an optional YAML file, PROTREP_* environment variables and
// explicit overrides from the command line, in increasing precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PROTREP_KMEANS_K.
const EnvPrefix = "PROTREP"

// Config manages pipeline configuration using Viper
type Config struct {
	v     *viper.Viper
	runID string
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Input
	v.SetDefault("input.matrix", "")
	v.SetDefault("input.clusters", "")
	v.SetDefault("input.item_column", "protid")
	v.SetDefault("input.cluster_column", "LeidenCluster")

	// K-means
	v.SetDefault("kmeans.k", 3)
	v.SetDefault("kmeans.k_mode", "fixed")
	v.SetDefault("kmeans.features", "rows")
	v.SetDefault("kmeans.seed", 0)
	v.SetDefault("kmeans.n_init", 10)
	v.SetDefault("kmeans.max_iterations", 300)
	v.SetDefault("kmeans.tolerance", 1e-4)

	// Elbow
	v.SetDefault("elbow.max_k", 10)
	v.SetDefault("elbow.sensitivity", 1.0)

	// Output
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.sqlite_path", "")
	v.SetDefault("output.plots", true)

	// Performance parameters
	v.SetDefault("performance.parallel", false)
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Structural aligner
	v.SetDefault("foldseek.binary", "foldseek")
	v.SetDefault("foldseek.coverage", 0.1)
	v.SetDefault("foldseek.listing", "res_rep_seq.fasta")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v, runID: uuid.NewString()}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return nil
}

// Input
func (c *Config) MatrixPath() string { return c.v.GetString("input.matrix") }
func (c *Config) ClustersPath() string { return c.v.GetString("input.clusters") }
func (c *Config) ItemColumn() string { return c.v.GetString("input.item_column") }
func (c *Config) ClusterColumn() string { return c.v.GetString("input.cluster_column") }

// K-means
func (c *Config) K() int { return c.v.GetInt("kmeans.k") }
func (c *Config) KMode() string { return c.v.GetString("kmeans.k_mode") }
func (c *Config) Features() string { return c.v.GetString("kmeans.features") }
func (c *Config) Seed() int64 { return c.v.GetInt64("kmeans.seed") }
func (c *Config) NInit() int { return c.v.GetInt("kmeans.n_init") }
func (c *Config) MaxIterations() int { return c.v.GetInt("kmeans.max_iterations") }
func (c *Config) Tolerance() float64 { return c.v.GetFloat64("kmeans.tolerance") }
func (c *Config) MaxK() int { return c.v.GetInt("elbow.max_k") }
func (c *Config) Sensitivity() float64 { return c.v.GetFloat64("elbow.sensitivity") }
func (c *Config) OutputDir() string { return c.v.GetString("output.dir") }
func (c *Config) SQLitePath() string { return c.v.GetString("output.sqlite_path") }
func (c *Config) Plots() bool { return c.v.GetBool("output.plots") }
func (c *Config) Parallel() bool { return c.v.GetBool("performance.parallel") }
func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }
func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) LogFormat() string { return c.v.GetString("logging.format") }
func (c *Config) AlignerBinary() string { return c.v.GetString("foldseek.binary") }
func (c *Config) AlignerCoverage() float64 { return c.v.GetFloat64("foldseek.coverage") }
func (c *Config) AlignerListing() string { return c.v.GetString("foldseek.listing") }

// RunID identifies this run in logs and in the result store.
func (c *Config) RunID() string { return c.runID }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	return c.NewLogger(os.Stderr)
}

// NewLogger builds the configured logger writing to out.
func (c *Config) NewLogger(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	w := out
	if c.LogFormat() != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", "protrep").
		Str("run_id", c.runID).
		Logger()
}
