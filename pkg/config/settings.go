package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings is the typed view of a Config, used for validation and for the
// snapshot written next to the outputs.
type Settings struct {
	RunID string `yaml:"run_id"`

	Input struct {
		Matrix        string `yaml:"matrix"`
		Clusters      string `yaml:"clusters"`
		ItemColumn    string `yaml:"item_column" validate:"required"`
		ClusterColumn string `yaml:"cluster_column" validate:"required"`
	} `yaml:"input"`

	KMeans struct {
		K             int     `yaml:"k" validate:"min=1"`
		KMode         string  `yaml:"k_mode" validate:"oneof=fixed elbow"`
		Features      string  `yaml:"features" validate:"oneof=rows row_means"`
		Seed          int64   `yaml:"seed"`
		NInit         int     `yaml:"n_init" validate:"min=1"`
		MaxIterations int     `yaml:"max_iterations" validate:"min=1"`
		Tolerance     float64 `yaml:"tolerance" validate:"gte=0"`
	} `yaml:"kmeans"`

	Elbow struct {
		MaxK        int     `yaml:"max_k" validate:"min=1"`
		Sensitivity float64 `yaml:"sensitivity" validate:"gt=0"`
	} `yaml:"elbow"`

	Output struct {
		Dir        string `yaml:"dir" validate:"required"`
		SQLitePath string `yaml:"sqlite_path"`
		Plots      bool   `yaml:"plots"`
	} `yaml:"output"`

	Performance struct {
		Parallel   bool `yaml:"parallel"`
		NumWorkers int  `yaml:"num_workers" validate:"min=1"`
	} `yaml:"performance"`

	Logging struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
		Format string `yaml:"format" validate:"oneof=console json"`
	} `yaml:"logging"`

	Foldseek struct {
		Binary   string  `yaml:"binary" validate:"required"`
		Coverage float64 `yaml:"coverage" validate:"gt=0,lte=1"`
		Listing  string  `yaml:"listing" validate:"required"`
	} `yaml:"foldseek"`
}

// Settings materializes the current configuration.
func (c *Config) Settings() Settings {
	var s Settings
	s.RunID = c.RunID()

	s.Input.Matrix = c.MatrixPath()
	s.Input.Clusters = c.ClustersPath()
	s.Input.ItemColumn = c.ItemColumn()
	s.Input.ClusterColumn = c.ClusterColumn()

	s.KMeans.K = c.K()
	s.KMeans.KMode = c.KMode()
	s.KMeans.Features = c.Features()
	s.KMeans.Seed = c.Seed()
	s.KMeans.NInit = c.NInit()
	s.KMeans.MaxIterations = c.MaxIterations()
	s.KMeans.Tolerance = c.Tolerance()

	s.Elbow.MaxK = c.MaxK()
	s.Elbow.Sensitivity = c.Sensitivity()

	s.Output.Dir = c.OutputDir()
	s.Output.SQLitePath = c.SQLitePath()
	s.Output.Plots = c.Plots()

	s.Performance.Parallel = c.Parallel()
	s.Performance.NumWorkers = c.NumWorkers()

	s.Logging.Level = c.LogLevel()
	s.Logging.Format = c.LogFormat()

	s.Foldseek.Binary = c.AlignerBinary()
	s.Foldseek.Coverage = c.AlignerCoverage()
	s.Foldseek.Listing = c.AlignerListing()
	return s
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	err := validate.Struct(c.Settings())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Settings.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// WriteSnapshot writes the effective settings as YAML.
func (c *Config) WriteSnapshot(path string) error {
	data, err := yaml.Marshal(c.Settings())
	if err != nil {
		return fmt.Errorf("failed to encode config snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
