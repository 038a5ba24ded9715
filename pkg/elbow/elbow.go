// Package elbow chooses the number of k-means clusters for a data set with
// the elbow method: fit k = 1..maxK, record the inertia of each fit and take
// the knee of the resulting curve.
package elbow

import (
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/protein-representatives/pkg/kmeans"
)

// DefaultMaxK is the largest k tried when none is configured.
const DefaultMaxK = 10

// Curve is the (k, inertia) series of an elbow analysis.
type Curve struct {
	K       []int
	Inertia []float64
}

// Xs returns K as float64 values, for knee detection and plotting.
func (c Curve) Xs() []float64 {
	xs := make([]float64, len(c.K))
	for i, k := range c.K {
		xs[i] = float64(k)
	}
	return xs
}

// Result is the outcome of an elbow analysis.
type Result struct {
	Curve    Curve
	OptimalK int
	Detected bool // false when no knee was found and OptimalK fell back to 1
	Capped   bool // true when maxK was lowered to the number of rows
}

// Options configures Analyze.
type Options struct {
	MaxK        int
	Sensitivity float64
	KMeans      kmeans.Config // K is overwritten for every fit
}

// DefaultOptions returns maxK 10, sensitivity 1 and the default k-means
// configuration.
func DefaultOptions() Options {
	return Options{
		MaxK:        DefaultMaxK,
		Sensitivity: 1.0,
		KMeans:      kmeans.DefaultConfig(),
	}
}

// Analyze fits k-means for k = 1..MaxK on the rows of data and picks the
// elbow of the inertia curve. When no elbow is found OptimalK is 1.
func Analyze(data mat.Matrix, opts Options) (*Result, error) {
	if opts.MaxK < 1 {
		return nil, fmt.Errorf("max k must be at least 1, got %d", opts.MaxK)
	}
	if opts.Sensitivity <= 0 {
		opts.Sensitivity = 1.0
	}

	n, _ := data.Dims()
	result := &Result{OptimalK: 1}
	maxK := opts.MaxK
	if maxK > n {
		maxK = n
		result.Capped = true
	}

	for k := 1; k <= maxK; k++ {
		cfg := opts.KMeans
		cfg.K = k
		fit, err := kmeans.Fit(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("k-means with k=%d: %w", k, err)
		}
		result.Curve.K = append(result.Curve.K, k)
		result.Curve.Inertia = append(result.Curve.Inertia, fit.Inertia)
	}

	if knee, ok := FindElbow(result.Curve.Xs(), result.Curve.Inertia, opts.Sensitivity); ok {
		result.OptimalK = int(knee)
		result.Detected = true
	}
	return result, nil
}

// WriteReport writes the one-line optimal-k artifact.
func WriteReport(w io.Writer, k int) error {
	_, err := fmt.Fprintf(w, "The optimal number of clusters is: %d\n", k)
	return err
}

// WriteReportFile writes the optimal-k artifact to path.
func WriteReportFile(path string, k int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create elbow report: %w", err)
	}
	if err := WriteReport(f, k); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
