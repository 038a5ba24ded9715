// Package kmeans implements seeded Lloyd's k-means with k-means++
// initialisation. Runs are reproducible: the same data, configuration and
// seed always give the same labels, centres and inertia.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientItems is matched by every *InsufficientItemsError.
var ErrInsufficientItems = errors.New("fewer items than requested clusters")

// InsufficientItemsError reports a request for more clusters than points.
type InsufficientItemsError struct {
	K     int
	Items int
}

func (e *InsufficientItemsError) Error() string {
	return fmt.Sprintf("cannot form %d clusters from %d items", e.K, e.Items)
}

func (e *InsufficientItemsError) Unwrap() error { return ErrInsufficientItems }

// Config controls a k-means fit.
type Config struct {
	K             int
	NInit         int     // independent initialisations, best inertia wins
	MaxIterations int     // Lloyd iterations per initialisation
	Tolerance     float64 // relative to the mean per-feature variance
	Seed          int64
}

// DefaultConfig returns the defaults used throughout the pipeline.
func DefaultConfig() Config {
	return Config{
		K:             3,
		NInit:         10,
		MaxIterations: 300,
		Tolerance:     1e-4,
		Seed:          0,
	}
}

// Result is a fitted clustering.
type Result struct {
	Labels     []int      // Labels[i] is the cluster of row i
	Centers    *mat.Dense // K x features
	Inertia    float64    // sum of squared distances to the assigned centre
	Iterations int        // Lloyd iterations of the winning initialisation
}

// Sizes returns the number of rows assigned to each cluster.
func (r *Result) Sizes() []int {
	k, _ := r.Centers.Dims()
	sizes := make([]int, k)
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

// Fit clusters the rows of data.
func Fit(data mat.Matrix, cfg Config) (*Result, error) {
	if cfg.K < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", cfg.K)
	}
	n, d := data.Dims()
	if cfg.K > n {
		return nil, &InsufficientItemsError{K: cfg.K, Items: n}
	}
	if d == 0 {
		return nil, fmt.Errorf("data has no features")
	}
	if cfg.NInit < 1 {
		cfg.NInit = 1
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}

	points := make([][]float64, n)
	for i := range points {
		points[i] = mat.Row(nil, i, data)
		for _, v := range points[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d contains a non-finite value", i)
			}
		}
	}

	tol := cfg.Tolerance * meanVariance(points, d)
	rng := rand.New(rand.NewSource(cfg.Seed))

	var best *run
	for attempt := 0; attempt < cfg.NInit; attempt++ {
		centers := initPlusPlus(points, cfg.K, rng)
		r := lloyd(points, centers, cfg.MaxIterations, tol)
		if best == nil || r.inertia < best.inertia {
			best = r
		}
	}

	flat := make([]float64, 0, cfg.K*d)
	for _, c := range best.centers {
		flat = append(flat, c...)
	}

	return &Result{
		Labels:     best.labels,
		Centers:    mat.NewDense(cfg.K, d, flat),
		Inertia:    best.inertia,
		Iterations: best.iterations,
	}, nil
}

type run struct {
	labels     []int
	centers    [][]float64
	inertia    float64
	iterations int
}

func meanVariance(points [][]float64, d int) float64 {
	if len(points) < 2 {
		return 0
	}
	col := make([]float64, len(points))
	total := 0.0
	for j := 0; j < d; j++ {
		for i, p := range points {
			col[i] = p[j]
		}
		_, v := stat.PopMeanVariance(col, nil)
		total += v
	}
	return total / float64(d)
}

func sqDist(a, b []float64) float64 {
	dist := floats.Distance(a, b, 2)
	return dist * dist
}

// initPlusPlus picks k starting centres with D² weighting.
func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	chosen := make([]bool, n)
	centers := make([][]float64, 0, k)

	first := rng.Intn(n)
	chosen[first] = true
	centers = append(centers, append([]float64(nil), points[first]...))

	d2 := make([]float64, n)
	for i, p := range points {
		d2[i] = sqDist(p, centers[0])
	}

	for len(centers) < k {
		next := -1
		total := floats.Sum(d2)
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, w := range d2 {
				acc += w
				if w > 0 && acc >= target {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// Every remaining point coincides with a centre.
			for i := range points {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		chosen[next] = true
		c := append([]float64(nil), points[next]...)
		centers = append(centers, c)
		for i, p := range points {
			if d := sqDist(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

func lloyd(points [][]float64, centers [][]float64, maxIter int, tol float64) *run {
	k := len(centers)
	d := len(points[0])
	labels := make([]int, len(points))

	iterations := 0
	for iterations < maxIter {
		iterations++
		assign(points, centers, labels)

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, d)
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}

		next := make([][]float64, k)
		for c := range next {
			if counts[c] == 0 {
				next[c] = nil
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			next[c] = sums[c]
		}
		relocateEmpty(points, labels, centers, next, counts)

		shift := 0.0
		for c := range centers {
			shift += sqDist(centers[c], next[c])
		}
		centers = next
		if shift <= tol {
			break
		}
	}

	assign(points, centers, labels)
	inertia := fillEmpty(points, labels, centers)
	return &run{labels: labels, centers: centers, inertia: inertia, iterations: iterations}
}

// assign labels each point with its nearest centre (lowest index on ties)
// and returns the inertia.
func assign(points [][]float64, centers [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, center := range centers {
			if dist := sqDist(p, center); dist < bestDist {
				best, bestDist = c, dist
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// fillEmpty gives every cluster left without points by the final
// assignment the point farthest from its centre, taken from a cluster with
// at least two points, and centres it there. It returns the inertia of the
// resulting labels.
func fillEmpty(points [][]float64, labels []int, centers [][]float64) float64 {
	counts := make([]int, len(centers))
	for _, l := range labels {
		counts[l]++
	}
	for c := range centers {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] < 2 {
				continue
			}
			if dist := sqDist(p, centers[labels[i]]); dist > farDist {
				far, farDist = i, dist
			}
		}
		if far < 0 {
			break
		}
		counts[labels[far]]--
		counts[c]++
		labels[far] = c
		centers[c] = append([]float64(nil), points[far]...)
	}

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centers[labels[i]])
	}
	return inertia
}

// relocateEmpty moves every empty cluster onto the point farthest from its
// current centre, taken from clusters that can spare one.
func relocateEmpty(points [][]float64, labels []int, old, next [][]float64, counts []int) {
	used := make(map[int]bool)
	for c := range next {
		if next[c] != nil {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if used[i] || counts[labels[i]] < 2 {
				continue
			}
			if dist := sqDist(p, old[labels[i]]); dist > farDist {
				far, farDist = i, dist
			}
		}
		if far < 0 {
			next[c] = append([]float64(nil), old[c]...)
			continue
		}
		used[far] = true
		counts[labels[far]]--
		counts[c]++
		labels[far] = c
		next[c] = append([]float64(nil), points[far]...)
	}
}

// Inertia returns the sum of squared distances from each row of data to the
// centre its label points at.
func Inertia(data mat.Matrix, labels []int, centers mat.Matrix) float64 {
	n, _ := data.Dims()
	total := 0.0
	for i := 0; i < n; i++ {
		total += sqDist(mat.Row(nil, i, data), mat.Row(nil, labels[i], centers))
	}
	return total
}
