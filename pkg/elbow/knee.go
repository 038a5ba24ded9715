package elbow

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FindElbow locates the knee of a convex, decreasing curve with the Kneedle
// algorithm (Satopää et al. 2011), offline variant: the first knee found
// while walking the difference curve is returned.
//
// x must be strictly increasing. sensitivity is Kneedle's S parameter; 1.0
// is the usual choice. The boolean is false when the curve has no knee,
// including curves with fewer than three points or a flat y.
func FindElbow(x, y []float64, sensitivity float64) (float64, bool) {
	n := len(x)
	if n != len(y) || n < 3 {
		return 0, false
	}

	xn, ok := normalize(x)
	if !ok {
		return 0, false
	}
	yn, ok := normalize(y)
	if !ok {
		return 0, false
	}

	// Flip the elbow into a knee.
	ymax := floats.Max(yn)
	for i := range yn {
		yn[i] = ymax - yn[i]
	}

	diff := make([]float64, n)
	floats.SubTo(diff, yn, xn)

	maxima := relativeExtrema(diff, func(a, b float64) bool { return a >= b })
	minima := relativeExtrema(diff, func(a, b float64) bool { return a <= b })
	if len(maxima) == 0 {
		return 0, false
	}

	steps := make([]float64, n-1)
	for i := 1; i < n; i++ {
		steps[i-1] = xn[i] - xn[i-1]
	}
	step := math.Abs(stat.Mean(steps, nil))

	thresholds := make([]float64, len(maxima))
	for i, m := range maxima {
		thresholds[i] = diff[m] - sensitivity*step
	}

	isMax := indexSet(maxima)
	isMin := indexSet(minima)

	maxSeen := 0
	threshold, thresholdIndex := 0.0, maxima[0]
	for i := maxima[0]; i < n-1; i++ {
		if isMax[i] {
			threshold = thresholds[maxSeen]
			thresholdIndex = i
			maxSeen++
		}
		if isMin[i] {
			threshold = 0
		}
		if diff[i+1] < threshold {
			return x[thresholdIndex], true
		}
	}
	return 0, false
}

func normalize(v []float64) ([]float64, bool) {
	lo, hi := floats.Min(v), floats.Max(v)
	span := hi - lo
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return nil, false
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - lo) / span
	}
	return out, true
}

// relativeExtrema returns the indices i where cmp(v[i], v[i-1]) and
// cmp(v[i], v[i+1]) both hold, with out-of-range neighbours clipped to the
// boundary element.
func relativeExtrema(v []float64, cmp func(a, b float64) bool) []int {
	var idx []int
	last := len(v) - 1
	for i := range v {
		prev, next := i-1, i+1
		if prev < 0 {
			prev = 0
		}
		if next > last {
			next = last
		}
		if cmp(v[i], v[prev]) && cmp(v[i], v[next]) {
			idx = append(idx, i)
		}
	}
	return idx
}

func indexSet(idx []int) map[int]bool {
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	return set
}
