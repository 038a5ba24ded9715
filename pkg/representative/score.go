package representative

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/protein-representatives/pkg/matrix"
)

// Score is a centrality value that may be undefined. A group whose every
// comparison is excluded has no valid score; it is never reported as 0.
type Score struct {
	Value float64
	Valid bool
}

// NoScore is the undefined score.
var NoScore = Score{}

// Valid wraps v as a defined score.
func Valid(v float64) Score { return Score{Value: v, Valid: true} }

// String renders the score for tabular output; an undefined score is the
// empty cell.
func (s Score) String() string {
	if !s.Valid {
		return ""
	}
	return matrix.FormatFloat(s.Value)
}

// Excluded reports whether a pairwise score takes no part in averaging:
// exactly 1.0 (self), exactly 0.0 (no alignment) or missing.
func Excluded(v float64) bool {
	return v == 1.0 || v == 0.0 || math.IsNaN(v)
}

// FilteredMean averages the values that are not Excluded.
func FilteredMean(values []float64) Score {
	sum, n := 0.0, 0
	for _, v := range values {
		if Excluded(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return NoScore
	}
	return Valid(sum / float64(n))
}

// RowMeans returns the FilteredMean of every row of m.
func RowMeans(m mat.Matrix) []Score {
	r, c := m.Dims()
	means := make([]Score, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		means[i] = FilteredMean(row)
	}
	return means
}

// Centroid is the mean of the valid scores, or NoScore when there are none.
func Centroid(scores []Score) Score {
	sum, n := 0.0, 0
	for _, s := range scores {
		if !s.Valid {
			continue
		}
		sum += s.Value
		n++
	}
	if n == 0 {
		return NoScore
	}
	return Valid(sum / float64(n))
}
