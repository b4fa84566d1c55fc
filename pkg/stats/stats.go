// Package stats holds the descriptive statistics shared by the window
// metrics, the risk scorer and the risk rollup.
package stats

import (
	"math"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// ReportedPercentiles are the ranks exposed by window metrics and rollups.
var ReportedPercentiles = []float64{25, 50, 75, 90}

// Mean returns 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopStdDev is the population standard deviation (divisor n).
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(values, nil))
}

// CoefficientOfVariation is PopStdDev / Mean, or 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return PopStdDev(values) / mean
}

// Percentile uses linear interpolation between closest ranks: the value at
// rank p/100*(n-1) of the sorted sample. This matches the default of the
// common dataframe and array libraries. sorted must be in ascending order.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Percentiles computes ReportedPercentiles keyed by their integer rank
// ("25", "50", ...). values is not modified.
func Percentiles(values []float64) map[string]float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	out := make(map[string]float64, len(ReportedPercentiles))
	for _, p := range ReportedPercentiles {
		out[strconv.Itoa(int(p))] = Percentile(sorted, p)
	}
	return out
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
