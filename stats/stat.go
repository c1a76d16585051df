// Package stats holds the statistical helpers shared by the forecast models
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrWindowTooSmall = errors.New("rolling window must be at least 2")
	ErrWindowTooLarge = errors.New("rolling window is larger than the series")
)

// DetectOutliers returns the indices of values outside of the Tukey fences computed from the
// lower and upper percentiles. NaN values are ignored.
func DetectOutliers(y []float64, lowerPerc, upperPerc, tukeyFactor float64) []int {
	lowerPerc = math.Max(lowerPerc, 0.0)
	upperPerc = math.Min(upperPerc, 1.0)
	tukeyFactor = math.Max(tukeyFactor, 0.0)

	sorted := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) < 2 {
		return nil
	}
	sort.Float64s(sorted)

	lower := stat.Quantile(lowerPerc, stat.Empirical, sorted, nil)
	upper := stat.Quantile(upperPerc, stat.Empirical, sorted, nil)
	innerRange := upper - lower
	lower -= innerRange * tukeyFactor
	upper += innerRange * tukeyFactor

	var outlierIdx []int
	for i, v := range y {
		if math.IsNaN(v) {
			continue
		}
		if v > upper || v < lower {
			outlierIdx = append(outlierIdx, i)
		}
	}
	return outlierIdx
}

// RollingStdDev computes the standard deviation over every full window of the series scaled
// by zscore. The output has len(x)-window+1 values, NaNs inside a window are skipped.
func RollingStdDev(x []float64, window int, zscore float64) ([]float64, error) {
	if window < 2 {
		return nil, ErrWindowTooSmall
	}
	if window > len(x) {
		return nil, ErrWindowTooLarge
	}

	out := make([]float64, len(x)-window+1)
	buf := make([]float64, 0, window)
	for i := range out {
		buf = buf[:0]
		for _, v := range x[i : i+window] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) < 2 {
			out[i] = math.NaN()
			continue
		}
		_, std := stat.MeanStdDev(buf, nil)
		out[i] = zscore * std
	}
	return out, nil
}

// Standardize returns the mean and standard deviation used to center and scale x. A constant
// series has a scale of 1 so that standardizing it yields zeros.
func Standardize(x []float64) (center, scale float64) {
	if len(x) == 0 {
		return 0, 1
	}
	center, scale = stat.MeanStdDev(x, nil)
	if len(x) < 2 || math.IsNaN(scale) || scale == 0 {
		return center, 1
	}
	return center, scale
}
