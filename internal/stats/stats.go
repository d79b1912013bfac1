// Package stats holds the small numeric helpers used to judge light curve quality.
package stats

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// ParseFloat never fails: anything unparsable is NaN.
func ParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Median ignores NaNs and averages the two middle values of an even count.
// An empty or all-NaN input gives NaN.
func Median(y []float64) float64 {
	vals := finite(y)
	if len(vals) == 0 {
		return math.NaN()
	}
	slices.Sort(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// MAD is the median absolute deviation scaled to a Gaussian sigma.
func MAD(y []float64) float64 {
	m := Median(y)
	dev := make([]float64, len(y))
	for i, v := range y {
		dev[i] = math.Abs(v - m)
	}
	return 1.4826 * Median(dev)
}

// SortLike reorders l so that entry i belongs to key col1[i]. l is indexed like col2;
// keys of col1 missing from col2 get NaN.
func SortLike(l []float64, col1, col2 []int64) []float64 {
	pos := make(map[int64]int, len(col2))
	for j := len(col2) - 1; j >= 0; j-- {
		pos[col2[j]] = j
	}
	out := make([]float64, len(col1))
	for i, key := range col1 {
		j, ok := pos[key]
		if !ok || j >= len(l) {
			out[i] = math.NaN()
			continue
		}
		out[i] = l[j]
	}
	return out
}

// finite drops NaNs.
func finite(y []float64) []float64 {
	out := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
