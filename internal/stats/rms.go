package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultRMSWindow is 13 long-cadence samples, roughly six hours.
	DefaultRMSWindow = 13

	outlierSmoothing = 50
	outlierSigma     = 5
)

// RMS estimates the scatter of a normalised flux series in parts per million: the
// median over chunks of win samples of std/sqrt(win). With removeOutliers, points more
// than 5 sigma (MAD) from the 50-sample smoothed trend are dropped first.
func RMS(y []float64, win int, removeOutliers bool) float64 {
	if win <= 0 {
		win = DefaultRMSWindow
	}
	vals := finite(y)
	if removeOutliers {
		vals = clipOutliers(vals)
	}
	if len(vals) == 0 {
		return math.NaN()
	}

	var scatter []float64
	for _, c := range chunks(vals, win) {
		scatter = append(scatter, math.Sqrt(stat.PopVariance(c, nil))/math.Sqrt(float64(win)))
	}
	return 1e6 * Median(scatter)
}

func clipOutliers(y []float64) []float64 {
	resid := y
	if len(y) >= outlierSmoothing {
		trend := Smooth(y, outlierSmoothing)
		resid = make([]float64, len(y))
		for i := range y {
			resid[i] = y[i] - trend[i]
		}
	}
	m := Median(resid)
	mad := MAD(resid)
	out := make([]float64, 0, len(y))
	for i, v := range y {
		if resid[i] > m+outlierSigma*mad || resid[i] < m-outlierSigma*mad {
			continue
		}
		out = append(out, v)
	}
	return out
}

// chunks returns consecutive windows of size win; a trailing partial window is kept
// only when it is the sole window.
func chunks(y []float64, win int) [][]float64 {
	if len(y) <= win {
		return [][]float64{y}
	}
	var out [][]float64
	for i := 0; i+win <= len(y); i += win {
		out = append(out, y[i:i+win])
	}
	return out
}
