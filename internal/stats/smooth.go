package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Smooth convolves y with a normalised Hanning window of length window. The series is
// padded with its point reflection at both ends so the edges do not droop.
func Smooth(y []float64, window int) []float64 {
	n := len(y)
	if window <= 1 || n < window {
		return append([]float64(nil), y...)
	}

	padded := make([]float64, 0, n+2*window-1)
	for i := window - 1; i >= 0; i-- {
		padded = append(padded, 2*y[0]-y[i])
	}
	padded = append(padded, y...)
	for i := n - 1; i > n-window; i-- {
		padded = append(padded, 2*y[n-1]-y[i])
	}

	w := hanning(window)
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}

	// "same"-mode convolution, keeping only the samples that line up with y
	offset := (window - 1) / 2
	out := make([]float64, n)
	for k := range out {
		idx := k + window + offset
		acc := 0.0
		for m, wm := range w {
			j := idx - m
			if j >= 0 && j < len(padded) {
				acc += wm * padded[j]
			}
		}
		out[k] = acc
	}
	return out
}

func hanning(m int) []float64 {
	if m == 1 {
		return []float64{1}
	}
	w := make([]float64, m)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(m-1))
	}
	return w
}

// SavGol applies a Savitzky-Golay filter. Interior points use the centred least-squares
// polynomial; the first and last half windows are evaluated on the polynomial fitted to
// the first and last full window.
func SavGol(y []float64, window, order int) ([]float64, error) {
	switch {
	case window%2 == 0 || window < 1:
		return nil, fmt.Errorf("savgol window must be a positive odd number, got %d", window)
	case order < 0 || order >= window:
		return nil, fmt.Errorf("savgol order must be in [0, %d), got %d", window, order)
	case len(y) < window:
		return nil, fmt.Errorf("savgol needs at least %d samples, got %d", window, len(y))
	}
	half := window / 2
	n := len(y)
	out := make([]float64, n)

	for i := half; i < n-half; i++ {
		v, err := fitAndEval(y[i-half:i+half+1], order, []int{half})
		if err != nil {
			return nil, err
		}
		out[i] = v[0]
	}

	head := make([]int, half)
	tail := make([]int, half)
	for i := 0; i < half; i++ {
		head[i] = i
		tail[i] = window - half + i
	}
	v, err := fitAndEval(y[:window], order, head)
	if err != nil {
		return nil, err
	}
	copy(out[:half], v)
	v, err = fitAndEval(y[n-window:], order, tail)
	if err != nil {
		return nil, err
	}
	copy(out[n-half:], v)
	return out, nil
}

// fitAndEval fits a polynomial of the given order to seg by least squares and returns
// its value at the positions at.
func fitAndEval(seg []float64, order int, at []int) ([]float64, error) {
	m := len(seg)
	center := float64(m-1) / 2
	scale := math.Max(center, 1)
	design := mat.NewDense(m, order+1, nil)
	for i := 0; i < m; i++ {
		x := (float64(i) - center) / scale
		p := 1.0
		for k := 0; k <= order; k++ {
			design.Set(i, k, p)
			p *= x
		}
	}
	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(m, append([]float64(nil), seg...))); err != nil {
		return nil, fmt.Errorf("savgol fit: %w", err)
	}

	out := make([]float64, len(at))
	for j, pos := range at {
		x := (float64(pos) - center) / scale
		acc := 0.0
		p := 1.0
		for k := 0; k <= order; k++ {
			acc += coef.AtVec(k) * p
			p *= x
		}
		out[j] = acc
	}
	return out, nil
}
