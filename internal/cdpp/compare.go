package cdpp

import (
	"math"

	"k2ledger/internal/stats"
)

type ComparisonRow struct {
	ID   int64   `json:"id"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	Diff float64 `json:"relative_diff"`
}

type Comparison struct {
	Rows       []ComparisonRow `json:"rows"`
	Missing    int             `json:"missing"`
	MedianA    float64         `json:"median_a"`
	MedianB    float64         `json:"median_b"`
	MedianDiff float64         `json:"median_relative_diff"`
}

// Compare lines up table b against the ids of table a and reports the relative
// difference (b-a)/a of the de-trended CDPP. Zero rows mark unmeasured targets and
// are left out of the medians.
func Compare(a, b []Row) Comparison {
	idsA := make([]int64, len(a))
	for i, r := range a {
		idsA[i] = r.ID
	}
	idsB := make([]int64, len(b))
	valsB := make([]float64, len(b))
	for i, r := range b {
		idsB[i] = r.ID
		valsB[i] = r.Detrended
	}
	aligned := stats.SortLike(valsB, idsA, idsB)

	out := Comparison{Rows: make([]ComparisonRow, 0, len(a))}
	var colA, colB, diffs []float64
	for i, r := range a {
		row := ComparisonRow{ID: r.ID, A: r.Detrended, B: aligned[i], Diff: math.NaN()}
		if math.IsNaN(row.B) {
			out.Missing++
		} else if row.A > 0 && row.B > 0 {
			row.Diff = (row.B - row.A) / row.A
			colA = append(colA, row.A)
			colB = append(colB, row.B)
			diffs = append(diffs, row.Diff)
		}
		out.Rows = append(out.Rows, row)
	}
	out.MedianA = stats.Median(colA)
	out.MedianB = stats.Median(colB)
	out.MedianDiff = stats.Median(diffs)
	return out
}
