package normalize

import (
	"sort"

	"fundscore/internal/analytics"
)

// Band score anchors.
const (
	bandCore  = 75.0
	bandFloor = 25.0

	penaltyCeiling = 75.0
	penaltyFloor   = 30.0
)

// PercentileScores ranks values with ties sharing their average rank and maps
// rank/n onto (0, 100]. The highest value scores 100.
func PercentileScores(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for start := 0; start < n; {
		end := start + 1
		for end < n && values[idx[end]] == values[idx[start]] {
			end++
		}
		// positions start..end-1 hold ranks start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			out[idx[k]] = avg / float64(n) * 100
		}
		start = end
	}
	return out
}

// Quartiles are the distribution cut points used by band scoring.
type Quartiles struct {
	P10, P25, P75, P90 float64
}

// QuartilesOf computes P10/P25/P75/P90 with linear interpolation.
func QuartilesOf(values []float64) Quartiles {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Quartiles{
		P10: analytics.QuantileSorted(sorted, 0.10),
		P25: analytics.QuantileSorted(sorted, 0.25),
		P75: analytics.QuantileSorted(sorted, 0.75),
		P90: analytics.QuantileSorted(sorted, 0.90),
	}
}

// SymmetricBand rewards values near the peer median: 75 inside [P25, P75],
// tapering linearly to 25 at P10 and P90 and held at 25 beyond.
func SymmetricBand(x float64, q Quartiles) float64 {
	switch {
	case x >= q.P25 && x <= q.P75:
		return bandCore
	case x < q.P25:
		if q.P25 == q.P10 || x <= q.P10 {
			return bandFloor
		}
		return bandCore - (q.P25-x)/(q.P25-q.P10)*(bandCore-bandFloor)
	default:
		if q.P90 == q.P75 || x >= q.P90 {
			return bandFloor
		}
		return bandCore - (x-q.P75)/(q.P90-q.P75)*(bandCore-bandFloor)
	}
}

// OneSidedPenalty leaves values up to P75 at 75, tapers linearly to 30 at P90
// and holds 30 beyond.
func OneSidedPenalty(x float64, q Quartiles) float64 {
	switch {
	case x <= q.P75:
		return penaltyCeiling
	case q.P90 == q.P75 || x >= q.P90:
		return penaltyFloor
	default:
		return penaltyCeiling - (x-q.P75)/(q.P90-q.P75)*(penaltyCeiling-penaltyFloor)
	}
}
