package analyzer

import (
	"math"
	"sort"
)

// quantile returns the q-th quantile of sorted using linear interpolation
// between the closest ranks. sorted must be non-empty and ascending.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func sortedCopy(vals []float64) []float64 {
	out := append([]float64(nil), vals...)
	sort.Float64s(out)
	return out
}

// histogram bins vals into n equal-width bins over [min, max]; the last bin is
// closed on the right. A constant input is widened to [v-0.5, v+0.5].
func histogram(vals []float64, n int) ([]int, []float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + step*float64(i)
	}
	edges[n] = hi

	counts := make([]int, n)
	for _, v := range vals {
		idx := int((v - lo) / (hi - lo) * float64(n))
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		if v < edges[idx] && idx > 0 {
			idx--
		} else if idx < n-1 && v >= edges[idx+1] {
			idx++
		}
		counts[idx]++
	}
	return counts, edges
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
