package quality

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DistStats summarises one scalar distribution. Pointer fields are nil for
// an empty distribution so the JSON encodes them as null, matching the
// report contract.
type DistStats struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Mean  *float64 `json:"mean"`
	P50   *float64 `json:"p50"`
	P95   *float64 `json:"p95"`
}

// NewDistStats computes summary statistics over values. The input slice is
// not modified.
func NewDistStats(values []float64) DistStats {
	st := DistStats{Count: len(values)}
	if len(values) == 0 {
		return st
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st.Min = fptr(sorted[0])
	st.Max = fptr(sorted[len(sorted)-1])
	st.Mean = fptr(sum / float64(len(sorted)))
	st.P50 = fptr(percentile(sorted, 50))
	st.P95 = fptr(percentile(sorted, 95))
	return st
}

// percentile returns the p-th percentile of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := float64(len(sorted)-1) * (p / 100.0)
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

// asciiHist renders values as a fixed-bin ASCII histogram for the Markdown
// report.
func asciiHist(values []float64, bins []float64) []string {
	if len(values) == 0 {
		return []string{"(no data)"}
	}
	counts := make([]int, len(bins)-1)
	for _, v := range values {
		for i := 0; i < len(bins)-1; i++ {
			lo, hi := bins[i], bins[i+1]
			last := i == len(bins)-2
			if v >= lo && (v < hi || (last && v <= hi)) {
				counts[i]++
				break
			}
		}
	}
	maxc := 0
	for _, c := range counts {
		if c > maxc {
			maxc = c
		}
	}
	lines := make([]string, 0, len(counts))
	for i, c := range counts {
		bar := ""
		if maxc > 0 {
			bar = strings.Repeat("#", c*40/maxc)
		}
		lines = append(lines, fmt.Sprintf("%5.1f..%5.1f | %6d %s", bins[i], bins[i+1], c, bar))
	}
	return lines
}

func fptr(v float64) *float64 { return &v }
