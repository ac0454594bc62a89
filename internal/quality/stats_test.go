package quality

import (
	"strings"
	"testing"
)

func TestNewDistStats(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		st := NewDistStats(nil)
		if st.Count != 0 {
			t.Errorf("count = %d, want 0", st.Count)
		}
		if st.Min != nil || st.Max != nil || st.Mean != nil || st.P50 != nil || st.P95 != nil {
			t.Error("empty distribution must yield nil summary fields")
		}
	})

	t.Run("values", func(t *testing.T) {
		t.Parallel()
		st := NewDistStats([]float64{3, 1, 2, 4})
		if st.Count != 4 {
			t.Errorf("count = %d, want 4", st.Count)
		}
		if *st.Min != 1 || *st.Max != 4 {
			t.Errorf("min/max = %v/%v, want 1/4", *st.Min, *st.Max)
		}
		if *st.Mean != 2.5 {
			t.Errorf("mean = %v, want 2.5", *st.Mean)
		}
		if *st.P50 != 2.5 {
			t.Errorf("p50 = %v, want 2.5", *st.P50)
		}
	})

	t.Run("input not mutated", func(t *testing.T) {
		t.Parallel()
		in := []float64{3, 1, 2}
		NewDistStats(in)
		if in[0] != 3 {
			t.Error("NewDistStats must not sort the caller's slice")
		}
	})
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	sorted := []float64{10, 20, 30, 40, 50}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{50, 30},
		{100, 50},
		{25, 20},
		{95, 48},
	}
	for _, tc := range cases {
		if got := percentile(sorted, tc.p); got != tc.want {
			t.Errorf("percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile of empty = %v, want 0", got)
	}
}

func TestAsciiHist(t *testing.T) {
	t.Parallel()

	lines := asciiHist([]float64{0.3, 0.7, 0.7, 5.5}, []float64{0, 0.5, 1, 2, 3, 5, 8})
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want one per bin", len(lines))
	}
	if !strings.Contains(lines[1], "2") {
		t.Errorf("second bin should hold two values: %q", lines[1])
	}
	if got := asciiHist(nil, []float64{0, 1}); len(got) != 1 || got[0] != "(no data)" {
		t.Errorf("empty input = %q", got)
	}
}
