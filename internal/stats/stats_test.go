package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.N != 0 || s.Mean != 0 || s.P50 != 0 || s.P85 != 0 || s.Max != 0 {
		t.Errorf("Expected zero Summary for empty input, got %+v", s)
	}
}

func TestSummarizeSingle(t *testing.T) {
	s := Summarize([]float64{20000})
	if s.N != 1 {
		t.Errorf("N = %d, want 1", s.N)
	}
	if !almostEqual(s.Mean, 20000) || !almostEqual(s.P50, 20000) || !almostEqual(s.Max, 20000) {
		t.Errorf("Expected all stats 20000 for single value, got %+v", s)
	}
}

func TestSummarizeKnownData(t *testing.T) {
	// Unsorted on purpose; Summarize must not rely on input order.
	values := []float64{30000, 10000, 20000, 40000, 50000}
	s := Summarize(values)

	if s.N != 5 {
		t.Errorf("N = %d, want 5", s.N)
	}
	if !almostEqual(s.Mean, 30000) {
		t.Errorf("Mean = %v, want 30000", s.Mean)
	}
	if !almostEqual(s.P50, 30000) {
		t.Errorf("P50 = %v, want 30000", s.P50)
	}
	if !almostEqual(s.Max, 50000) {
		t.Errorf("Max = %v, want 50000", s.Max)
	}
	if s.P85 < s.P50 || s.P85 > s.Max {
		t.Errorf("P85 = %v, want within [P50, Max]", s.P85)
	}

	// Input must be untouched.
	if values[0] != 30000 || values[4] != 50000 {
		t.Errorf("Summarize mutated its input: %v", values)
	}
}

func TestSaturationEstimate(t *testing.T) {
	classes := map[string]int64{
		"car":  4, // 4 * 2.0 = 8
		"bike": 2, // 2 * 1.0 = 2
		"bus":  1, // 1 * 2.5 = 2.5
	}
	if got := SaturationEstimate(classes, 1); !almostEqual(got, 12.5) {
		t.Errorf("SaturationEstimate(1 lane) = %v, want 12.5", got)
	}
	if got := SaturationEstimate(classes, 2); !almostEqual(got, 6.25) {
		t.Errorf("SaturationEstimate(2 lanes) = %v, want 6.25", got)
	}
}

func TestSaturationEstimateEdgeCases(t *testing.T) {
	if got := SaturationEstimate(nil, 2); got != 0 {
		t.Errorf("Expected 0 for nil breakdown, got %v", got)
	}
	// Unknown class counts as a car, zero lanes clamps to one.
	if got := SaturationEstimate(map[string]int64{"hovercraft": 2}, 0); !almostEqual(got, 4.0) {
		t.Errorf("Expected 4.0 for unknown class, got %v", got)
	}
	// Negative counts are ignored.
	if got := SaturationEstimate(map[string]int64{"car": -5}, 1); got != 0 {
		t.Errorf("Expected 0 for negative count, got %v", got)
	}
}
