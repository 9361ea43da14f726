// Package stats computes summary statistics over history data for the
// report endpoint and the plotting tool.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/greenwave-data/junction.control/internal/approach"
)

// Summary describes one series of observations. P50 and P85 follow the
// traffic-engineering convention of reporting the median and the 85th
// percentile.
type Summary struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P85  float64 `json:"p85"`
	Max  float64 `json:"max"`
}

// Summarize computes a Summary over the values. An empty slice yields the
// zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	// stat.Quantile requires sorted input; sort a copy so callers keep
	// their ordering.
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Summary{
		N:    len(values),
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P85:  stat.Quantile(0.85, stat.Empirical, sorted, nil),
		Max:  floats.Max(sorted),
	}
}

// SaturationEstimate converts a per-class vehicle breakdown into the
// seconds of green needed to clear it, assuming the given number of lanes
// discharge in parallel. Unknown classes count as cars. Reported for
// operator insight only; green sizing uses the timing policy formula.
func SaturationEstimate(classes map[string]int64, lanes int) float64 {
	if lanes < 1 {
		lanes = 1
	}
	var seconds float64
	for name, n := range classes {
		if n <= 0 {
			continue
		}
		cl := approach.Class(name)
		if !approach.IsValidClass(cl) {
			cl = approach.ClassCar
		}
		seconds += float64(n) * approach.CrossingTime(cl)
	}
	return seconds / float64(lanes)
}
