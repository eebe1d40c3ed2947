// Package analyze computes numeric and text summaries for analyzed payloads.
// Everything here is pure and stateless; the HTTP layer treats it as an
// opaque callback.
package analyze

import (
	"fmt"
	"math"
	"sort"
)

// NumericSummary aggregates a non-empty series of numbers.
type NumericSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
}

// Numbers computes min, max, mean, median, and sample standard deviation.
// The standard deviation of a single value is 0.
func Numbers(values []float64) (NumericSummary, error) {
	if len(values) == 0 {
		return NumericSummary{}, fmt.Errorf("numbers must not be empty")
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	return NumericSummary{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: median(sorted),
		StdDev: sampleStdDev(sorted, mean),
	}, nil
}

// median expects its input sorted.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sampleStdDev uses the n-1 denominator.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
