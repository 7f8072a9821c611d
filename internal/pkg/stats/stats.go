// Package stats holds the small numeric helpers shared by the aggregation code.
// Every helper returns a finite value; callers never see NaN or Inf.
package stats

import (
	"math"
	"slices"
)

// Number is any numeric type the helpers accept.
type Number interface {
	~int | ~int64 | ~float64
}

// Ratio divides numerator by denominator, returning 0 when the denominator is 0.
func Ratio[N, D Number](numerator N, denominator D) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

// Percent returns numerator/denominator*100 rounded to the nearest integer.
func Percent[N, D Number](numerator N, denominator D) int {
	return int(math.Round(Ratio(numerator, denominator) * 100))
}

// Mean is the arithmetic mean, 0 for an empty slice.
func Mean[N Number](values []N) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Median returns the lower-middle element of the sorted values: for [2,4,6,8] it
// is 4, not 5. The input is copied, never reordered.
func Median[N Number](values []N) N {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[(len(sorted)-1)/2]
}

// Sum adds the values.
func Sum[N Number](values []N) N {
	var sum N
	for _, v := range values {
		sum += v
	}
	return sum
}
