package analysis

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0..100) of sample using linear
// interpolation between closest ranks. The sample need not be sorted and is
// not modified. An empty sample returns NaN.
func Percentile(sample []float64, p float64) float64 {
	if len(sample) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median is the 50th percentile under the same interpolation.
func Median(sample []float64) float64 {
	return Percentile(sample, 50)
}

// Mean returns the arithmetic mean, or NaN for an empty sample.
func Mean(sample []float64) float64 {
	if len(sample) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

// PercentileRank places value inside sample on the 0..100 scale, inverting
// Percentile: a value equal to the k-th of n sorted entries maps to
// k/(n-1)*100. Runs of ties take their midpoint, values between entries are
// interpolated, and values outside the sample clamp to 0 or 100. A single
// entry sample returns 50 for an equal value.
func PercentileRank(sample []float64, value float64) float64 {
	n := len(sample)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, sample)
	sort.Float64s(sorted)

	if value < sorted[0] {
		return 0
	}
	if value > sorted[n-1] {
		return 100
	}
	if n == 1 {
		return 50
	}

	lo := sort.SearchFloat64s(sorted, value)
	if sorted[lo] == value {
		hi := sort.Search(n, func(i int) bool { return sorted[i] > value }) - 1
		mid := float64(lo+hi) / 2
		return mid / float64(n-1) * 100
	}
	// sorted[lo-1] < value < sorted[lo]
	prev := sorted[lo-1]
	frac := (value - prev) / (sorted[lo] - prev)
	return (float64(lo-1) + frac) / float64(n-1) * 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
