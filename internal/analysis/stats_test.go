package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	sample := []float64{10, 1, 4, 7}
	assert.InDelta(t, 1.0, Percentile(sample, 0), 1e-9)
	assert.InDelta(t, 10.0, Percentile(sample, 100), 1e-9)
	assert.InDelta(t, 5.5, Median(sample), 1e-9)
	assert.InDelta(t, 9.1, Percentile(sample, 90), 1e-9)
	assert.Equal(t, []float64{10, 1, 4, 7}, sample, "input must stay unsorted")

	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.InDelta(t, 26.0, Median([]float64{26}), 1e-9)
}

func TestPercentileRank(t *testing.T) {
	sample := []float64{10, 20, 30, 40, 50}
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"below", 5, 0},
		{"above", 55, 100},
		{"min", 10, 0},
		{"max", 50, 100},
		{"middle", 30, 50},
		{"between", 35, 62.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PercentileRank(sample, tt.value), 1e-9)
		})
	}

	assert.InDelta(t, 50.0, PercentileRank([]float64{3, 3, 3}, 3), 1e-9, "ties take the midpoint")
	assert.InDelta(t, 50.0, PercentileRank([]float64{3}, 3), 1e-9)
	assert.True(t, math.IsNaN(PercentileRank(nil, 1)))
}

func TestPercentileRank_InvertsPercentile(t *testing.T) {
	sample := []float64{2, 9, 4, 15, 11, 6}
	for _, p := range []float64{0, 10, 33, 50, 75, 100} {
		v := Percentile(sample, p)
		assert.InDelta(t, p, PercentileRank(sample, v), 1e-6, "p=%v", p)
	}
}

func FuzzPercentileOrdering(f *testing.F) {
	f.Add(1.0, 2.0, 3.0, 4.0, uint8(4))
	f.Add(26.0, 0.0, 0.0, 0.0, uint8(1))
	f.Add(-5.0, 1e6, 3.3, 3.3, uint8(3))

	f.Fuzz(func(t *testing.T, a, b, c, d float64, n uint8) {
		all := []float64{a, b, c, d}
		for _, v := range all {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e12 {
				t.Skip()
			}
		}
		size := int(n%4) + 1
		sample := all[:size]

		med := Median(sample)
		p90 := Percentile(sample, 90)
		scale := 1.0
		for _, v := range sample {
			scale = math.Max(scale, math.Abs(v))
		}
		tol := 1e-9 * scale
		if p90 < med-tol {
			t.Errorf("p90 %v < median %v for %v", p90, med, sample)
		}
		lo, hi := Percentile(sample, 0), Percentile(sample, 100)
		if med < lo-tol || p90 > hi+tol {
			t.Errorf("percentiles escape sample range for %v", sample)
		}
	})
}

func TestClampAndRound(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 100))
	assert.Equal(t, 100.0, Clamp(300, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
	assert.Equal(t, 3.3, Round1(3.26))
}
