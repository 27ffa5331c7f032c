package metrics

// Trend is the direction of a metric series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDeclining  Trend = "declining"
	TrendStable     Trend = "stable"
	TrendImproving  Trend = "improving"
	TrendWorsening  Trend = "worsening"
)

// Classify compares the mean of the trailing half of the series with the mean
// of the leading half; with an odd length the middle value is left out.
// Relative changes inside ±deadZone are stable.
// When lowerIsBetter is set, a falling series is reported as improving and a
// rising one as worsening. Fewer than two values are stable.
func Classify(values []float64, deadZone float64, lowerIsBetter bool) Trend {
	dir := direction(values, deadZone)
	if !lowerIsBetter {
		return dir
	}
	switch dir {
	case TrendDeclining:
		return TrendImproving
	case TrendIncreasing:
		return TrendWorsening
	default:
		return TrendStable
	}
}

func direction(values []float64, deadZone float64) Trend {
	n := len(values)
	if n < 2 {
		return TrendStable
	}
	half := n / 2
	base := mean(values[:half])
	last := mean(values[n-half:])

	if base == 0 {
		switch {
		case last > 0:
			return TrendIncreasing
		case last < 0:
			return TrendDeclining
		default:
			return TrendStable
		}
	}

	change := (last - base) / abs(base)
	switch {
	case change > deadZone:
		return TrendIncreasing
	case change < -deadZone:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
