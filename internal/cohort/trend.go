package cohort

import "math"

// Trend is the direction of the SCR against the value 7 snapshot-days earlier.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TrendLookbackDays is how far back the comparison snapshot is taken from.
const TrendLookbackDays = 7

const trendThresholdPct = 2.0

// TrendOf compares the current SCR to a previous one. Without a previous
// value the trend is stable and no percentage is returned. A previous value
// of zero yields "up" for any positive current value.
func TrendOf(current float64, previous *float64) (Trend, *float64) {
	if previous == nil {
		return TrendStable, nil
	}
	if *previous == 0 {
		if current > 0 {
			return TrendUp, nil
		}
		return TrendStable, nil
	}
	pct := math.Round((current-*previous) / *previous * 10000) / 100
	switch {
	case pct > trendThresholdPct:
		return TrendUp, &pct
	case pct < -trendThresholdPct:
		return TrendDown, &pct
	default:
		return TrendStable, &pct
	}
}
