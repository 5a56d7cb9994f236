// Package cohort computes the Stan Conversion Rate (SCR) of a tenant: how
// well casual listeners turn into retained superfans. Every component falls
// back to a documented constant on empty input, so the engine never fails on
// sparse data; Components.Fallbacks lists which values are placeholders.
package cohort

import (
	"math"
	"sort"
	"time"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// Fallback constants. These are product-tunable placeholders, not measured values.
const (
	HoldRateFallback             = 0.7
	DepthVelocityFallback        = 0.3
	PlatformIndependenceFallback = 0.5
	ChurnRateFallback            = 0.1
)

const (
	day                 = 24 * time.Hour
	cohortWindow        = 7 * day
	activeWindow        = 30 * day
	dormantAfter        = 60 * day
	DowngradeWindow     = 30 * day
	minChurnDenominator = 0.01
	minDepthVelocity    = 0.1
)

// Component names as reported in Components.Fallbacks.
const (
	ComponentHoldRate90           = "holdRate90"
	ComponentHoldRate30           = "holdRate30"
	ComponentDepthVelocity        = "depthVelocity"
	ComponentPlatformIndependence = "platformIndependence"
	ComponentChurnRate            = "churnRate"
)

// Data is everything the engine reads for one tenant.
type Data struct {
	Fans    []fanentity.Fan
	Metrics []fanentity.PlatformMetric
	// SuperfanSince maps fan id to its first BECAME_SUPERFAN event.
	SuperfanSince map[string]time.Time
	// RecentDowngrades counts TIER_DOWNGRADE events in the trailing DowngradeWindow.
	RecentDowngrades int
}

// Components are the four SCR inputs (plus the 30-day hold rate).
type Components struct {
	HoldRate90           float64  `json:"holdRate90"`
	HoldRate30           float64  `json:"holdRate30"`
	DepthVelocity        float64  `json:"depthVelocity"`
	PlatformIndependence float64  `json:"platformIndependence"`
	ChurnRate            float64  `json:"churnRate"`
	Fallbacks            []string `json:"fallbacks,omitempty"`
}

// LowConfidence reports whether any component is a fallback constant.
func (c Components) LowConfidence() bool { return len(c.Fallbacks) > 0 }

// Compute derives all components at now.
func Compute(d Data, now time.Time) Components {
	var c Components
	var ok bool
	record := func(name string, measured bool) {
		if !measured {
			c.Fallbacks = append(c.Fallbacks, name)
		}
	}
	c.HoldRate90, ok = HoldRate(d.Fans, 90, now)
	record(ComponentHoldRate90, ok)
	c.HoldRate30, ok = HoldRate(d.Fans, 30, now)
	record(ComponentHoldRate30, ok)
	c.DepthVelocity, ok = DepthVelocity(d.Fans, d.SuperfanSince, now)
	record(ComponentDepthVelocity, ok)
	c.PlatformIndependence, ok = PlatformIndependence(d.Metrics)
	record(ComponentPlatformIndependence, ok)
	c.ChurnRate, ok = ChurnRate(d.Fans, d.RecentDowngrades, now)
	record(ComponentChurnRate, ok)
	return c
}

// HoldRate is the share of fans first seen in the 7 days ending n days ago
// that were active in the trailing 30 days. The second result is false when
// the cohort is empty and the fallback was returned.
func HoldRate(fans []fanentity.Fan, n int, now time.Time) (float64, bool) {
	end := now.Add(-time.Duration(n) * day)
	start := end.Add(-cohortWindow)
	activeSince := now.Add(-activeWindow)

	var cohort, held int
	for _, f := range fans {
		if f.FirstSeenAt.Before(start) || !f.FirstSeenAt.Before(end) {
			continue
		}
		cohort++
		if !f.LastActiveAt.Before(activeSince) {
			held++
		}
	}
	if cohort == 0 {
		return HoldRateFallback, false
	}
	return float64(held) / float64(cohort), true
}

// DepthVelocity maps the median days-to-superfan of current superfans onto
// [0.1, 1.0]; faster conversion scores higher. Superfans without a recorded
// BECAME_SUPERFAN event are measured up to now.
func DepthVelocity(fans []fanentity.Fan, superfanSince map[string]time.Time, now time.Time) (float64, bool) {
	var days []float64
	for _, f := range fans {
		if f.Tier != fanentity.TierSuperfan {
			continue
		}
		reached, ok := superfanSince[f.ID]
		if !ok {
			reached = now
		}
		d := reached.Sub(f.FirstSeenAt).Hours() / 24
		days = append(days, math.Max(0, d))
	}
	if len(days) == 0 {
		return DepthVelocityFallback, false
	}
	m := median(days)
	return math.Max(minDepthVelocity, 1-math.Min(m/365, 1)), true
}

// PlatformIndependence is 1 minus the Herfindahl-Hirschman index of each
// platform's share of weighted engagement.
func PlatformIndependence(metrics []fanentity.PlatformMetric) (float64, bool) {
	perPlatform := make(map[fanentity.Platform]float64)
	var total float64
	for _, m := range metrics {
		w := m.WeightedEngagement()
		if w <= 0 {
			continue
		}
		perPlatform[m.Platform] += w
		total += w
	}
	if total == 0 {
		return PlatformIndependenceFallback, false
	}
	var hhi float64
	for _, v := range perPlatform {
		share := v / total
		hhi += share * share
	}
	return 1 - hhi, true
}

// ChurnRate is (dormant fans + recent downgrades) / total fans. A fan is
// dormant when both its last activity and its first sighting are older than
// 60 days.
func ChurnRate(fans []fanentity.Fan, recentDowngrades int, now time.Time) (float64, bool) {
	if len(fans) == 0 {
		return ChurnRateFallback, false
	}
	cutoff := now.Add(-dormantAfter)
	dormant := 0
	for _, f := range fans {
		if f.LastActiveAt.Before(cutoff) && f.FirstSeenAt.Before(cutoff) {
			dormant++
		}
	}
	return float64(dormant+max(recentDowngrades, 0)) / float64(len(fans)), true
}

// Composite combines the components into the SCR, rounded to 2 decimals.
func Composite(holdRate, depthVelocity, platformIndependence, churnRate float64) float64 {
	v := holdRate * depthVelocity * platformIndependence / math.Max(churnRate, minChurnDenominator)
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return math.Round(v*100) / 100
}

// Interpret buckets an SCR value.
func Interpret(scr float64) string {
	switch {
	case scr >= 3:
		return "Exceptional"
	case scr >= 1.5:
		return "Strong"
	case scr >= 0.5:
		return "Average"
	case scr >= 0.2:
		return "Below average"
	default:
		return "Low"
	}
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
