// Package scoring turns raw per-platform engagement counters into a bounded
// stan score and tier, and decides which tier-transition event a
// recomputation produces. Everything here is pure: the caller passes the
// clock reading in and persists the result.
package scoring

import (
	"math"
	"time"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

const (
	MaxPlatformScore   = 30
	MaxEngagementScore = 40
	MaxLongevityScore  = 20
	MaxRecencyScore    = 10
	MaxStanScore       = 100

	pointsPerPlatform = 10
)

// Tier thresholds, inclusive lower bounds.
const (
	SuperfanThreshold  = 75
	DedicatedThreshold = 50
	EngagedThreshold   = 25
)

const day = 24 * time.Hour

// Calculate scores one fan. Missing rows, zero counters and zero timestamps
// all score as absent; the function never fails.
func Calculate(metrics []entity.PlatformMetric, firstSeenAt, lastActiveAt, now time.Time) entity.ScoreBreakdown {
	b := entity.ScoreBreakdown{
		Platform:   PlatformScore(metrics),
		Engagement: EngagementScore(metrics),
		Longevity:  LongevityScore(firstSeenAt, now),
		Recency:    RecencyScore(lastActiveAt, now),
	}
	b.Total = clamp(b.Platform+b.Engagement+b.Longevity+b.Recency, 0, MaxStanScore)
	b.Tier = TierForScore(b.Total)
	return b
}

// PlatformScore awards 10 points per platform with any positive signal, up to 30.
func PlatformScore(metrics []entity.PlatformMetric) int {
	active := 0
	for _, m := range metrics {
		if m.HasSignal() {
			active++
		}
	}
	return min(active*pointsPerPlatform, MaxPlatformScore)
}

// EngagementScore sums per-platform sub-signals, each capped on its own, then
// rounds and caps the total at 40.
func EngagementScore(metrics []entity.PlatformMetric) int {
	var total float64
	for _, m := range metrics {
		total += platformEngagement(m)
	}
	return min(int(math.Round(total)), MaxEngagementScore)
}

func platformEngagement(m entity.PlatformMetric) float64 {
	var s float64
	s += capped(float64(m.Streams)/10, 10)
	s += capped(float64(m.PlaylistAdds)*2, 5)
	s += capped(float64(m.Saves), 5)
	if m.Follows {
		s += 3
	}
	s += capped(float64(m.Likes)/5, 5)
	s += capped(float64(m.Comments)*2, 5)
	s += capped(float64(m.Shares)*3, 5)
	if m.Subscribed {
		s += 3
	}
	s += capped(float64(m.VideoViews)/20, 5)
	s += capped(float64(m.EmailOpens)/2, 5)
	s += capped(float64(m.EmailClicks)*2, 5)
	return s
}

// LongevityScore is piecewise linear in whole days since firstSeenAt:
// 0-5 over the first 30 days, 5-10 up to day 90, 10-15 up to day 180, then
// 5 more points per full 180 days, capped at 20.
func LongevityScore(firstSeenAt, now time.Time) int {
	if firstSeenAt.IsZero() {
		return 0
	}
	d := float64(daysBetween(firstSeenAt, now))
	var pts float64
	switch {
	case d < 30:
		pts = d / 30 * 5
	case d < 90:
		pts = 5 + (d-30)/60*5
	case d < 180:
		pts = 10 + (d-90)/90*5
	default:
		pts = 15 + 5*math.Floor((d-180)/180)
	}
	return min(int(math.Round(pts)), MaxLongevityScore)
}

// RecencyScore steps down with whole days since lastActiveAt.
func RecencyScore(lastActiveAt, now time.Time) int {
	if lastActiveAt.IsZero() {
		return 0
	}
	d := daysBetween(lastActiveAt, now)
	switch {
	case d <= 1:
		return 10
	case d <= 7:
		return 8
	case d <= 14:
		return 6
	case d <= 30:
		return 4
	case d <= 60:
		return 2
	default:
		return 0
	}
}

// TierForScore maps a stan score onto its tier. Monotonic non-decreasing.
func TierForScore(score int) entity.Tier {
	switch {
	case score >= SuperfanThreshold:
		return entity.TierSuperfan
	case score >= DedicatedThreshold:
		return entity.TierDedicated
	case score >= EngagedThreshold:
		return entity.TierEngaged
	default:
		return entity.TierCasual
	}
}

// daysBetween returns whole days from a to b; a timestamp in the future counts as 0.
func daysBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	return int(b.Sub(a) / day)
}

func capped(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Min(v, limit)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
