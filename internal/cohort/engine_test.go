package cohort

import (
	"math"
	"testing"
	"time"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }

func TestCompositeExceptional(t *testing.T) {
	scr := Composite(0.8, 0.6, 0.7, 0.1)
	if scr != 3.36 {
		t.Fatalf("Composite = %v, want 3.36", scr)
	}
	if got := Interpret(scr); got != "Exceptional" {
		t.Fatalf("Interpret(%v) = %q, want Exceptional", scr, got)
	}
}

func TestCompositeNeverNegative(t *testing.T) {
	cases := [][4]float64{
		{0, 0, 0, 0},
		{1, 1, 1, 0},
		{-1, 0.5, 0.5, 0.1},
		{0.5, 0.5, 0.5, -3},
	}
	for _, c := range cases {
		got := Composite(c[0], c[1], c[2], c[3])
		if got < 0 || math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("Composite%v = %v", c, got)
		}
	}
	// churn of zero is floored at 0.01
	if got := Composite(1, 1, 1, 0); got != 100 {
		t.Fatalf("Composite with zero churn = %v, want 100", got)
	}
}

func TestInterpretBuckets(t *testing.T) {
	tests := []struct {
		scr  float64
		want string
	}{
		{5, "Exceptional"},
		{3, "Exceptional"},
		{2.99, "Strong"},
		{1.5, "Strong"},
		{1.49, "Average"},
		{0.5, "Average"},
		{0.49, "Below average"},
		{0.2, "Below average"},
		{0.19, "Low"},
		{0, "Low"},
	}
	for _, tt := range tests {
		if got := Interpret(tt.scr); got != tt.want {
			t.Errorf("Interpret(%v) = %q, want %q", tt.scr, got, tt.want)
		}
	}
}

func TestHoldRateEmptyCohortFallsBack(t *testing.T) {
	got, measured := HoldRate(nil, 90, now)
	if measured || got != HoldRateFallback {
		t.Fatalf("HoldRate(empty) = %v, %v; want %v, false", got, measured, HoldRateFallback)
	}
	// fans exist but none in the window
	fans := []fanentity.Fan{{ID: "a", FirstSeenAt: daysAgo(10), LastActiveAt: daysAgo(1)}}
	got, measured = HoldRate(fans, 90, now)
	if measured || math.IsNaN(got) || got != 0.7 {
		t.Fatalf("HoldRate(out of window) = %v, %v", got, measured)
	}
}

func TestHoldRateWindow(t *testing.T) {
	fans := []fanentity.Fan{
		{ID: "held", FirstSeenAt: daysAgo(93), LastActiveAt: daysAgo(5)},
		{ID: "lost", FirstSeenAt: daysAgo(95), LastActiveAt: daysAgo(40)},
		{ID: "edge-start", FirstSeenAt: daysAgo(97), LastActiveAt: daysAgo(30)},
		{ID: "too-new", FirstSeenAt: daysAgo(90), LastActiveAt: daysAgo(1)},
		{ID: "too-old", FirstSeenAt: daysAgo(98), LastActiveAt: daysAgo(1)},
	}
	got, measured := HoldRate(fans, 90, now)
	if !measured {
		t.Fatal("expected measured hold rate")
	}
	if want := 2.0 / 3.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("HoldRate = %v, want %v", got, want)
	}
}

func TestDepthVelocity(t *testing.T) {
	if got, ok := DepthVelocity(nil, nil, now); ok || got != DepthVelocityFallback {
		t.Fatalf("no superfans: %v, %v", got, ok)
	}
	fans := []fanentity.Fan{
		{ID: "a", Tier: fanentity.TierSuperfan, FirstSeenAt: daysAgo(200)},
		{ID: "b", Tier: fanentity.TierSuperfan, FirstSeenAt: daysAgo(400)},
		{ID: "c", Tier: fanentity.TierSuperfan, FirstSeenAt: daysAgo(73)},
		{ID: "d", Tier: fanentity.TierEngaged, FirstSeenAt: daysAgo(1000)},
	}
	since := map[string]time.Time{
		"a": daysAgo(127), // 73 days to convert
		"b": daysAgo(0),   // 400 days
	}
	// c has no event: measured to now, 73 days. median of {73, 400, 73} = 73
	got, ok := DepthVelocity(fans, since, now)
	if !ok {
		t.Fatal("expected measured")
	}
	if want := 1 - 73.0/365; math.Abs(got-want) > 1e-9 {
		t.Fatalf("DepthVelocity = %v, want %v", got, want)
	}

	slow := []fanentity.Fan{{ID: "s", Tier: fanentity.TierSuperfan, FirstSeenAt: daysAgo(1000)}}
	if got, _ := DepthVelocity(slow, nil, now); got != minDepthVelocity {
		t.Fatalf("slow conversion = %v, want floor %v", got, minDepthVelocity)
	}
}

func TestPlatformIndependence(t *testing.T) {
	if got, ok := PlatformIndependence(nil); ok || got != PlatformIndependenceFallback {
		t.Fatalf("empty: %v, %v", got, ok)
	}
	single := []fanentity.PlatformMetric{
		{Platform: fanentity.PlatformSpotify, Streams: 100},
		{Platform: fanentity.PlatformSpotify, Streams: 50},
	}
	if got, ok := PlatformIndependence(single); !ok || got != 0 {
		t.Fatalf("single platform: %v, %v; want 0", got, ok)
	}
	even := []fanentity.PlatformMetric{
		{Platform: fanentity.PlatformSpotify, Streams: 100},
		{Platform: fanentity.PlatformYouTube, VideoViews: 100},
	}
	if got, _ := PlatformIndependence(even); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("two even platforms = %v, want 0.5", got)
	}
}

func TestChurnRate(t *testing.T) {
	if got, ok := ChurnRate(nil, 3, now); ok || got != ChurnRateFallback {
		t.Fatalf("empty: %v, %v", got, ok)
	}
	fans := []fanentity.Fan{
		{ID: "dormant", FirstSeenAt: daysAgo(200), LastActiveAt: daysAgo(61)},
		{ID: "new-quiet", FirstSeenAt: daysAgo(59), LastActiveAt: daysAgo(59)},
		{ID: "active", FirstSeenAt: daysAgo(300), LastActiveAt: daysAgo(1)},
		{ID: "active2", FirstSeenAt: daysAgo(300), LastActiveAt: daysAgo(2)},
	}
	got, ok := ChurnRate(fans, 1, now)
	if !ok || got != 0.5 {
		t.Fatalf("ChurnRate = %v, %v; want 0.5", got, ok)
	}
}

func TestComputeEmptyTenant(t *testing.T) {
	c := Compute(Data{}, now)
	if !c.LowConfidence() || len(c.Fallbacks) != 5 {
		t.Fatalf("fallbacks = %v", c.Fallbacks)
	}
	scr := Composite(c.HoldRate90, c.DepthVelocity, c.PlatformIndependence, c.ChurnRate)
	if scr != 1.05 {
		t.Fatalf("fallback SCR = %v, want 1.05", scr)
	}
}

func TestTrendOf(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name    string
		current float64
		prev    *float64
		want    Trend
		pct     *float64
	}{
		{"no history", 2, nil, TrendStable, nil},
		{"zero previous up", 1, f(0), TrendUp, nil},
		{"zero both", 0, f(0), TrendStable, nil},
		{"up", 1.1, f(1), TrendUp, f(10)},
		{"down", 0.9, f(1), TrendDown, f(-10)},
		{"within threshold", 1.01, f(1), TrendStable, f(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pct := TrendOf(tt.current, tt.prev)
			if got != tt.want {
				t.Fatalf("trend = %v, want %v", got, tt.want)
			}
			if (pct == nil) != (tt.pct == nil) || (pct != nil && *pct != *tt.pct) {
				t.Fatalf("pct = %v, want %v", pct, tt.pct)
			}
		})
	}
}
