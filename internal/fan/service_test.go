package fan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/memstore"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }

func newTestService() (*Service, *memstore.Store, *time.Time) {
	store := memstore.New()
	svc := NewService(store, store, store, nil)
	clock := now
	svc.Now = func() time.Time { return clock }
	seq := 0
	svc.NewID = func() string {
		seq++
		return fmt.Sprintf("ev-%d", seq)
	}
	return svc, store, &clock
}

func eventTypes(evs []entity.FanEvent) []entity.EventType {
	out := make([]entity.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.EventType
	}
	return out
}

func sameTypes(got, want []entity.EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestIngestAndRecalculateLifecycle(t *testing.T) {
	svc, store, clock := newTestService()
	ctx := context.Background()

	res, err := svc.IngestMetric(ctx, entity.PlatformMetric{
		FanID: "f1", ArtistID: "a1", Platform: "spotify", Streams: 150, Follows: true,
		FirstSeenAt: daysAgo(200), LastActiveAt: now,
	})
	if err != nil {
		t.Fatalf("ingest spotify: %v", err)
	}
	want := []entity.EventType{entity.EventFirstStream, entity.EventFirstFollow, entity.MilestoneEvent("STREAMS", 100)}
	if got := eventTypes(res.Events); !sameTypes(got, want) {
		t.Fatalf("ingest events = %v, want %v", got, want)
	}
	b := res.Recalc.Breakdown
	if b != (entity.ScoreBreakdown{Platform: 10, Engagement: 13, Longevity: 15, Recency: 10, Total: 48, Tier: entity.TierEngaged}) {
		t.Fatalf("first breakdown = %+v", b)
	}
	if res.Recalc.Event != nil {
		t.Fatalf("first computation emitted %s", res.Recalc.Event.EventType)
	}
	if res.Metric.Platform != entity.PlatformSpotify {
		t.Fatalf("platform not normalized: %q", res.Metric.Platform)
	}

	res, err = svc.IngestMetric(ctx, entity.PlatformMetric{
		FanID: "f1", ArtistID: "a1", Platform: entity.PlatformYouTube,
		Likes: 100, Comments: 10, Shares: 5, Subscribed: true, VideoViews: 200,
	})
	if err != nil {
		t.Fatalf("ingest youtube: %v", err)
	}
	if got := eventTypes(res.Events); !sameTypes(got, []entity.EventType{entity.EventFirstFollow}) {
		t.Fatalf("youtube events = %v", got)
	}
	if res.Recalc.Breakdown.Total != 81 || res.Recalc.Breakdown.Tier != entity.TierSuperfan {
		t.Fatalf("second breakdown = %+v", res.Recalc.Breakdown)
	}
	ev := res.Recalc.Event
	if ev == nil || ev.EventType != entity.EventBecameSuperfan || ev.Description != "Upgraded from ENGAGED to SUPERFAN" {
		t.Fatalf("transition event = %+v", ev)
	}

	// unchanged inputs: no event
	rc, err := svc.Recalculate(ctx, "a1", "f1")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Event != nil {
		t.Fatalf("unchanged recompute emitted %s", rc.Event.EventType)
	}

	*clock = now.AddDate(0, 0, 100)
	rc, err = svc.Recalculate(ctx, "a1", "f1")
	if err != nil {
		t.Fatal(err)
	}
	if rc.Breakdown.Recency != 0 || rc.Breakdown.Tier != entity.TierDedicated {
		t.Fatalf("aged breakdown = %+v", rc.Breakdown)
	}
	if rc.Event == nil || rc.Event.EventType != entity.EventTierDowngrade {
		t.Fatalf("aged event = %+v", rc.Event)
	}

	f, _ := store.GetFan(ctx, "f1")
	if f.StanScore != f.PlatformScore+f.EngagementScore+f.LongevityScore+f.RecencyScore {
		t.Fatalf("stored score %d does not equal its components", f.StanScore)
	}
	if !f.FirstSeenAt.Equal(daysAgo(200)) {
		t.Fatalf("firstSeenAt = %v", f.FirstSeenAt)
	}
	evs, _ := store.ListEventsByFan(ctx, "f1", 0)
	if len(evs) != 6 {
		t.Fatalf("event log has %d entries, want 6", len(evs))
	}
}

func TestOwnershipAndValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.IngestMetric(ctx, entity.PlatformMetric{FanID: "f1", ArtistID: "a1", Platform: "TIKTOK", Likes: 3}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.IngestMetric(ctx, entity.PlatformMetric{FanID: "f1", ArtistID: "a2", Platform: "TIKTOK"}); !errors.Is(err, entity.ErrNotOwned) {
		t.Fatalf("cross-tenant ingest err = %v", err)
	}
	if _, err := svc.Recalculate(ctx, "a2", "f1"); !errors.Is(err, entity.ErrNotOwned) {
		t.Fatalf("cross-tenant recalc err = %v", err)
	}
	if _, err := svc.Get(ctx, "a1", "nobody"); !errors.Is(err, entity.ErrFanNotFound) {
		t.Fatalf("missing fan err = %v", err)
	}

	bad := []entity.PlatformMetric{
		{FanID: "f1", ArtistID: "a1"},
		{FanID: "", ArtistID: "a1", Platform: "SPOTIFY"},
		{FanID: "f1", ArtistID: "a1", Platform: "SPOTIFY", Streams: -1},
	}
	for _, m := range bad {
		if _, err := svc.IngestMetric(ctx, m); !errors.Is(err, entity.ErrInvalidMetric) {
			t.Errorf("IngestMetric(%+v) err = %v, want ErrInvalidMetric", m, err)
		}
	}
}

func TestIngestionEvents(t *testing.T) {
	f := &entity.Fan{ID: "f", ArtistID: "a"}
	spotify := entity.PlatformMetric{Platform: entity.PlatformSpotify, Streams: 99}
	apple := entity.PlatformMetric{Platform: entity.PlatformAppleMusic, Streams: 300}
	unopened := entity.PlatformMetric{Platform: entity.PlatformEmail}
	opened := entity.PlatformMetric{Platform: entity.PlatformEmail, EmailOpens: 3}

	tests := []struct {
		name   string
		prev   *entity.PlatformMetric
		next   entity.PlatformMetric
		before []entity.PlatformMetric
		want   []entity.EventType
	}{
		{
			name:   "crosses two milestones",
			prev:   &spotify,
			next:   entity.PlatformMetric{Platform: entity.PlatformSpotify, Streams: 600},
			before: []entity.PlatformMetric{spotify},
			want:   []entity.EventType{"MILESTONE_STREAMS_100", "MILESTONE_STREAMS_500"},
		},
		{
			name:   "milestone counts every platform",
			next:   entity.PlatformMetric{Platform: entity.PlatformSpotify, Streams: 750},
			before: []entity.PlatformMetric{apple},
			want:   []entity.EventType{entity.EventFirstStream, "MILESTONE_STREAMS_500", "MILESTONE_STREAMS_1000"},
		},
		{
			name: "first email row",
			next: entity.PlatformMetric{Platform: entity.PlatformEmail, EmailOpens: 1},
			want: []entity.EventType{entity.EventEmailSubscribe},
		},
		{
			name: "email row without opens",
			next: unopened,
			want: nil,
		},
		{
			name: "first opens on a later email row",
			prev: &unopened,
			next: opened,
			want: []entity.EventType{entity.EventEmailSubscribe},
		},
		{
			name: "more opens",
			prev: &opened,
			next: entity.PlatformMetric{Platform: entity.PlatformEmail, EmailOpens: 7},
			want: nil,
		},
		{
			name:   "no change",
			prev:   &spotify,
			next:   spotify,
			before: []entity.PlatformMetric{spotify},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eventTypes(ingestionEvents(f, tt.prev, tt.next, tt.before))
			if !sameTypes(got, tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
		})
	}
}
