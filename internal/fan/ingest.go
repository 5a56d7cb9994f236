package fan

import (
	"context"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/metrics"
)

// StreamMilestones are the total-stream counts that produce a MILESTONE_STREAMS_<n> event.
var StreamMilestones = []int64{100, 500, 1000, 5000}

// IngestResult is returned by IngestMetric.
type IngestResult struct {
	Metric entity.PlatformMetric `json:"metric"`
	Events []entity.FanEvent     `json:"events"`
	Recalc *RecalcResult         `json:"recalc"`
}

// IngestMetric stores one platform row for a fan, creating the fan on first
// sight, appends the ingestion events the change implies and recomputes the
// fan's score.
func (s *Service) IngestMetric(ctx context.Context, m entity.PlatformMetric) (*IngestResult, error) {
	m.Platform = entity.NormalizePlatform(string(m.Platform))
	m.FanID = strings.TrimSpace(m.FanID)
	m.ArtistID = strings.TrimSpace(m.ArtistID)
	if m.FanID == "" || m.ArtistID == "" || m.Platform == "" {
		return nil, fmt.Errorf("%w: fan, artist and platform are required", entity.ErrInvalidMetric)
	}
	if m.Streams < 0 || m.PlaylistAdds < 0 || m.Saves < 0 || m.Likes < 0 || m.Comments < 0 ||
		m.Shares < 0 || m.VideoViews < 0 || m.WatchTimeSec < 0 || m.EmailOpens < 0 || m.EmailClicks < 0 {
		return nil, fmt.Errorf("%w: counters must not be negative", entity.ErrInvalidMetric)
	}

	now := s.Now()
	f, err := s.fans.GetFan(ctx, m.FanID)
	switch {
	case isNotFound(err):
		f = &entity.Fan{ID: m.FanID, ArtistID: m.ArtistID, CreatedAt: now}
		s.logger.Debugw("creating fan on first metric", "fan_id", m.FanID, "artist_id", m.ArtistID)
	case err != nil:
		return nil, err
	case f.ArtistID != m.ArtistID:
		return nil, entity.ErrNotOwned
	}

	existing, err := s.metrics.ListMetrics(ctx, m.FanID)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	var prev *entity.PlatformMetric
	for i := range existing {
		if existing[i].Platform == m.Platform {
			prev = &existing[i]
			break
		}
	}

	if m.FirstSeenAt.IsZero() {
		if prev != nil && !prev.FirstSeenAt.IsZero() {
			m.FirstSeenAt = prev.FirstSeenAt
		} else {
			m.FirstSeenAt = now
		}
	}
	if m.LastActiveAt.IsZero() {
		m.LastActiveAt = now
	}
	m.UpdatedAt = now
	if err := s.metrics.UpsertMetric(ctx, m); err != nil {
		return nil, fmt.Errorf("upsert metric: %w", err)
	}
	metrics.MetricsIngested.WithLabelValues(string(m.Platform)).Inc()

	refreshLifecycle(f, []entity.PlatformMetric{m})
	f.UpdatedAt = now
	if err := s.fans.SaveFan(ctx, f); err != nil {
		return nil, fmt.Errorf("save fan: %w", err)
	}

	evs := ingestionEvents(f, prev, m, existing)
	for i := range evs {
		evs[i].OccurredAt = now
		if err := s.append(ctx, &evs[i]); err != nil {
			return nil, err
		}
	}

	rc, err := s.Recalculate(ctx, m.ArtistID, m.FanID)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Metric: m, Events: evs, Recalc: rc}, nil
}

// ingestionEvents derives FIRST_STREAM, FIRST_FOLLOW, EMAIL_SUBSCRIBE and
// stream milestones from the difference between the previous and new row.
func ingestionEvents(f *entity.Fan, prev *entity.PlatformMetric, next entity.PlatformMetric, before []entity.PlatformMetric) []entity.FanEvent {
	platform := next.Platform
	mk := func(t entity.EventType, desc string) entity.FanEvent {
		return entity.FanEvent{FanID: f.ID, ArtistID: f.ArtistID, EventType: t, Platform: &platform, Description: desc}
	}

	var out []entity.FanEvent
	var prevStreams int64
	var prevOpens int64
	var prevFollow bool
	if prev != nil {
		prevStreams = prev.Streams
		prevOpens = prev.EmailOpens
		prevFollow = prev.Follows || prev.Subscribed
	}
	if prevStreams == 0 && next.Streams > 0 {
		out = append(out, mk(entity.EventFirstStream, fmt.Sprintf("First stream on %s", platform)))
	}
	if !prevFollow && (next.Follows || next.Subscribed) {
		out = append(out, mk(entity.EventFirstFollow, fmt.Sprintf("Followed on %s", platform)))
	}
	if platform == entity.PlatformEmail && prevOpens == 0 && next.EmailOpens > 0 {
		out = append(out, mk(entity.EventEmailSubscribe, "Subscribed to the mailing list"))
	}

	var totalBefore int64
	for _, r := range before {
		totalBefore += r.Streams
	}
	totalAfter := totalBefore - prevStreams + next.Streams
	for _, n := range StreamMilestones {
		if totalBefore < n && totalAfter >= n {
			out = append(out, mk(entity.MilestoneEvent("STREAMS", n), fmt.Sprintf("Reached %d total streams", n)))
		}
	}
	return out
}
