package fan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/scoring"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/pkg/utilities"
)

// FanStore loads and persists the fan aggregate.
type FanStore interface {
	GetFan(ctx context.Context, fanID string) (*entity.Fan, error)
	SaveFan(ctx context.Context, f *entity.Fan) error
}

// MetricsProvider yields the per-platform counters of one fan.
type MetricsProvider interface {
	ListMetrics(ctx context.Context, fanID string) ([]entity.PlatformMetric, error)
}

// MetricStore is a MetricsProvider that also accepts ingested rows.
type MetricStore interface {
	MetricsProvider
	UpsertMetric(ctx context.Context, m entity.PlatformMetric) error
}

// EventLog is the append-only fan event log.
type EventLog interface {
	AppendEvent(ctx context.Context, ev entity.FanEvent) error
	ListEventsByFan(ctx context.Context, fanID string, limit int) ([]entity.FanEvent, error)
}

const maxEventPage = 200

// Service orchestrates score recomputation and the metrics-ingestion path.
type Service struct {
	fans    FanStore
	metrics MetricStore
	events  EventLog
	logger  *zap.SugaredLogger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewService(fans FanStore, ms MetricStore, events EventLog, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		fans:    fans,
		metrics: ms,
		events:  events,
		logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   utilities.NewSnowflakeID,
	}
}

// RecalcResult is returned by Recalculate.
type RecalcResult struct {
	Fan       *entity.Fan           `json:"fan"`
	Breakdown entity.ScoreBreakdown `json:"breakdown"`
	Event     *entity.FanEvent      `json:"event,omitempty"`
}

// Get returns a fan owned by artistID.
func (s *Service) Get(ctx context.Context, artistID, fanID string) (*entity.Fan, error) {
	f, err := s.fans.GetFan(ctx, fanID)
	if err != nil {
		return nil, err
	}
	if f.ArtistID != artistID {
		return nil, entity.ErrNotOwned
	}
	return f, nil
}

// Recalculate recomputes one fan's score from its current platform metrics,
// persists it and appends at most one tier-transition event.
func (s *Service) Recalculate(ctx context.Context, artistID, fanID string) (*RecalcResult, error) {
	f, err := s.Get(ctx, artistID, fanID)
	if err != nil {
		return nil, err
	}
	rows, err := s.metrics.ListMetrics(ctx, fanID)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	refreshLifecycle(f, rows)

	now := s.Now()
	var prev *entity.Tier
	if f.Scored() {
		p := f.Tier
		prev = &p
	}
	b := scoring.Calculate(rows, f.FirstSeenAt, f.LastActiveAt, now)
	f.ApplyScore(b, now)
	f.UpdatedAt = now
	if err := s.fans.SaveFan(ctx, f); err != nil {
		return nil, fmt.Errorf("save fan: %w", err)
	}
	metrics.ScoreRecalculations.Inc()

	res := &RecalcResult{Fan: f, Breakdown: b}
	tr, ok := scoring.DecideTransition(prev, b.Tier)
	if !ok {
		return res, nil
	}
	ev := scoring.TransitionEvent(f, tr, now)
	if err := s.append(ctx, &ev); err != nil {
		return nil, err
	}
	s.logger.Infow("fan tier changed",
		"fan_id", f.ID,
		"artist_id", f.ArtistID,
		"event", ev.EventType,
		"from", tr.From.String(),
		"to", tr.To.String(),
		"score", b.Total,
	)
	res.Event = &ev
	return res, nil
}

// Events returns a fan's most recent events first.
func (s *Service) Events(ctx context.Context, artistID, fanID string, limit int) ([]entity.FanEvent, error) {
	if _, err := s.Get(ctx, artistID, fanID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	return s.events.ListEventsByFan(ctx, fanID, limit)
}

func (s *Service) append(ctx context.Context, ev *entity.FanEvent) error {
	if ev.ID == "" {
		ev.ID = s.NewID()
	}
	if err := s.events.AppendEvent(ctx, *ev); err != nil {
		return fmt.Errorf("append %s event: %w", ev.EventType, err)
	}
	metrics.FanEvents.WithLabelValues(string(ev.EventType)).Inc()
	return nil
}

// refreshLifecycle keeps firstSeenAt at the earliest and lastActiveAt at the
// latest timestamp across the fan's platform rows.
func refreshLifecycle(f *entity.Fan, rows []entity.PlatformMetric) {
	for _, m := range rows {
		if !m.FirstSeenAt.IsZero() && (f.FirstSeenAt.IsZero() || m.FirstSeenAt.Before(f.FirstSeenAt)) {
			f.FirstSeenAt = m.FirstSeenAt
		}
		if m.LastActiveAt.After(f.LastActiveAt) {
			f.LastActiveAt = m.LastActiveAt
		}
	}
}

func isNotFound(err error) bool { return errors.Is(err, entity.ErrFanNotFound) }
