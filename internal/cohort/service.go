package cohort

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	snapentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot/entity"
)

// Source reads the live fan data of a tenant.
type Source interface {
	ListFansByArtist(ctx context.Context, artistID string) ([]fanentity.Fan, error)
	ListMetricsByArtist(ctx context.Context, artistID string) ([]fanentity.PlatformMetric, error)
	FirstEventTimes(ctx context.Context, artistID string, t fanentity.EventType) (map[string]time.Time, error)
	CountEventsSince(ctx context.Context, artistID string, t fanentity.EventType, since time.Time) (int, error)
}

// History reads frozen per-tenant aggregates written by the daily snapshot job.
type History interface {
	// LatestArtistMetrics returns the most recent row dated on or before
	// the given day, or nil when there is none.
	LatestArtistMetrics(ctx context.Context, artistID string, onOrBefore time.Time) (*snapentity.ArtistMetricsHistory, error)
	ListArtistMetrics(ctx context.Context, artistID string, from, to time.Time) ([]snapentity.ArtistMetricsHistory, error)
}

// Result is the live SCR of a tenant.
type Result struct {
	ArtistID       string     `json:"artistId"`
	SCR            float64    `json:"scr"`
	Interpretation string     `json:"interpretation"`
	Components     Components `json:"components"`
	LowConfidence  bool       `json:"lowConfidence"`
	Trend          Trend      `json:"trend"`
	TrendPercent   *float64   `json:"trendPercent,omitempty"`
	PreviousSCR    *float64   `json:"previousScr,omitempty"`
	FanCount       int        `json:"fanCount"`
	ComputedAt     time.Time  `json:"computedAt"`
}

// Service computes SCR on demand from live data and compares against history.
type Service struct {
	src     Source
	history History
	logger  *zap.SugaredLogger

	Now func() time.Time
}

func NewService(src Source, history History, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{src: src, history: history, logger: logger, Now: func() time.Time { return time.Now().UTC() }}
}

// LoadData gathers the engine input for one tenant at now.
func (s *Service) LoadData(ctx context.Context, artistID string, now time.Time) (Data, error) {
	fans, err := s.src.ListFansByArtist(ctx, artistID)
	if err != nil {
		return Data{}, fmt.Errorf("list fans: %w", err)
	}
	ms, err := s.src.ListMetricsByArtist(ctx, artistID)
	if err != nil {
		return Data{}, fmt.Errorf("list metrics: %w", err)
	}
	since, err := s.src.FirstEventTimes(ctx, artistID, fanentity.EventBecameSuperfan)
	if err != nil {
		return Data{}, fmt.Errorf("superfan events: %w", err)
	}
	downgrades, err := s.src.CountEventsSince(ctx, artistID, fanentity.EventTierDowngrade, now.Add(-DowngradeWindow))
	if err != nil {
		return Data{}, fmt.Errorf("count downgrades: %w", err)
	}
	return Data{Fans: fans, Metrics: ms, SuperfanSince: since, RecentDowngrades: downgrades}, nil
}

// Compute returns the live SCR with its trend.
func (s *Service) Compute(ctx context.Context, artistID string) (*Result, error) {
	now := s.Now()
	d, err := s.LoadData(ctx, artistID, now)
	if err != nil {
		return nil, err
	}
	c := Compute(d, now)
	scr := Composite(c.HoldRate90, c.DepthVelocity, c.PlatformIndependence, c.ChurnRate)
	res := &Result{
		ArtistID:       artistID,
		SCR:            scr,
		Interpretation: Interpret(scr),
		Components:     c,
		LowConfidence:  c.LowConfidence(),
		FanCount:       len(d.Fans),
		ComputedAt:     now,
	}

	if s.history != nil {
		ref := snapentity.DateOf(now).AddDate(0, 0, -TrendLookbackDays)
		prev, err := s.history.LatestArtistMetrics(ctx, artistID, ref)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		if prev != nil {
			p := prev.SCR
			res.PreviousSCR = &p
		}
	}
	res.Trend, res.TrendPercent = TrendOf(scr, res.PreviousSCR)

	if res.LowConfidence {
		s.logger.Debugw("scr uses fallback components", "artist_id", artistID, "fallbacks", c.Fallbacks)
	}
	return res, nil
}

// History returns stored daily aggregates in [from, to].
func (s *Service) History(ctx context.Context, artistID string, from, to time.Time) ([]snapentity.ArtistMetricsHistory, error) {
	if s.history == nil {
		return []snapentity.ArtistMetricsHistory{}, nil
	}
	return s.history.ListArtistMetrics(ctx, artistID, snapentity.DateOf(from), snapentity.DateOf(to))
}
