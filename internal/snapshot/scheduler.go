// Package snapshot freezes daily per-fan and per-tenant state. Triggering
// (cron or otherwise) is left to the caller: RunTenant and RunAll are safe to
// invoke repeatedly for the same day.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/cohort"
	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/pkg/utilities"
)

const activeWindow = 30 * 24 * time.Hour

// Store persists frozen rows.
type Store interface {
	// PutFanSnapshot creates the (fan, date) row if absent. created is false
	// when a row for that day already existed; that is not an error.
	PutFanSnapshot(ctx context.Context, s entity.FanSnapshot) (created bool, err error)
	UpsertArtistMetrics(ctx context.Context, h entity.ArtistMetricsHistory) error
}

// ArtistLister enumerates tenants for RunAll.
type ArtistLister interface {
	ListArtistIDs(ctx context.Context) ([]string, error)
}

// CohortLoader loads the engine input of a tenant; *cohort.Service satisfies it.
type CohortLoader interface {
	LoadData(ctx context.Context, artistID string, now time.Time) (cohort.Data, error)
}

// Report summarizes one tenant run.
type Report struct {
	ArtistID         string                      `json:"artistId"`
	Date             time.Time                   `json:"date"`
	SnapshotsCreated int                         `json:"snapshotsCreated"`
	SnapshotsSkipped int                         `json:"snapshotsSkipped"`
	Metrics          entity.ArtistMetricsHistory `json:"metrics"`
}

// Scheduler implements the daily freeze.
type Scheduler struct {
	store   Store
	cohorts CohortLoader
	artists ArtistLister
	logger  *zap.SugaredLogger

	Now   func() time.Time
	NewID func() string
}

func NewScheduler(store Store, cohorts CohortLoader, artists ArtistLister, logger *zap.SugaredLogger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{
		store:   store,
		cohorts: cohorts,
		artists: artists,
		logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   utilities.NewSnowflakeID,
	}
}

// RunTenant writes one FanSnapshot per fan for today, then upserts the
// tenant's ArtistMetricsHistory row for the same date.
func (s *Scheduler) RunTenant(ctx context.Context, artistID string) (*Report, error) {
	now := s.Now()
	date := entity.DateOf(now)

	data, err := s.cohorts.LoadData(ctx, artistID, now)
	if err != nil {
		metrics.SnapshotRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load tenant %s: %w", artistID, err)
	}

	rep := &Report{ArtistID: artistID, Date: date}
	for _, f := range data.Fans {
		snap := FreezeFan(f, date, now)
		snap.ID = s.NewID()
		created, err := s.store.PutFanSnapshot(ctx, snap)
		if err != nil {
			metrics.SnapshotRuns.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("snapshot fan %s: %w", f.ID, err)
		}
		if created {
			rep.SnapshotsCreated++
			metrics.FanSnapshotsWritten.WithLabelValues("created").Inc()
		} else {
			rep.SnapshotsSkipped++
			metrics.FanSnapshotsWritten.WithLabelValues("exists").Inc()
		}
	}

	rep.Metrics = Aggregate(artistID, date, data, now)
	if err := s.store.UpsertArtistMetrics(ctx, rep.Metrics); err != nil {
		metrics.SnapshotRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upsert artist metrics: %w", err)
	}
	metrics.SnapshotRuns.WithLabelValues("ok").Inc()
	s.logger.Infow("tenant snapshot written",
		"artist_id", artistID,
		"date", date.Format(time.DateOnly),
		"created", rep.SnapshotsCreated,
		"skipped", rep.SnapshotsSkipped,
		"scr", rep.Metrics.SCR,
	)
	return rep, nil
}

// RunAll runs every tenant. A failing tenant does not stop the others; the
// returned error joins all tenant failures.
func (s *Scheduler) RunAll(ctx context.Context) ([]Report, error) {
	ids, err := s.artists.ListArtistIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	reports := make([]Report, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := s.RunTenant(ctx, id)
		if err != nil {
			s.logger.Errorw("tenant snapshot failed", "artist_id", id, "err", err)
			errs = append(errs, err)
			continue
		}
		reports = append(reports, *rep)
	}
	return reports, errors.Join(errs...)
}

// FreezeFan captures a fan's current score, tier and 30-day activity. A fan
// that has never been scored is frozen at score 0, which TierForScore places
// in CASUAL.
func FreezeFan(f fanentity.Fan, date, now time.Time) entity.FanSnapshot {
	tier := f.Tier
	if !tier.Valid() {
		tier = fanentity.TierCasual
	}
	return entity.FanSnapshot{
		FanID:     f.ID,
		ArtistID:  f.ArtistID,
		Date:      date,
		StanScore: f.StanScore,
		Tier:      tier,
		IsActive:  !f.LastActiveAt.IsZero() && !f.LastActiveAt.Before(now.Add(-activeWindow)),
		CreatedAt: now,
	}
}

// Aggregate builds the tenant row: tier counts, average score and SCR
// components. Unscored fans count as CASUAL with score 0, the same way
// FreezeFan stores them, so the counts always add up to TotalFans.
func Aggregate(artistID string, date time.Time, d cohort.Data, now time.Time) entity.ArtistMetricsHistory {
	h := entity.ArtistMetricsHistory{ArtistID: artistID, Date: date, TotalFans: len(d.Fans), UpdatedAt: now}
	var sum int
	for _, f := range d.Fans {
		sum += f.StanScore
		switch f.Tier {
		case fanentity.TierSuperfan:
			h.SuperfanCount++
		case fanentity.TierDedicated:
			h.DedicatedCount++
		case fanentity.TierEngaged:
			h.EngagedCount++
		default:
			h.CasualCount++
		}
	}
	if len(d.Fans) > 0 {
		h.AvgStanScore = math.Round(float64(sum)/float64(len(d.Fans))*100) / 100
	}

	c := cohort.Compute(d, now)
	h.HoldRate = c.HoldRate90
	h.DepthVelocity = c.DepthVelocity
	h.PlatformIndependence = c.PlatformIndependence
	h.ChurnRate = c.ChurnRate
	h.SCR = cohort.Composite(c.HoldRate90, c.DepthVelocity, c.PlatformIndependence, c.ChurnRate)
	return h
}
