package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

const metricColumns = `fan_id, artist_id, platform, streams, playlist_adds, saves, follows, likes, comments,
	shares, subscribed, video_views, watch_time_sec, email_opens, email_clicks, first_seen_at, last_active_at, updated_at`

// MetricRepo stores platform_metrics rows, one per (fan, platform).
type MetricRepo struct {
	db *sqlx.DB
}

func NewMetricRepo(db *sqlx.DB) *MetricRepo { return &MetricRepo{db: db} }

// ListMetrics returns one fan's rows ordered by platform.
func (r *MetricRepo) ListMetrics(ctx context.Context, fanID string) ([]entity.PlatformMetric, error) {
	rows := make([]entity.PlatformMetric, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT `+metricColumns+` FROM platform_metrics WHERE fan_id=$1 ORDER BY platform`, fanID)
	return rows, err
}

// ListMetricsByArtist returns all rows of one tenant.
func (r *MetricRepo) ListMetricsByArtist(ctx context.Context, artistID string) ([]entity.PlatformMetric, error) {
	rows := make([]entity.PlatformMetric, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT `+metricColumns+` FROM platform_metrics WHERE artist_id=$1`, artistID)
	return rows, err
}

// UpsertMetric writes a row keyed by (fan_id, platform). first_seen_at never moves forward.
func (r *MetricRepo) UpsertMetric(ctx context.Context, m entity.PlatformMetric) error {
	const q = `INSERT INTO platform_metrics (` + metricColumns + `)
		VALUES (:fan_id, :artist_id, :platform, :streams, :playlist_adds, :saves, :follows, :likes, :comments,
			:shares, :subscribed, :video_views, :watch_time_sec, :email_opens, :email_clicks, :first_seen_at, :last_active_at, :updated_at)
		ON CONFLICT (fan_id, platform) DO UPDATE SET
			streams = EXCLUDED.streams,
			playlist_adds = EXCLUDED.playlist_adds,
			saves = EXCLUDED.saves,
			follows = EXCLUDED.follows,
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			subscribed = EXCLUDED.subscribed,
			video_views = EXCLUDED.video_views,
			watch_time_sec = EXCLUDED.watch_time_sec,
			email_opens = EXCLUDED.email_opens,
			email_clicks = EXCLUDED.email_clicks,
			first_seen_at = LEAST(platform_metrics.first_seen_at, EXCLUDED.first_seen_at),
			last_active_at = GREATEST(platform_metrics.last_active_at, EXCLUDED.last_active_at),
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.NamedExecContext(ctx, q, m)
	return err
}
