package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot/entity"
)

const historyColumns = `artist_id, snapshot_date, total_fans, casual_count, engaged_count, dedicated_count,
	superfan_count, hold_rate, depth_velocity, platform_independence, churn_rate, scr, avg_stan_score, updated_at`

// SnapshotRepo stores fan_snapshots and artist_metrics_history.
type SnapshotRepo struct {
	db *sqlx.DB
}

func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

// PutFanSnapshot is create-if-absent on (fan_id, snapshot_date).
func (r *SnapshotRepo) PutFanSnapshot(ctx context.Context, s entity.FanSnapshot) (bool, error) {
	const q = `INSERT INTO fan_snapshots (id, fan_id, artist_id, snapshot_date, stan_score, tier, is_active, created_at)
		VALUES (:id, :fan_id, :artist_id, :snapshot_date, :stan_score, :tier, :is_active, :created_at)
		ON CONFLICT (fan_id, snapshot_date) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, q, s)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListFanSnapshots returns one fan's snapshots in [from, to], oldest first.
func (r *SnapshotRepo) ListFanSnapshots(ctx context.Context, fanID string, from, to time.Time) ([]entity.FanSnapshot, error) {
	rows := make([]entity.FanSnapshot, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT id, fan_id, artist_id, snapshot_date, stan_score, tier, is_active, created_at
		FROM fan_snapshots WHERE fan_id=$1 AND snapshot_date BETWEEN $2 AND $3 ORDER BY snapshot_date`, fanID, from, to)
	return rows, err
}

// UpsertArtistMetrics writes the tenant row keyed by (artist_id, snapshot_date).
func (r *SnapshotRepo) UpsertArtistMetrics(ctx context.Context, h entity.ArtistMetricsHistory) error {
	const q = `INSERT INTO artist_metrics_history (` + historyColumns + `)
		VALUES (:artist_id, :snapshot_date, :total_fans, :casual_count, :engaged_count, :dedicated_count,
			:superfan_count, :hold_rate, :depth_velocity, :platform_independence, :churn_rate, :scr, :avg_stan_score, :updated_at)
		ON CONFLICT (artist_id, snapshot_date) DO UPDATE SET
			total_fans = EXCLUDED.total_fans,
			casual_count = EXCLUDED.casual_count,
			engaged_count = EXCLUDED.engaged_count,
			dedicated_count = EXCLUDED.dedicated_count,
			superfan_count = EXCLUDED.superfan_count,
			hold_rate = EXCLUDED.hold_rate,
			depth_velocity = EXCLUDED.depth_velocity,
			platform_independence = EXCLUDED.platform_independence,
			churn_rate = EXCLUDED.churn_rate,
			scr = EXCLUDED.scr,
			avg_stan_score = EXCLUDED.avg_stan_score,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.NamedExecContext(ctx, q, h)
	return err
}

// LatestArtistMetrics returns the newest row dated on or before the given day, or nil.
func (r *SnapshotRepo) LatestArtistMetrics(ctx context.Context, artistID string, onOrBefore time.Time) (*entity.ArtistMetricsHistory, error) {
	var h entity.ArtistMetricsHistory
	err := r.db.GetContext(ctx, &h, `SELECT `+historyColumns+` FROM artist_metrics_history
		WHERE artist_id=$1 AND snapshot_date <= $2 ORDER BY snapshot_date DESC LIMIT 1`, artistID, onOrBefore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListArtistMetrics returns rows in [from, to], oldest first.
func (r *SnapshotRepo) ListArtistMetrics(ctx context.Context, artistID string, from, to time.Time) ([]entity.ArtistMetricsHistory, error) {
	rows := make([]entity.ArtistMetricsHistory, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT `+historyColumns+` FROM artist_metrics_history
		WHERE artist_id=$1 AND snapshot_date BETWEEN $2 AND $3 ORDER BY snapshot_date`, artistID, from, to)
	return rows, err
}
