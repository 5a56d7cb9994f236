package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

const fanColumns = `id, artist_id, display_name, first_seen_at, last_active_at, tier, stan_score,
	platform_score, engagement_score, longevity_score, recency_score, scored_at, created_at, updated_at`

// FanRepo provides data access for the fans table using sqlx.
type FanRepo struct {
	db *sqlx.DB
}

func NewFanRepo(db *sqlx.DB) *FanRepo { return &FanRepo{db: db} }

// GetFan returns a fan by id or entity.ErrFanNotFound.
func (r *FanRepo) GetFan(ctx context.Context, fanID string) (*entity.Fan, error) {
	var f entity.Fan
	if err := r.db.GetContext(ctx, &f, `SELECT `+fanColumns+` FROM fans WHERE id=$1`, fanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrFanNotFound
		}
		return nil, err
	}
	return &f, nil
}

// SaveFan inserts the fan or overwrites its lifecycle and score columns. The
// owning artist row is registered on the way if it does not exist yet.
func (r *FanRepo) SaveFan(ctx context.Context, f *entity.Fan) error {
	const q = `INSERT INTO fans (` + fanColumns + `)
		VALUES (:id, :artist_id, :display_name, :first_seen_at, :last_active_at, :tier, :stan_score,
			:platform_score, :engagement_score, :longevity_score, :recency_score, :scored_at, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			first_seen_at = EXCLUDED.first_seen_at,
			last_active_at = EXCLUDED.last_active_at,
			tier = EXCLUDED.tier,
			stan_score = EXCLUDED.stan_score,
			platform_score = EXCLUDED.platform_score,
			engagement_score = EXCLUDED.engagement_score,
			longevity_score = EXCLUDED.longevity_score,
			recency_score = EXCLUDED.recency_score,
			scored_at = EXCLUDED.scored_at,
			updated_at = EXCLUDED.updated_at`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `INSERT INTO artists (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, f.ArtistID); err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, q, f); err != nil {
		return err
	}
	return tx.Commit()
}

// ListFansByArtist returns every fan of one tenant.
func (r *FanRepo) ListFansByArtist(ctx context.Context, artistID string) ([]entity.Fan, error) {
	rows := make([]entity.Fan, 0)
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+fanColumns+` FROM fans WHERE artist_id=$1 ORDER BY id`, artistID); err != nil {
		return nil, err
	}
	return rows, nil
}
