package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/artist/entity"
)

// Repo is the tenant registry backed by PostgreSQL.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// CreateArtist inserts the artist or renames an existing one.
func (r *Repo) CreateArtist(ctx context.Context, a entity.Artist) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO artists (id, name, created_at) VALUES (:id, :name, :created_at)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, a)
	return err
}

func (r *Repo) GetArtist(ctx context.Context, id string) (*entity.Artist, error) {
	var a entity.Artist
	if err := r.db.GetContext(ctx, &a, `SELECT id, name, created_at FROM artists WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrArtistNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repo) ListArtists(ctx context.Context) ([]entity.Artist, error) {
	rows := make([]entity.Artist, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM artists ORDER BY id`)
	return rows, err
}

// ListArtistIDs feeds the daily snapshot job.
func (r *Repo) ListArtistIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM artists ORDER BY id`)
	return ids, err
}
