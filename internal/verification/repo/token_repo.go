package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/verification/entity"
)

const tokenColumns = `token, token_id, fan_id, artist_id, tier, stan_score, relationship_months,
	issued_at, expires_at, revoked_at, usage_count, last_used_at, issued_for`

// TokenRepo is the verification_tokens registry.
type TokenRepo struct {
	db *sqlx.DB
}

func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

func (r *TokenRepo) SaveToken(ctx context.Context, rec entity.TokenRecord) error {
	query := `INSERT INTO verification_tokens (` + tokenColumns + `)
		VALUES (:token, :token_id, :fan_id, :artist_id, :tier, :stan_score, :relationship_months,
			:issued_at, :expires_at, :revoked_at, :usage_count, :last_used_at, :issued_for)`
	_, err := r.db.NamedExecContext(ctx, query, rec)
	return err
}

func (r *TokenRepo) GetToken(ctx context.Context, token string) (*entity.TokenRecord, error) {
	var rec entity.TokenRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+tokenColumns+` FROM verification_tokens WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordUsage is a single-statement increment, so concurrent verifications
// never move the counter backwards.
func (r *TokenRepo) RecordUsage(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE verification_tokens
		SET usage_count = usage_count + 1, last_used_at = GREATEST(COALESCE(last_used_at, $2), $2)
		WHERE token = $1`, token, at)
	return err
}

func (r *TokenRepo) RevokeToken(ctx context.Context, token string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE verification_tokens SET revoked_at = COALESCE(revoked_at, $2) WHERE token = $1`, token, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entity.ErrTokenNotFound
	}
	return nil
}

// ListTokensByFan returns a fan's tokens, newest first.
func (r *TokenRepo) ListTokensByFan(ctx context.Context, fanID string) ([]entity.TokenRecord, error) {
	rows := make([]entity.TokenRecord, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT `+tokenColumns+` FROM verification_tokens WHERE fan_id = $1 ORDER BY issued_at DESC`, fanID)
	return rows, err
}
