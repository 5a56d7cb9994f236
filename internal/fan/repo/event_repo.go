package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// EventRepo is the append-only fan_events log.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// AppendEvent inserts one event. Rows are never updated.
func (r *EventRepo) AppendEvent(ctx context.Context, ev entity.FanEvent) error {
	const q = `INSERT INTO fan_events (id, fan_id, artist_id, event_type, platform, description, occurred_at)
		VALUES (:id, :fan_id, :artist_id, :event_type, :platform, :description, :occurred_at)`
	_, err := r.db.NamedExecContext(ctx, q, ev)
	return err
}

// ListEventsByFan returns a fan's most recent events first.
func (r *EventRepo) ListEventsByFan(ctx context.Context, fanID string, limit int) ([]entity.FanEvent, error) {
	rows := make([]entity.FanEvent, 0)
	err := r.db.SelectContext(ctx, &rows, `SELECT id, fan_id, artist_id, event_type, platform, description, occurred_at
		FROM fan_events WHERE fan_id=$1 ORDER BY occurred_at DESC LIMIT $2`, fanID, limit)
	return rows, err
}

// FirstEventTimes returns, per fan of the tenant, the earliest occurrence of an event type.
func (r *EventRepo) FirstEventTimes(ctx context.Context, artistID string, t entity.EventType) (map[string]time.Time, error) {
	var rows []struct {
		FanID string    `db:"fan_id"`
		At    time.Time `db:"at"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT fan_id, MIN(occurred_at) AS at FROM fan_events
		WHERE artist_id=$1 AND event_type=$2 GROUP BY fan_id`, artistID, string(t))
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		out[row.FanID] = row.At
	}
	return out, nil
}

// CountEventsSince counts a tenant's events of one type at or after since.
func (r *EventRepo) CountEventsSince(ctx context.Context, artistID string, t entity.EventType, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM fan_events WHERE artist_id=$1 AND event_type=$2 AND occurred_at >= $3`,
		artistID, string(t), since)
	return n, err
}
