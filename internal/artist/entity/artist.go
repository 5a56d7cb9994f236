package entity

import (
	"errors"
	"time"
)

var ErrArtistNotFound = errors.New("artist not found")

// Artist is a tenant. Fans, snapshots and tokens are all scoped to one.
type Artist struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
