package entity

import (
	"errors"
	"time"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRecord is the registry row of an issued verification token, keyed by
// the token string. Only UsageCount, LastUsedAt and RevokedAt ever change.
type TokenRecord struct {
	Token              string         `db:"token" json:"-"`
	TokenID            string         `db:"token_id" json:"tokenId"`
	FanID              string         `db:"fan_id" json:"fanId"`
	ArtistID           string         `db:"artist_id" json:"artistId"`
	Tier               fanentity.Tier `db:"tier" json:"tier"`
	StanScore          int            `db:"stan_score" json:"stanScore"`
	RelationshipMonths int            `db:"relationship_months" json:"relationshipMonths"`
	IssuedAt           time.Time      `db:"issued_at" json:"issuedAt"`
	ExpiresAt          time.Time      `db:"expires_at" json:"expiresAt"`
	RevokedAt          *time.Time     `db:"revoked_at" json:"revokedAt,omitempty"`
	UsageCount         int64          `db:"usage_count" json:"usageCount"`
	LastUsedAt         *time.Time     `db:"last_used_at" json:"lastUsedAt,omitempty"`
	IssuedFor          *string        `db:"issued_for" json:"issuedFor,omitempty"`
}

// Revoked reports whether the token has been revoked.
func (t *TokenRecord) Revoked() bool { return t.RevokedAt != nil }
