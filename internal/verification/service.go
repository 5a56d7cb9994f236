// Package verification issues and checks capability tokens: signed,
// self-contained claims about the tier, score and relationship age of one
// fan towards one artist.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/verification/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/pkg/utilities"
)

var (
	ErrInvalidExpiry = fmt.Errorf("expiry must be between 1 and %d days", MaxExpiryDays)
	ErrNotScored     = errors.New("fan has no score yet")
)

// FanReader loads the current fan record.
type FanReader interface {
	GetFan(ctx context.Context, fanID string) (*fanentity.Fan, error)
}

// Registry is the server-side record of issued tokens.
type Registry interface {
	SaveToken(ctx context.Context, rec entity.TokenRecord) error
	// GetToken returns entity.ErrTokenNotFound for unknown tokens.
	GetToken(ctx context.Context, token string) (*entity.TokenRecord, error)
	RecordUsage(ctx context.Context, token string, at time.Time) error
	// RevokeToken keeps an existing revokedAt.
	RevokeToken(ctx context.Context, token string, at time.Time) error
	ListTokensByFan(ctx context.Context, fanID string) ([]entity.TokenRecord, error)
}

type Service struct {
	key      SigningKey
	fans     FanReader
	registry Registry
	logger   *zap.SugaredLogger

	DefaultExpiryDays int
	Issuer            string
	PublicURL         string

	Now   func() time.Time
	NewID func() string
}

func NewService(key SigningKey, fans FanReader, registry Registry, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		key:               key,
		fans:              fans,
		registry:          registry,
		logger:            logger,
		DefaultExpiryDays: DefaultExpiryDays,
		Issuer:            "urn:fanscore",
		Now:               func() time.Time { return time.Now().UTC() },
		NewID:             utilities.NewKSUID,
	}
}

// Configure applies the non-secret parts of cfg.
func (s *Service) Configure(cfg Config) *Service {
	if cfg.DefaultExpiryDays > 0 {
		s.DefaultExpiryDays = cfg.DefaultExpiryDays
	}
	if cfg.Issuer != "" {
		s.Issuer = cfg.Issuer
	}
	s.PublicURL = cfg.PublicURL
	return s
}

type IssueRequest struct {
	FanID      string `json:"fanId"`
	ArtistID   string `json:"artistId"`
	ExpiryDays int    `json:"expiryDays,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
}

type Issued struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Payload   Payload   `json:"payload"`
}

// Issue mints a token for a fan of req.ArtistID. ExpiryDays of zero means
// the configured default.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	days := req.ExpiryDays
	if days == 0 {
		days = s.DefaultExpiryDays
	}
	if days < 1 || days > MaxExpiryDays {
		return nil, ErrInvalidExpiry
	}
	f, err := s.fans.GetFan(ctx, req.FanID)
	if err != nil {
		return nil, err
	}
	if f.ArtistID != req.ArtistID {
		return nil, fanentity.ErrNotOwned
	}
	if !f.Scored() {
		return nil, ErrNotScored
	}

	now := s.Now().UTC().Truncate(time.Millisecond)
	expires := now.AddDate(0, 0, days)
	p := Payload{
		TokenID:            s.NewID(),
		FanID:              f.ID,
		ArtistID:           f.ArtistID,
		Tier:               f.Tier,
		StanScore:          f.StanScore,
		RelationshipMonths: monthsBetween(f.FirstSeenAt, now),
		IssuedAt:           now.UnixMilli(),
		ExpiresAt:          expires.UnixMilli(),
	}
	token, err := Sign(s.key, p)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	rec := entity.TokenRecord{
		Token:              token,
		TokenID:            p.TokenID,
		FanID:              p.FanID,
		ArtistID:           p.ArtistID,
		Tier:               p.Tier,
		StanScore:          p.StanScore,
		RelationshipMonths: p.RelationshipMonths,
		IssuedAt:           now,
		ExpiresAt:          expires,
	}
	if req.Purpose != "" {
		purpose := req.Purpose
		rec.IssuedFor = &purpose
	}
	if err := s.registry.SaveToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	metrics.TokensIssued.Inc()
	s.logger.Infow("token issued", "token_id", p.TokenID, "fan_id", p.FanID, "artist_id", p.ArtistID, "tier", p.Tier.String(), "expires_at", expires)
	return &Issued{Token: token, TokenID: p.TokenID, ExpiresAt: expires, Payload: p}, nil
}

// Result is the outcome of Verify. Payload is set for VALID and for the
// negative outcomes that happen after the signature was accepted.
type Result struct {
	Status  Status   `json:"status"`
	Valid   bool     `json:"valid"`
	Payload *Payload `json:"payload,omitempty"`
}

// Verify checks format, signature, expiry and the registry, in that order.
// A VALID verification bumps the token's usage counter.
func (s *Service) Verify(ctx context.Context, token string) (Result, error) {
	res, err := s.check(ctx, token)
	if err != nil {
		return Result{}, err
	}
	if res.Valid {
		s.recordUsage(ctx, token)
	}
	return res, nil
}

func (s *Service) check(ctx context.Context, token string) (Result, error) {
	p, st := VerifyOffline(s.key, token, s.Now())
	if st == StatusValid {
		rec, err := s.registry.GetToken(ctx, token)
		switch {
		case errors.Is(err, entity.ErrTokenNotFound):
			st = StatusRevoked
		case err != nil:
			return Result{}, fmt.Errorf("load token: %w", err)
		case rec.Revoked():
			st = StatusRevoked
		}
	}
	metrics.TokenVerifications.WithLabelValues(string(st)).Inc()
	return Result{Status: st, Valid: st == StatusValid, Payload: p}, nil
}

// Usage counting is best effort; a lost increment is acceptable.
func (s *Service) recordUsage(ctx context.Context, token string) {
	if err := s.registry.RecordUsage(ctx, token, s.Now()); err != nil {
		s.logger.Warnw("record token usage failed", "err", err)
	}
}

// TokenSummary is a registry row as shown to the fan that owns it. The token
// string is included so the fan can revoke or re-share it.
type TokenSummary struct {
	Token string `json:"token"`
	entity.TokenRecord
	Revoked bool `json:"revoked"`
	Expired bool `json:"expired"`
}

// Tokens lists the tokens issued to a fan of artistID, newest first.
func (s *Service) Tokens(ctx context.Context, artistID, fanID string) ([]TokenSummary, error) {
	f, err := s.fans.GetFan(ctx, fanID)
	if err != nil {
		return nil, err
	}
	if f.ArtistID != artistID {
		return nil, fanentity.ErrNotOwned
	}
	recs, err := s.registry.ListTokensByFan(ctx, fanID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	now := s.Now()
	out := make([]TokenSummary, 0, len(recs))
	for _, rec := range recs {
		if rec.ArtistID != artistID {
			continue
		}
		out = append(out, TokenSummary{
			Token:       rec.Token,
			TokenRecord: rec,
			Revoked:     rec.Revoked(),
			Expired:     rec.ExpiresAt.Before(now),
		})
	}
	return out, nil
}

// Revoke marks a token revoked on behalf of the fan it was issued to. It
// returns StatusRevoked on success, including repeated calls, and
// StatusNotFound when the registry has no such token.
func (s *Service) Revoke(ctx context.Context, token, fanID string) (Status, error) {
	rec, err := s.registry.GetToken(ctx, token)
	if errors.Is(err, entity.ErrTokenNotFound) {
		return StatusNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if rec.FanID != fanID {
		return "", fanentity.ErrNotOwned
	}
	if rec.Revoked() {
		return StatusRevoked, nil
	}
	if err := s.registry.RevokeToken(ctx, token, s.Now()); err != nil {
		return "", fmt.Errorf("revoke token: %w", err)
	}
	metrics.TokensRevoked.Inc()
	s.logger.Infow("token revoked", "token_id", rec.TokenID, "fan_id", fanID)
	return StatusRevoked, nil
}
