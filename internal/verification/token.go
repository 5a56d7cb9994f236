package verification

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// Status is the outcome of a verification or revocation.
type Status string

const (
	StatusValid            Status = "VALID"
	StatusInvalidFormat    Status = "INVALID_FORMAT"
	StatusInvalidSignature Status = "INVALID_SIGNATURE"
	StatusExpired          Status = "EXPIRED"
	StatusRevoked          Status = "REVOKED"
	StatusNotFound         Status = "NOT_FOUND"
)

// Payload is the signed body of a token. Field order is the wire order.
type Payload struct {
	TokenID            string         `json:"tokenId"`
	FanID              string         `json:"fanId"`
	ArtistID           string         `json:"artistId"`
	Tier               fanentity.Tier `json:"tier"`
	StanScore          int            `json:"stanScore"`
	RelationshipMonths int            `json:"relationshipMonths"`
	IssuedAt           int64          `json:"issuedAt"`
	ExpiresAt          int64          `json:"expiresAt"`
}

func (p Payload) IssuedTime() time.Time  { return time.UnixMilli(p.IssuedAt).UTC() }
func (p Payload) ExpiresTime() time.Time { return time.UnixMilli(p.ExpiresAt).UTC() }

// Expired reports whether expiresAt lies strictly before now.
func (p Payload) Expired(now time.Time) bool { return p.ExpiresAt < now.UnixMilli() }

var enc = base64.RawURLEncoding

// HMAC-SHA256; the signing string is the JSON payload itself.
var method = jwt.SigningMethodHS256

// Sign encodes and signs p as base64url(payload).base64url(signature).
func Sign(key SigningKey, p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sig, err := method.Sign(string(body), []byte(key))
	if err != nil {
		return "", err
	}
	return enc.EncodeToString(body) + "." + enc.EncodeToString(sig), nil
}

// Decode checks format and signature and returns the payload. Expiry and
// revocation are not looked at.
func Decode(key SigningKey, token string) (*Payload, Status) {
	body64, sig64, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || body64 == "" || sig64 == "" || strings.Contains(sig64, ".") {
		return nil, StatusInvalidFormat
	}
	body, err := enc.DecodeString(body64)
	if err != nil {
		return nil, StatusInvalidFormat
	}
	sig, err := enc.DecodeString(sig64)
	if err != nil {
		return nil, StatusInvalidFormat
	}
	// The last character of a segment may carry unused low bits; a segment
	// that does not re-encode to itself is not the string that was signed.
	if enc.EncodeToString(body) != body64 || enc.EncodeToString(sig) != sig64 {
		return nil, StatusInvalidSignature
	}
	if err := method.Verify(string(body), sig, []byte(key)); err != nil {
		return nil, StatusInvalidSignature
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil || !p.Tier.Valid() {
		return nil, StatusInvalidFormat
	}
	return &p, StatusValid
}

// VerifyOffline checks format, signature and expiry using only the shared
// key. Third parties without registry access use this; revocation is not
// visible to them.
func VerifyOffline(key SigningKey, token string, now time.Time) (*Payload, Status) {
	p, st := Decode(key, token)
	if st != StatusValid {
		return nil, st
	}
	if p.Expired(now) {
		return p, StatusExpired
	}
	return p, StatusValid
}

// monthsBetween counts whole calendar months from `from` to `to`.
func monthsBetween(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	from, to = from.UTC(), to.UTC()
	m := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		m--
	}
	return max(m, 0)
}
