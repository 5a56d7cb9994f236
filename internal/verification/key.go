package verification

import (
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"strconv"

	"golang.org/x/crypto/hkdf"
)

const (
	DefaultExpiryDays = 30
	MaxExpiryDays     = 90

	keyInfo = "fanscore verification token v1"
	keySize = 32
)

var ErrMissingSecret = errors.New("verification secret is not configured")

// SigningKey is the shared HMAC secret. Anyone holding it can verify tokens
// offline; it is passed to NewService explicitly and never kept globally.
type SigningKey []byte

// DeriveSigningKey expands a configured secret into a fixed-size key.
func DeriveSigningKey(secret, salt string) (SigningKey, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	r := hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(keyInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Config of the token service.
type Config struct {
	Secret            string
	Salt              string
	DefaultExpiryDays int
	PublicURL         string
	Issuer            string
}

func ConfigFromEnv() Config {
	cfg := Config{
		Secret:            os.Getenv("VERIFICATION_SECRET"),
		Salt:              os.Getenv("VERIFICATION_KEY_SALT"),
		DefaultExpiryDays: DefaultExpiryDays,
		PublicURL:         os.Getenv("VERIFICATION_PUBLIC_URL"),
		Issuer:            os.Getenv("VERIFICATION_ISSUER"),
	}
	if v, err := strconv.Atoi(os.Getenv("VERIFICATION_DEFAULT_EXPIRY_DAYS")); err == nil && v > 0 && v <= MaxExpiryDays {
		cfg.DefaultExpiryDays = v
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:8431/fanscore-api/verify"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "urn:fanscore"
	}
	return cfg
}
