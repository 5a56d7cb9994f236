package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/metrics"
)

// Format names an export serialization. All formats carry the same signed
// payload and verify against the same key.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCompact Format = "compact"
	FormatVC      Format = "vc"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrUnsignedToken = errors.New("token is malformed or not signed by this service")
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCompact, FormatVC:
		return f, nil
	case "":
		return FormatCompact, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Detached is the payload as plain JSON next to its signature.
type Detached struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	Alg       string          `json:"alg"`
}

// Compact is the token string itself.
type Compact struct {
	Token string `json:"token"`
}

type CredentialSubject struct {
	ID                 string         `json:"id"`
	ArtistID           string         `json:"artistId"`
	Tier               fanentity.Tier `json:"tier"`
	StanScore          int            `json:"stanScore"`
	RelationshipMonths int            `json:"relationshipMonths"`
}

type Proof struct {
	Type         string    `json:"type"`
	Created      time.Time `json:"created"`
	ProofPurpose string    `json:"proofPurpose"`
	// Value is the compact token; the subject must match its payload.
	Value string `json:"proofValue"`
}

// Credential is a W3C style verifiable credential wrapping the token.
type Credential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	IssuanceDate      time.Time         `json:"issuanceDate"`
	ExpirationDate    time.Time         `json:"expirationDate"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	Proof             Proof             `json:"proof"`
}

const (
	credentialContext = "https://www.w3.org/2018/credentials/v1"
	credentialType    = "FanTierCredential"
	proofType         = "HmacSha256Signature"
	fanIDPrefix       = "fan:"
)

// Export re-serializes a signed token. The token must carry a valid signature;
// expiry and revocation are left to whoever verifies the export.
func (s *Service) Export(token string, f Format) (any, error) {
	p, st := Decode(s.key, token)
	if st != StatusValid {
		return nil, ErrUnsignedToken
	}
	switch f {
	case FormatCompact:
		return Compact{Token: token}, nil
	case FormatJSON:
		body64, sig64, _ := strings.Cut(token, ".")
		body, _ := enc.DecodeString(body64)
		return Detached{Payload: body, Signature: sig64, Alg: method.Alg()}, nil
	case FormatVC:
		return Credential{
			Context:        []string{credentialContext},
			ID:             "urn:uuid:" + uuid.NewString(),
			Type:           []string{"VerifiableCredential", credentialType},
			Issuer:         s.Issuer,
			IssuanceDate:   p.IssuedTime(),
			ExpirationDate: p.ExpiresTime(),
			CredentialSubject: CredentialSubject{
				ID:                 fanIDPrefix + p.FanID,
				ArtistID:           p.ArtistID,
				Tier:               p.Tier,
				StanScore:          p.StanScore,
				RelationshipMonths: p.RelationshipMonths,
			},
			Proof: Proof{Type: proofType, Created: p.IssuedTime(), ProofPurpose: "assertionMethod", Value: token},
		}, nil
	}
	return nil, ErrUnknownFormat
}

// VerifyExport checks an exported document offline. It returns the embedded
// token string so callers with registry access can also check revocation.
func VerifyExport(key SigningKey, f Format, doc []byte, now time.Time) (*Payload, string, Status) {
	var token string
	switch f {
	case FormatCompact:
		var c Compact
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, "", StatusInvalidFormat
		}
		token = c.Token
	case FormatJSON:
		var d Detached
		if err := json.Unmarshal(doc, &d); err != nil || len(d.Payload) == 0 {
			return nil, "", StatusInvalidFormat
		}
		if d.Alg != method.Alg() {
			return nil, "", StatusInvalidFormat
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, d.Payload); err != nil {
			return nil, "", StatusInvalidFormat
		}
		token = enc.EncodeToString(buf.Bytes()) + "." + d.Signature
	case FormatVC:
		var c Credential
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, "", StatusInvalidFormat
		}
		p, st := VerifyOffline(key, c.Proof.Value, now)
		if st != StatusValid && st != StatusExpired {
			return p, c.Proof.Value, st
		}
		sub := c.CredentialSubject
		if sub.ID != fanIDPrefix+p.FanID || sub.ArtistID != p.ArtistID || sub.Tier != p.Tier ||
			sub.StanScore != p.StanScore || sub.RelationshipMonths != p.RelationshipMonths {
			return nil, c.Proof.Value, StatusInvalidSignature
		}
		return p, c.Proof.Value, st
	default:
		return nil, "", StatusInvalidFormat
	}
	p, st := VerifyOffline(key, token, now)
	return p, token, st
}

// VerifyExport checks an export offline and then against the registry.
// It does not count as a use of the token.
func (s *Service) VerifyExport(ctx context.Context, f Format, doc []byte) (Result, error) {
	p, token, st := VerifyExport(s.key, f, doc, s.Now())
	if st != StatusValid {
		metrics.TokenVerifications.WithLabelValues(string(st)).Inc()
		return Result{Status: st, Payload: p}, nil
	}
	return s.check(ctx, token)
}
