package verification

import (
	"net/url"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// VerificationURL is the public link a venue scanner opens for a token.
func (s *Service) VerificationURL(token string) (string, error) {
	u, err := url.Parse(s.PublicURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// QR renders the verification URL of a token as a PNG.
func (s *Service) QR(token string, size int) ([]byte, error) {
	if _, st := Decode(s.key, token); st != StatusValid {
		return nil, ErrUnsignedToken
	}
	link, err := s.VerificationURL(token)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}
