package verification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/memstore"
)

var (
	testKey = SigningKey("0123456789abcdef0123456789abcdef")
	now     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	store *memstore.Store
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{store: memstore.New(), clock: now}
	fx.svc = NewService(testKey, fx.store, fx.store, nil)
	fx.svc.Now = func() time.Time { return fx.clock }
	fx.addFan(t, "fan-1", "artist-1", fanentity.TierEngaged, 40, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	return fx
}

func (fx *fixture) addFan(t *testing.T, id, artist string, tier fanentity.Tier, score int, firstSeen time.Time) {
	t.Helper()
	f := &fanentity.Fan{ID: id, ArtistID: artist, Tier: tier, StanScore: score, FirstSeenAt: firstSeen, LastActiveAt: now}
	if err := fx.store.SaveFan(context.Background(), f); err != nil {
		t.Fatal(err)
	}
}

func (fx *fixture) issue(t *testing.T, fanID string, days int) *Issued {
	t.Helper()
	out, err := fx.svc.Issue(context.Background(), IssueRequest{FanID: fanID, ArtistID: "artist-1", ExpiryDays: days})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return out
}

func tamper(token string) string {
	body, sig, _ := strings.Cut(token, ".")
	b := []byte(body)
	i := len(b) / 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b) + "." + sig
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	out := fx.issue(t, "fan-1", 30)

	if out.Payload.RelationshipMonths != 13 {
		t.Fatalf("relationshipMonths = %d, want 13", out.Payload.RelationshipMonths)
	}
	if !out.ExpiresAt.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("expiresAt = %v", out.ExpiresAt)
	}

	// later changes to the fan do not leak into an issued token
	fx.addFan(t, "fan-1", "artist-1", fanentity.TierSuperfan, 90, now)

	res, err := fx.svc.Verify(ctx, out.Token)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusValid || !res.Valid {
		t.Fatalf("status = %s, want VALID", res.Status)
	}
	p := res.Payload
	if p.RelationshipMonths != 13 || p.Tier != fanentity.TierEngaged || p.StanScore != 40 || p.TokenID != out.TokenID {
		t.Fatalf("payload = %+v", p)
	}

	rec, _ := fx.store.GetToken(ctx, out.Token)
	if rec.UsageCount != 1 || rec.LastUsedAt == nil {
		t.Fatalf("usage = %d last = %v", rec.UsageCount, rec.LastUsedAt)
	}
}

func TestPayloadWireKeys(t *testing.T) {
	fx := newFixture(t)
	out := fx.issue(t, "fan-1", 30)
	body64, _, _ := strings.Cut(out.Token, ".")
	body, err := enc.DecodeString(body64)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"tokenId":"` + out.TokenID + `","fanId":"fan-1","artistId":"artist-1","tier":"ENGAGED","stanScore":40,` +
		`"relationshipMonths":13,"issuedAt":1772366400000,"expiresAt":1774958400000}`
	if string(body) != want {
		t.Fatalf("payload\n got %s\nwant %s", body, want)
	}
}

func TestVerifyTampered(t *testing.T) {
	fx := newFixture(t)
	out := fx.issue(t, "fan-1", 30)
	res, _ := fx.svc.Verify(context.Background(), tamper(out.Token))
	if res.Status != StatusInvalidSignature {
		t.Fatalf("status = %s, want INVALID_SIGNATURE", res.Status)
	}

	other := NewService(SigningKey("another-key"), fx.store, fx.store, nil)
	other.Now = fx.svc.Now
	if res, _ := other.Verify(context.Background(), out.Token); res.Status != StatusInvalidSignature {
		t.Fatalf("foreign key status = %s", res.Status)
	}
}

const urlAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func flipped(seg string, i int, c byte) string {
	b := []byte(seg)
	b[i] = c
	return string(b)
}

func TestVerifyEverySingleCharacterFlip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	residues := map[int]bool{}
	// consecutive id lengths walk the payload through every base64 tail length
	for _, id := range []string{"fan-1", "fan-1x", "fan-1xy", "fan-1xyz"} {
		fx.addFan(t, id, "artist-1", fanentity.TierEngaged, 40, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
		out := fx.issue(t, id, 30)
		body, sig, _ := strings.Cut(out.Token, ".")
		residues[len(body)%4] = true

		for i := range body {
			for j := 0; j < len(urlAlphabet); j++ {
				c := urlAlphabet[j]
				if c == body[i] {
					continue
				}
				tok := flipped(body, i, c) + "." + sig
				if _, st := VerifyOffline(testKey, tok, now); st != StatusInvalidSignature {
					t.Fatalf("%s: payload flip at %d to %q = %s, want INVALID_SIGNATURE", id, i, c, st)
				}
			}
		}
		for i := range sig {
			for j := 0; j < len(urlAlphabet); j++ {
				c := urlAlphabet[j]
				if c == sig[i] {
					continue
				}
				tok := body + "." + flipped(sig, i, c)
				if _, st := VerifyOffline(testKey, tok, now); st != StatusInvalidSignature {
					t.Fatalf("%s: signature flip at %d to %q = %s, want INVALID_SIGNATURE", id, i, c, st)
				}
			}
		}

		last := len(body) - 1
		for j := 0; j < len(urlAlphabet); j++ {
			if urlAlphabet[j] == body[last] {
				continue
			}
			res, err := fx.svc.Verify(ctx, flipped(body, last, urlAlphabet[j])+"."+sig)
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != StatusInvalidSignature {
				t.Fatalf("%s: service verify of last-char flip = %s", id, res.Status)
			}
		}
	}
	for _, r := range []int{0, 2, 3} {
		if !residues[r] {
			t.Fatalf("payload lengths mod 4 covered %v, missing %d", residues, r)
		}
	}
}

func TestVerifyInvalidFormat(t *testing.T) {
	fx := newFixture(t)
	out := fx.issue(t, "fan-1", 30)
	body, sig, _ := strings.Cut(out.Token, ".")
	for _, tok := range []string{"", "nodot", body + ".", "." + sig, "***." + sig, body + ".***", out.Token + ".x"} {
		res, err := fx.svc.Verify(context.Background(), tok)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != StatusInvalidFormat {
			t.Errorf("Verify(%q) = %s, want INVALID_FORMAT", tok, res.Status)
		}
	}
}

func TestVerifyExpired(t *testing.T) {
	fx := newFixture(t)
	out := fx.issue(t, "fan-1", 30)

	fx.clock = out.ExpiresAt
	if res, _ := fx.svc.Verify(context.Background(), out.Token); res.Status != StatusValid {
		t.Fatalf("at expiresAt status = %s, want VALID", res.Status)
	}
	fx.clock = out.ExpiresAt.Add(time.Millisecond)
	if res, _ := fx.svc.Verify(context.Background(), out.Token); res.Status != StatusExpired {
		t.Fatalf("after expiry status = %s, want EXPIRED", res.Status)
	}

	p := Payload{TokenID: "t", FanID: "f", ArtistID: "a", Tier: fanentity.TierCasual,
		IssuedAt: now.Add(-time.Hour).UnixMilli(), ExpiresAt: now.UnixMilli() - 1}
	tok, err := Sign(testKey, p)
	if err != nil {
		t.Fatal(err)
	}
	if _, st := VerifyOffline(testKey, tok, now); st != StatusExpired {
		t.Fatalf("offline status = %s, want EXPIRED", st)
	}
}

func TestRevoke(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	out := fx.issue(t, "fan-1", 30)

	if _, err := fx.svc.Revoke(ctx, out.Token, "fan-2"); !errors.Is(err, fanentity.ErrNotOwned) {
		t.Fatalf("revoke by another fan: err = %v", err)
	}
	for i := 0; i < 2; i++ {
		st, err := fx.svc.Revoke(ctx, out.Token, "fan-1")
		if err != nil || st != StatusRevoked {
			t.Fatalf("revoke #%d = %s, %v", i+1, st, err)
		}
	}
	res, _ := fx.svc.Verify(ctx, out.Token)
	if res.Status != StatusRevoked || res.Valid {
		t.Fatalf("status after revoke = %s", res.Status)
	}
	rec, _ := fx.store.GetToken(ctx, out.Token)
	if rec.UsageCount != 0 {
		t.Fatalf("revoked verification counted as use: %d", rec.UsageCount)
	}

	fx.store.DeleteToken(ctx, out.Token)
	if st, err := fx.svc.Revoke(ctx, out.Token, "fan-1"); err != nil || st != StatusNotFound {
		t.Fatalf("revoke deleted = %s, %v", st, err)
	}
}

func TestTokensListsFanTokensNewestFirst(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	first := fx.issue(t, "fan-1", 1)
	fx.clock = now.Add(48 * time.Hour)
	second := fx.issue(t, "fan-1", 30)
	if _, err := fx.svc.Revoke(ctx, second.Token, "fan-1"); err != nil {
		t.Fatal(err)
	}

	got, err := fx.svc.Tokens(ctx, "artist-1", "fan-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("tokens = %d, want 2", len(got))
	}
	if got[0].Token != second.Token || !got[0].Revoked || got[0].Expired {
		t.Fatalf("newest = %+v", got[0])
	}
	if got[1].Token != first.Token || got[1].Revoked || !got[1].Expired {
		t.Fatalf("oldest = %+v", got[1])
	}

	if _, err := fx.svc.Tokens(ctx, "artist-2", "fan-1"); !errors.Is(err, fanentity.ErrNotOwned) {
		t.Fatalf("other artist: err = %v", err)
	}
	if _, err := fx.svc.Tokens(ctx, "artist-1", "nobody"); !errors.Is(err, fanentity.ErrFanNotFound) {
		t.Fatalf("unknown fan: err = %v", err)
	}
}

func TestVerifyMissingRegistryRowIsRevoked(t *testing.T) {
	fx := newFixture(t)
	p := Payload{TokenID: "t", FanID: "fan-1", ArtistID: "artist-1", Tier: fanentity.TierEngaged,
		IssuedAt: now.UnixMilli(), ExpiresAt: now.Add(time.Hour).UnixMilli()}
	tok, _ := Sign(testKey, p)
	if res, _ := fx.svc.Verify(context.Background(), tok); res.Status != StatusRevoked {
		t.Fatalf("status = %s, want REVOKED", res.Status)
	}
}

func TestIssueRejects(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addFan(t, "fan-x", "artist-2", fanentity.TierCasual, 10, now)
	fx.addFan(t, "fan-new", "artist-1", fanentity.TierUnknown, 0, now)

	tests := []struct {
		name string
		req  IssueRequest
		want error
	}{
		{"too long", IssueRequest{FanID: "fan-1", ArtistID: "artist-1", ExpiryDays: 91}, ErrInvalidExpiry},
		{"negative", IssueRequest{FanID: "fan-1", ArtistID: "artist-1", ExpiryDays: -1}, ErrInvalidExpiry},
		{"other artist", IssueRequest{FanID: "fan-x", ArtistID: "artist-1"}, fanentity.ErrNotOwned},
		{"unknown fan", IssueRequest{FanID: "nobody", ArtistID: "artist-1"}, fanentity.ErrFanNotFound},
		{"unscored", IssueRequest{FanID: "fan-new", ArtistID: "artist-1"}, ErrNotScored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fx.svc.Issue(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	out, err := fx.svc.Issue(ctx, IssueRequest{FanID: "fan-1", ArtistID: "artist-1", Purpose: "presale"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.ExpiresAt.Equal(now.AddDate(0, 0, DefaultExpiryDays)) {
		t.Fatalf("default expiry = %v", out.ExpiresAt)
	}
	rec, _ := fx.store.GetToken(ctx, out.Token)
	if rec.IssuedFor == nil || *rec.IssuedFor != "presale" {
		t.Fatalf("issuedFor = %v", rec.IssuedFor)
	}
}

func TestMonthsBetween(t *testing.T) {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		from, to time.Time
		want     int
	}{
		{d(2025, 1, 15), d(2026, 3, 1), 13},
		{d(2025, 1, 15), d(2025, 2, 15), 1},
		{d(2025, 1, 15), d(2025, 2, 14), 0},
		{d(2025, 1, 31), d(2025, 3, 1), 1},
		{d(2026, 3, 1), d(2025, 3, 1), 0},
		{time.Time{}, d(2026, 3, 1), 0},
	}
	for _, tt := range tests {
		if got := monthsBetween(tt.from, tt.to); got != tt.want {
			t.Errorf("monthsBetween(%s, %s) = %d, want %d", tt.from.Format(time.DateOnly), tt.to.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestDeriveSigningKey(t *testing.T) {
	a, err := DeriveSigningKey("secret", "salt")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := DeriveSigningKey("secret", "salt")
	c, _ := DeriveSigningKey("secret", "other")
	if len(a) != keySize || string(a) != string(b) || string(a) == string(c) {
		t.Fatalf("derived keys a=%x b=%x c=%x", a, b, c)
	}
	if _, err := DeriveSigningKey("", "salt"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("empty secret err = %v", err)
	}
}
