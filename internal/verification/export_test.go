package verification

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func exportDoc(t *testing.T, svc *Service, token string, f Format) []byte {
	t.Helper()
	doc, err := svc.Export(token, f)
	if err != nil {
		t.Fatalf("Export(%s): %v", f, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestExportFormatsVerify(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	out := fx.issue(t, "fan-1", 30)

	for _, f := range []Format{FormatCompact, FormatJSON, FormatVC} {
		doc := exportDoc(t, fx.svc, out.Token, f)
		p, token, st := VerifyExport(testKey, f, doc, now)
		if st != StatusValid {
			t.Fatalf("%s: status = %s", f, st)
		}
		if token != out.Token || p.TokenID != out.TokenID {
			t.Fatalf("%s: token mismatch", f)
		}
		res, err := fx.svc.VerifyExport(ctx, f, doc)
		if err != nil || res.Status != StatusValid {
			t.Fatalf("%s: service status = %s, %v", f, res.Status, err)
		}
	}

	if _, err := fx.svc.Revoke(ctx, out.Token, "fan-1"); err != nil {
		t.Fatal(err)
	}
	res, _ := fx.svc.VerifyExport(ctx, FormatVC, exportDoc(t, fx.svc, out.Token, FormatVC))
	if res.Status != StatusRevoked {
		t.Fatalf("revoked export status = %s", res.Status)
	}
}

func TestExportTampering(t *testing.T) {
	fx := newFixture(t)
	out := fx.issue(t, "fan-1", 30)

	var d Detached
	_ = json.Unmarshal(exportDoc(t, fx.svc, out.Token, FormatJSON), &d)
	d.Payload = json.RawMessage(strings.Replace(string(d.Payload), `"stanScore":40`, `"stanScore":99`, 1))
	doc, _ := json.Marshal(d)
	if _, _, st := VerifyExport(testKey, FormatJSON, doc, now); st != StatusInvalidSignature {
		t.Fatalf("detached tamper status = %s", st)
	}

	var c Credential
	_ = json.Unmarshal(exportDoc(t, fx.svc, out.Token, FormatVC), &c)
	if c.ID[:9] != "urn:uuid:" || c.Issuer == "" {
		t.Fatalf("credential = %+v", c)
	}
	c.CredentialSubject.StanScore = 99
	doc, _ = json.Marshal(c)
	if _, _, st := VerifyExport(testKey, FormatVC, doc, now); st != StatusInvalidSignature {
		t.Fatalf("vc tamper status = %s", st)
	}

	if _, _, st := VerifyExport(testKey, FormatJSON, []byte("{"), now); st != StatusInvalidFormat {
		t.Fatalf("garbage status = %s", st)
	}
	if _, _, st := VerifyExport(testKey, FormatCompact, exportDoc(t, fx.svc, out.Token, FormatCompact), now.AddDate(0, 0, 31)); st != StatusExpired {
		t.Fatalf("expired compact status = %s", st)
	}
	if _, err := fx.svc.Export(tamper(out.Token), FormatVC); err == nil {
		t.Fatal("exporting a tampered token should fail")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCompact, "JSON": FormatJSON, " vc ": FormatVC, "compact": FormatCompact} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestQR(t *testing.T) {
	fx := newFixture(t)
	fx.svc.PublicURL = "https://fans.example.com/verify"
	out := fx.issue(t, "fan-1", 30)

	link, err := fx.svc.VerificationURL(out.Token)
	if err != nil || !strings.HasPrefix(link, "https://fans.example.com/verify?token=") {
		t.Fatalf("link = %q, %v", link, err)
	}
	png, err := fx.svc.QR(out.Token, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("not a png: % x", png[:8])
	}
	if _, err := fx.svc.QR("garbage", 0); err == nil {
		t.Fatal("expected error for unsigned token")
	}
}
