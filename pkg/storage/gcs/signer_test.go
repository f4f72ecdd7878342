package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *urlSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	s := newURLSigner("uploader@test.iam.gserviceaccount.com", key)
	s.now = func() time.Time {
		return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	}
	return s
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	signer := newTestSigner(t)

	signed, err := signer.Sign(http.MethodPut, "receipts-bucket", "owner/receipt/abc_scan.jpg", "image/jpeg", 15*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parsing signed url: %v", err)
	}
	if parsed.Host != signingHost {
		t.Fatalf("unexpected host %s", parsed.Host)
	}
	query := parsed.Query()
	if got := query.Get("X-Goog-Algorithm"); got != signingAlgorithm {
		t.Fatalf("unexpected algorithm %q", got)
	}
	if got := query.Get("X-Goog-Expires"); got != "900" {
		t.Fatalf("unexpected expires %q", got)
	}
	if got := query.Get("X-Goog-SignedHeaders"); got != "content-type;host" {
		t.Fatalf("unexpected signed headers %q", got)
	}
	if !strings.Contains(query.Get("X-Goog-Credential"), "uploader@test.iam.gserviceaccount.com/20260314/") {
		t.Fatalf("unexpected credential %q", query.Get("X-Goog-Credential"))
	}

	// Rebuild the canonical request and check the signature verifies against it.
	query.Del("X-Goog-Signature")
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	canonicalPairs := make([]string, 0, len(keys))
	for _, k := range keys {
		canonicalPairs = append(canonicalPairs, percentEncode(k)+"="+percentEncode(query.Get(k)))
	}
	canonicalRequest := strings.Join([]string{
		http.MethodPut,
		parsed.EscapedPath(),
		strings.Join(canonicalPairs, "&"),
		"content-type:image/jpeg\nhost:" + signingHost + "\n",
		"content-type;host",
		"UNSIGNED-PAYLOAD",
	}, "\n")
	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		"20260314T093000Z",
		"20260314/" + credentialScope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	sig, err := hex.DecodeString(parsed.Query().Get("X-Goog-Signature"))
	if err != nil {
		t.Fatalf("decoding signature: %v", err)
	}
	digest := sha256.Sum256([]byte(stringToSign))
	if err := rsa.VerifyPKCS1v15(&signer.key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("signature did not verify: %v", err)
	}
}

func TestSignDownloadOmitsContentType(t *testing.T) {
	signer := newTestSigner(t)

	signed, err := signer.Sign(http.MethodGet, "receipts-bucket", "owner/receipt/abc_scan.jpg", "", 15*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parsing signed url: %v", err)
	}
	if got := parsed.Query().Get("X-Goog-SignedHeaders"); got != "host" {
		t.Fatalf("expected host-only signed headers, got %q", got)
	}
}

func TestSignRejectsBadInputs(t *testing.T) {
	signer := newTestSigner(t)

	if _, err := signer.Sign(http.MethodPut, "", "object", "", time.Minute); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if _, err := signer.Sign(http.MethodPut, "bucket", "object", "", 0); err == nil {
		t.Fatal("expected error for zero expiry")
	}
	if _, err := signer.Sign(http.MethodPut, "bucket", "object", "", 8*24*time.Hour); err == nil {
		t.Fatal("expected error for expiry beyond the v4 limit")
	}

	var nilSigner *urlSigner
	if _, err := nilSigner.Sign(http.MethodPut, "bucket", "object", "", time.Minute); err == nil {
		t.Fatal("expected error for unconfigured signer")
	}
}
