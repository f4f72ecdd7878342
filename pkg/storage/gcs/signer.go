package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "GOOG4-RSA-SHA256"
	signingHost      = "storage.googleapis.com"
	credentialScope  = "auto/storage/goog4_request"
	maxSignedExpiry  = 7 * 24 * time.Hour
)

// urlSigner produces V4 signed URLs using service account credentials.
type urlSigner struct {
	email string
	key   *rsa.PrivateKey
	now   func() time.Time
}

func newURLSigner(email string, key *rsa.PrivateKey) *urlSigner {
	return &urlSigner{email: email, key: key, now: time.Now}
}

// Sign builds a V4 signed URL for the given verb, bucket and object. When
// contentType is non-empty it becomes part of the signed headers, so the
// eventual request must carry the identical Content-Type.
func (s *urlSigner) Sign(verb, bucket, object, contentType string, expiry time.Duration) (string, error) {
	if s == nil || s.key == nil || s.email == "" {
		return "", errors.New("signer not configured")
	}
	if bucket == "" || object == "" {
		return "", errors.New("bucket and object are required")
	}
	if expiry <= 0 || expiry > maxSignedExpiry {
		return "", fmt.Errorf("expiry must be within (0, %s]", maxSignedExpiry)
	}

	now := s.now().UTC()
	timestamp := now.Format("20060102T150405Z")
	datestamp := now.Format("20060102")
	credential := fmt.Sprintf("%s/%s/%s", s.email, datestamp, credentialScope)

	headers := map[string]string{"host": signingHost}
	if contentType != "" {
		headers["content-type"] = contentType
	}
	headerNames := make([]string, 0, len(headers))
	for name := range headers {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)

	var canonicalHeaders strings.Builder
	for _, name := range headerNames {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteByte(':')
		canonicalHeaders.WriteString(headers[name])
		canonicalHeaders.WriteByte('\n')
	}
	signedHeaders := strings.Join(headerNames, ";")

	query := [][2]string{
		{"X-Goog-Algorithm", signingAlgorithm},
		{"X-Goog-Credential", credential},
		{"X-Goog-Date", timestamp},
		{"X-Goog-Expires", fmt.Sprintf("%d", int64(expiry.Seconds()))},
		{"X-Goog-SignedHeaders", signedHeaders},
	}
	sort.Slice(query, func(i, j int) bool { return query[i][0] < query[j][0] })

	pairs := make([]string, 0, len(query))
	for _, kv := range query {
		pairs = append(pairs, percentEncode(kv[0])+"="+percentEncode(kv[1]))
	}
	canonicalQuery := strings.Join(pairs, "&")

	path := "/" + bucket + "/" + escapeObjectPath(object)

	canonicalRequest := strings.Join([]string{
		verb,
		path,
		canonicalQuery,
		canonicalHeaders.String(),
		signedHeaders,
		"UNSIGNED-PAYLOAD",
	}, "\n")

	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		timestamp,
		datestamp + "/" + credentialScope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	digest := sha256.Sum256([]byte(stringToSign))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing url: %w", err)
	}

	return fmt.Sprintf(
		"https://%s%s?%s&X-Goog-Signature=%s",
		signingHost, path, canonicalQuery, hex.EncodeToString(signature),
	), nil
}

// escapeObjectPath escapes each key segment while keeping the separators.
func escapeObjectPath(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = percentEncode(segment)
	}
	return strings.Join(segments, "/")
}

// percentEncode applies strict RFC 3986 encoding (spaces as %20, not +).
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
