package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer produces and verifies short-lived signed URLs for objects in the
// store's file bucket. It stands in for the hosted storage collaborator's
// URL-signing endpoint: the URL carries the object path, an absolute expiry
// and an HMAC over both, so the file handler can authorize the fetch without
// any state.
type Signer struct {
	baseURL string
	secret  []byte
}

// NewSigner creates a Signer. baseURL is the public prefix the signed path is
// appended to, e.g. "http://localhost:8080/files".
func NewSigner(baseURL, secret string) *Signer {
	return &Signer{
		baseURL: baseURL,
		secret:  []byte(secret),
	}
}

// SignedURL returns a URL granting read access to bucket/path until now+ttl.
func (s *Signer) SignedURL(bucket, path string, ttl time.Duration) (string, error) {
	if bucket == "" || path == "" {
		return "", fmt.Errorf("bucket and path are required")
	}
	expires := time.Now().Add(ttl).Unix()
	object := bucket + "/" + path
	sig := s.sign(object, expires)

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", sig)
	return fmt.Sprintf("%s/%s?%s", s.baseURL, object, q.Encode()), nil
}

// Verify checks a presented object path, expiry and signature. It returns an
// error when the signature does not match or the URL has expired.
func (s *Signer) Verify(object string, expires int64, sig string) error {
	expected := s.sign(object, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch for object %s", object)
	}
	if time.Now().Unix() >= expires {
		return fmt.Errorf("signed URL for object %s has expired", object)
	}
	return nil
}

func (s *Signer) sign(object string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", object, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
