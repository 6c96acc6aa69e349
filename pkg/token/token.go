package token

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

// Opaque credential generation for licenses and download grants. Everything
// here draws from crypto/rand; callers still collision-check at insert time
// via unique indexes.

// downloadTokenBytes is 32 bytes = 256 bits of entropy per download token.
const downloadTokenBytes = 32

// licenseKeyBytes is 20 bytes, which base32-encodes to 32 characters.
const licenseKeyBytes = 20

// NewDownloadToken returns a hex-encoded random token for a download grant.
func NewDownloadToken() (string, error) {
	buf := make([]byte, downloadTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate download token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewLicenseKey returns a license key of the form
// LIC-XXXXXXXX-XXXXXXXX-XXXXXXXX-XXXXXXXX using base32 without padding.
// The grouped shape is cosmetic; the entropy is what matters.
func NewLicenseKey() (string, error) {
	buf := make([]byte, licenseKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate license key: %w", err)
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	var groups []string
	for i := 0; i < len(enc); i += 8 {
		end := i + 8
		if end > len(enc) {
			end = len(enc)
		}
		groups = append(groups, enc[i:end])
	}
	return "LIC-" + strings.Join(groups, "-"), nil
}
