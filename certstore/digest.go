package certstore

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ComputeDigest returns the lowercase hex SHA-256 of the certificate's DER
// encoding.
func ComputeDigest(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// NormalizeDigest strips separators and lowercases a digest typed or
// pasted by the user.
func NormalizeDigest(digest string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', '\t':
			return -1
		}
		if r >= 'A' && r <= 'F' {
			return r + ('a' - 'A')
		}
		return r
	}, strings.TrimSpace(digest))
}

// FormatDigest groups a digest in blocks of four uppercase characters for
// display, e.g. "AB12 CD34 ...".
func FormatDigest(digest string) string {
	digest = NormalizeDigest(digest)
	var formatted strings.Builder
	for i, r := range digest {
		if i > 0 && i%4 == 0 {
			formatted.WriteRune(' ')
		}
		formatted.WriteRune(r)
	}
	return cases.Upper(language.English).String(formatted.String())
}
