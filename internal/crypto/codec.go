// Package crypto holds the encoding and MAC primitives behind the session
// cookie and the OAuth state nonce.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeSegment encodes b as unpadded base64url.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSegment decodes unpadded base64url. Trailing "=" padding is tolerated.
func DecodeSegment(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("decode segment: %w", err)
	}
	return b, nil
}

// RandomToken returns n bytes from crypto/rand as a base64url segment.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return EncodeSegment(b), nil
}
