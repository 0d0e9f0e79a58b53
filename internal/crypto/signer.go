package crypto

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptyKey is returned when a Signer is built without a secret.
	ErrEmptyKey = errors.New("signing key is empty")

	// ErrInvalidSignature is returned when a MAC does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer computes and checks HMAC-SHA256 MACs over strings.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer for the given secret.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}, nil
}

// Sign returns the base64url MAC of data.
func (s *Signer) Sign(data string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(data, s.key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return EncodeSegment(sig), nil
}

// Verify checks sig against data in constant time.
func (s *Signer) Verify(data, sig string) error {
	raw, err := DecodeSegment(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if err := jwt.SigningMethodHS256.Verify(data, raw, s.key); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
