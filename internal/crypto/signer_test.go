package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_RejectsEmptyKey(t *testing.T) {
	_, err := NewSigner(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestSigner_MatchesHMACSHA256(t *testing.T) {
	s, err := NewSigner([]byte("secret"))
	require.NoError(t, err)

	sig, err := s.Sign("payload")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("payload"))
	assert.Equal(t, EncodeSegment(mac.Sum(nil)), sig)
}

func TestSigner_Verify(t *testing.T) {
	s, err := NewSigner([]byte("secret"))
	require.NoError(t, err)
	sig, err := s.Sign("payload")
	require.NoError(t, err)

	assert.NoError(t, s.Verify("payload", sig))
	assert.ErrorIs(t, s.Verify("payload2", sig), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify("payload", sig[:len(sig)-2]), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify("payload", "!!not-base64!!"), ErrInvalidSignature)

	other, err := NewSigner([]byte("other"))
	require.NoError(t, err)
	assert.ErrorIs(t, other.Verify("payload", sig), ErrInvalidSignature)
}
