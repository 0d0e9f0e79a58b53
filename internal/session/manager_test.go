package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/repocms/internal/crypto"
	apperrors "github.com/jun/repocms/internal/errors"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	m, err := NewManager([]byte("test-secret"), opts...)
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, crypto.ErrEmptyKey)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	c, err := m.Issue("alice")
	require.NoError(t, err)

	s, err := m.Verify(c.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Subject)
	assert.True(t, s.IssuedAt.Time.Equal(testNow))
}

func TestIssue_CookieAttributes(t *testing.T) {
	m := newTestManager(t)

	c, err := m.Issue("alice")
	require.NoError(t, err)

	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	header := c.String()
	assert.True(t, strings.HasPrefix(header, "session="))
	assert.Contains(t, header, "Path=/")
	assert.Contains(t, header, "Max-Age=604800")
	assert.Contains(t, header, "HttpOnly")
	assert.Contains(t, header, "Secure")
	assert.Contains(t, header, "SameSite=Lax")
}

func TestIssue_PayloadShape(t *testing.T) {
	m := newTestManager(t)

	value, err := m.Encode("alice")
	require.NoError(t, err)

	body, _, ok := strings.Cut(value, ".")
	require.True(t, ok)
	raw, err := crypto.DecodeSegment(body)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "alice", payload["subject"])
	assert.EqualValues(t, testNow.Unix(), payload["issuedAt"])
}

func TestVerify_Rejects(t *testing.T) {
	m := newTestManager(t)
	valid, err := m.Encode("alice")
	require.NoError(t, err)
	body, sig, _ := strings.Cut(valid, ".")
	flipped := "A"
	if strings.HasPrefix(sig, "A") {
		flipped = "B"
	}

	other, err := NewManager([]byte("other-secret"), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	foreign, err := other.Encode("alice")
	require.NoError(t, err)

	signed := func(payload string) string {
		s, err := crypto.NewSigner([]byte("test-secret"))
		require.NoError(t, err)
		b := crypto.EncodeSegment([]byte(payload))
		mac, err := s.Sign(b)
		require.NoError(t, err)
		return b + "." + mac
	}

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"no separator", body},
		{"empty signature", body + "."},
		{"empty payload", "." + sig},
		{"tampered payload", crypto.EncodeSegment([]byte(`{"subject":"mallory","issuedAt":1714564800}`)) + "." + sig},
		{"tampered signature", body + "." + flipped + sig[1:]},
		{"wrong secret", foreign},
		{"garbage", "!!!.???"},
		{"signed non-json", signed("not json")},
		{"signed empty subject", signed(`{"subject":"","issuedAt":1714564800}`)},
		{"signed missing issuedAt", signed(`{"subject":"alice"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestVerify_Expiry(t *testing.T) {
	issuer := newTestManager(t, WithMaxAge(time.Hour))
	value, err := issuer.Encode("alice")
	require.NoError(t, err)

	later, err := NewManager([]byte("test-secret"),
		WithMaxAge(time.Hour),
		WithClock(func() time.Time { return testNow.Add(2 * time.Hour) }))
	require.NoError(t, err)
	_, err = later.Verify(value)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	earlier, err := NewManager([]byte("test-secret"),
		WithMaxAge(time.Hour),
		WithClock(func() time.Time { return testNow.Add(-10 * time.Minute) }))
	require.NoError(t, err)
	_, err = earlier.Verify(value)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized, "tokens from the future are rejected")

	unbounded, err := NewManager([]byte("test-secret"),
		WithMaxAge(0),
		WithClock(func() time.Time { return testNow.Add(365 * 24 * time.Hour) }))
	require.NoError(t, err)
	_, err = unbounded.Verify(value)
	assert.NoError(t, err)
}

func TestClear(t *testing.T) {
	m := newTestManager(t, WithSecure(false))

	header := m.Clear().String()
	assert.True(t, strings.HasPrefix(header, "session=;"))
	assert.Contains(t, header, "Max-Age=0")
	assert.NotContains(t, header, "Secure")
}

func TestFromCookieHeader(t *testing.T) {
	m := newTestManager(t)
	value, err := m.Encode("alice")
	require.NoError(t, err)

	s, err := m.FromCookieHeader("theme=dark; session=" + value + "; oauth_state=abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Subject)

	_, err = m.FromCookieHeader("theme=dark")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = m.FromCookieHeader("")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCookieValue(t *testing.T) {
	v, ok := CookieValue("a=1; oauth_state=abc123", "oauth_state")
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	_, ok = CookieValue("a=1", "oauth_state")
	assert.False(t, ok)

	_, ok = CookieValue("oauth_state=", "oauth_state")
	assert.False(t, ok)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	m := newTestManager(t)
	c, err := m.Issue("alice")
	require.NoError(t, err)
	s, err := m.Verify(c.Value)
	require.NoError(t, err)

	got, ok := FromContext(NewContext(context.Background(), s))
	require.True(t, ok)
	assert.Equal(t, "alice", got.Subject)
}
