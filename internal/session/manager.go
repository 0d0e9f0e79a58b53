// Package session issues and verifies the stateless signed session cookie.
// The cookie value is base64url(payload) + "." + base64url(HMAC-SHA256).
package session

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jun/repocms/internal/crypto"
	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/model"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "session"

	// DefaultMaxAge matches the cookie Max-Age of one week.
	DefaultMaxAge = 7 * 24 * time.Hour

	clockSkew = time.Minute
)

// Manager issues and verifies session cookies.
type Manager struct {
	signer *crypto.Signer
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAge sets both the cookie Max-Age and the accepted token age.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) { m.maxAge = d }
}

// WithSecure toggles the Secure cookie attribute. Only local http development
// should turn it off.
func WithSecure(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager signing with secret.
func NewManager(secret []byte, opts ...Option) (*Manager, error) {
	signer, err := crypto.NewSigner(secret)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		signer: signer,
		maxAge: DefaultMaxAge,
		secure: true,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Encode returns the signed token for subject, issued now.
func (m *Manager) Encode(subject string) (string, error) {
	if subject == "" {
		return "", apperrors.New(apperrors.KindInternal, "session subject is empty")
	}
	payload, err := json.Marshal(model.Session{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(m.now()),
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "marshal session")
	}
	body := crypto.EncodeSegment(payload)
	sig, err := m.signer.Sign(body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "sign session")
	}
	return body + "." + sig, nil
}

// Issue returns the Set-Cookie directive carrying a new session for subject.
func (m *Manager) Issue(subject string) (*http.Cookie, error) {
	value, err := m.Encode(subject)
	if err != nil {
		return nil, err
	}
	c := m.cookie(value)
	c.MaxAge = int(m.maxAge / time.Second)
	return c, nil
}

// Clear returns a directive that removes the session cookie.
func (m *Manager) Clear() *http.Cookie {
	c := m.cookie("")
	c.MaxAge = -1
	return c
}

// Verify checks a cookie value and returns the session it carries.
// Every failure is reported as Unauthorized.
func (m *Manager) Verify(value string) (*model.Session, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok || body == "" || sig == "" {
		return nil, apperrors.New(apperrors.KindUnauthorized, "malformed session")
	}
	if err := m.signer.Verify(body, sig); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthorized, err, "session signature mismatch")
	}

	raw, err := crypto.DecodeSegment(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthorized, err, "malformed session")
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthorized, err, "malformed session")
	}
	if s.Subject == "" {
		return nil, apperrors.New(apperrors.KindUnauthorized, "session has no subject")
	}

	if m.maxAge > 0 {
		if s.IssuedAt == nil {
			return nil, apperrors.New(apperrors.KindUnauthorized, "session has no issue time")
		}
		now := m.now()
		iat := s.IssuedAt.Time
		if iat.After(now.Add(clockSkew)) || now.Sub(iat) > m.maxAge {
			return nil, apperrors.New(apperrors.KindUnauthorized, "session expired")
		}
	}
	return &s, nil
}

// FromCookieHeader finds and verifies the session cookie in a raw Cookie header.
func (m *Manager) FromCookieHeader(header string) (*model.Session, error) {
	value, ok := CookieValue(header, CookieName)
	if !ok {
		return nil, apperrors.New(apperrors.KindUnauthorized, "no session")
	}
	return m.Verify(value)
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieValue returns the value of the named cookie in a raw Cookie header.
// Malformed neighbouring cookies are skipped.
func CookieValue(header, name string) (string, bool) {
	if header == "" {
		return "", false
	}
	r := &http.Request{Header: http.Header{"Cookie": {header}}}
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
