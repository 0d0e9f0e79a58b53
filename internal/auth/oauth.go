// Package auth runs the GitHub OAuth authorization-code flow: it starts the
// login with a CSRF state nonce, validates the callback, exchanges the code
// and looks up who logged in. The user's access token is discarded after the
// identity lookup; repository calls use the configured repository token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jun/repocms/internal/adapter/githubrepo"
	apperrors "github.com/jun/repocms/internal/errors"
)

const (
	// StateCookieName carries the CSRF nonce between /login and /callback.
	StateCookieName = "oauth_state"

	// StateMaxAge bounds how long a login may take.
	StateMaxAge = 10 * time.Minute

	// DefaultScope only reads the user's public profile.
	DefaultScope = "read:user"

	httpTimeout = 15 * time.Second
)

// Identity is the GitHub account that completed the flow.
type Identity struct {
	Login string
	ID    int64
	Name  string
}

// AuthService handles the OAuth2 flow against GitHub.
type AuthService struct {
	oauthConfig *oauth2.Config
	apiURL      string
	httpClient  *http.Client
	newState    func() string
	secure      bool
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithAPIURL points identity lookups at another GitHub REST endpoint.
func WithAPIURL(u string) Option {
	return func(s *AuthService) { s.apiURL = u }
}

// WithStateGenerator overrides the nonce source.
func WithStateGenerator(f func() string) Option {
	return func(s *AuthService) { s.newState = f }
}

// WithSecureCookies toggles the Secure attribute of the state cookie.
func WithSecureCookies(secure bool) Option {
	return func(s *AuthService) { s.secure = secure }
}

// NewAuthService creates a new AuthService.
// The oauthConfig should be constructed by the caller, normally with the
// golang.org/x/oauth2/github endpoint.
func NewAuthService(oauthConfig *oauth2.Config, opts ...Option) *AuthService {
	s := &AuthService{
		oauthConfig: oauthConfig,
		apiURL:      githubrepo.DefaultAPIURL,
		httpClient:  &http.Client{Timeout: httpTimeout},
		newState:    uuid.NewString,
		secure:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the OAuth2 config.
func (s *AuthService) Config() *oauth2.Config {
	return s.oauthConfig
}

// Login is the redirect that starts the flow.
type Login struct {
	URL    string
	State  string
	Cookie *http.Cookie
}

// BeginLogin creates a fresh state nonce and the provider authorize URL.
func (s *AuthService) BeginLogin() *Login {
	state := s.newState()
	return &Login{
		URL:    s.GenerateAuthURL(state),
		State:  state,
		Cookie: s.stateCookie(state, int(StateMaxAge/time.Second)),
	}
}

// GenerateAuthURL returns the URL to redirect the user to for GitHub login.
func (s *AuthService) GenerateAuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state)
}

// ClearStateCookie returns a directive that removes the state cookie.
func (s *AuthService) ClearStateCookie() *http.Cookie {
	return s.stateCookie("", -1)
}

func (s *AuthService) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Callback holds what arrived at the redirect URI.
type Callback struct {
	Code  string
	State string
	// StoredState is the value of the state cookie.
	StoredState string
	// Error and ErrorDescription are set when the user or GitHub refused.
	Error            string
	ErrorDescription string
}

// CompleteCallback validates the callback, exchanges the code and returns the
// identity of the user.
func (s *AuthService) CompleteCallback(ctx context.Context, cb Callback) (*Identity, error) {
	// The state is checked before anything else in the query is trusted.
	if cb.State == "" {
		return nil, apperrors.BadRequest("Missing code or state")
	}
	if cb.StoredState == "" || subtle.ConstantTimeCompare([]byte(cb.State), []byte(cb.StoredState)) != 1 {
		return nil, apperrors.New(apperrors.KindCSRFMismatch, "Invalid OAuth state")
	}
	if cb.Code == "" {
		err := apperrors.BadRequest("Missing code or state")
		if cb.Error != "" {
			err = apperrors.BadRequest("authorization was not granted").WithDetails(map[string]string{
				"error":             cb.Error,
				"error_description": cb.ErrorDescription,
			})
		}
		return nil, err
	}

	token, err := s.ExchangeCode(ctx, cb.Code)
	if err != nil {
		return nil, err
	}
	return s.FetchIdentity(ctx, token)
}

// ExchangeCode exchanges the authorization code for an access token.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		upErr := apperrors.Upstream(err, "token exchange failed")
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			upErr.WithDetails(map[string]string{
				"error":             re.ErrorCode,
				"error_description": re.ErrorDescription,
			})
		}
		return nil, upErr
	}
	if token == nil || token.AccessToken == "" {
		return nil, apperrors.New(apperrors.KindUpstream, "token exchange returned no access token")
	}
	return token, nil
}

// FetchIdentity looks up the GitHub user owning token.
func (s *AuthService) FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	client, err := githubrepo.NewClient(token.AccessToken, s.apiURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "build github client")
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, apperrors.Upstream(err, "fetch github user")
	}
	if user.GetLogin() == "" {
		return nil, apperrors.New(apperrors.KindUpstream, "github user has no login")
	}
	return &Identity{
		Login: user.GetLogin(),
		ID:    user.GetID(),
		Name:  user.GetName(),
	}, nil
}
