package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/jun/repocms/internal/auth"
	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/model"
	"github.com/jun/repocms/internal/session"
)

// AfterLogin is where a successful callback sends the browser.
const AfterLogin = "/admin"

// AuthHandler handles the GitHub login flow and the current user.
type AuthHandler struct {
	authService *auth.AuthService
	sessions    *session.Manager
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *auth.AuthService, sessions *session.Manager, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: s, sessions: sessions, log: log}
}

// Login redirects to GitHub and remembers the state nonce in a cookie.
func (h *AuthHandler) Login(_ context.Context, _ events.APIGatewayProxyRequest) (Response, error) {
	login := h.authService.BeginLogin()
	resp := redirect(login.URL)
	SetCookies(&resp, login.Cookie)
	return resp, nil
}

// Callback completes the flow. The state cookie is cleared on every outcome.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	stored, _ := session.CookieValue(GetHeader(req, "Cookie"), auth.StateCookieName)
	id, err := h.authService.CompleteCallback(ctx, auth.Callback{
		Code:             queryParam(req, "code"),
		State:            queryParam(req, "state"),
		StoredState:      stored,
		Error:            queryParam(req, "error"),
		ErrorDescription: queryParam(req, "error_description"),
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("oauth callback rejected")
		resp := ErrorResponse(err)
		SetCookies(&resp, h.authService.ClearStateCookie())
		return resp, nil
	}

	cookie, err := h.sessions.Issue(id.Login)
	if err != nil {
		resp := ErrorResponse(err)
		SetCookies(&resp, h.authService.ClearStateCookie())
		return resp, nil
	}
	h.log.Info().Str("login", id.Login).Int64("github_id", id.ID).Msg("user logged in")

	resp := redirect(AfterLogin)
	SetCookies(&resp, cookie, h.authService.ClearStateCookie())
	return resp, nil
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(_ context.Context, _ events.APIGatewayProxyRequest) (Response, error) {
	resp := Response{
		StatusCode: http.StatusNoContent,
		Headers:    map[string]string{"Cache-Control": "no-store"},
	}
	SetCookies(&resp, h.sessions.Clear())
	return resp, nil
}

// Me returns the login of the authenticated user.
func (h *AuthHandler) Me(ctx context.Context, _ events.APIGatewayProxyRequest) (Response, error) {
	s, ok := session.FromContext(ctx)
	if !ok {
		return Response{}, apperrors.New(apperrors.KindUnauthorized, "not signed in")
	}
	return JSON(http.StatusOK, model.Me{Login: s.Subject})
}
