package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/repocms/internal/model"
	"github.com/jun/repocms/internal/session"
	"github.com/jun/repocms/internal/theme"
)

// ThemeHandler reads and saves the editor theme.
type ThemeHandler struct {
	store theme.Store
}

// NewThemeHandler creates a new ThemeHandler.
func NewThemeHandler(store theme.Store) *ThemeHandler {
	return &ThemeHandler{store: store}
}

func (h *ThemeHandler) GetTheme(ctx context.Context, _ events.APIGatewayProxyRequest) (Response, error) {
	name, err := h.store.Get(ctx)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, model.Theme{Theme: name})
}

func (h *ThemeHandler) PutTheme(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	var body model.Theme
	if err := decodeJSON(req, &body); err != nil {
		return Response{}, err
	}
	name := strings.TrimSpace(body.Theme)
	if name == "" {
		return Response{}, missing("theme")
	}

	var login string
	if s, ok := session.FromContext(ctx); ok {
		login = s.Subject
	}
	if err := h.store.Set(ctx, name, login); err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, model.Theme{Theme: name})
}
