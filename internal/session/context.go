package session

import (
	"context"

	"github.com/jun/repocms/internal/model"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the verified session stored by the router, if any.
func FromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*model.Session)
	return s, ok && s != nil
}
