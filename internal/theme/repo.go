package theme

import (
	"context"
	"errors"
	"strings"

	"github.com/jun/repocms/internal/content"
	apperrors "github.com/jun/repocms/internal/errors"
)

// RepoStore keeps the theme as a one-line file in the repository, so the
// site build can read it too.
type RepoStore struct {
	gateway *content.Gateway
	path    string
}

// NewRepoStore creates a RepoStore writing to path through gateway.
func NewRepoStore(gateway *content.Gateway, path string) *RepoStore {
	return &RepoStore{gateway: gateway, path: path}
}

func (s *RepoStore) Get(ctx context.Context) (string, error) {
	f, err := s.gateway.Read(ctx, s.path)
	if errors.Is(err, apperrors.ErrNotFound) {
		return Default, nil
	}
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(f.Content))
	if !Valid(name) {
		return Default, nil
	}
	return name, nil
}

func (s *RepoStore) Set(ctx context.Context, name, updatedBy string) error {
	if !Valid(name) {
		return apperrors.Wrap(apperrors.KindBadRequest, errInvalid(name), "invalid theme")
	}
	msg := "Set theme to " + name
	if updatedBy != "" {
		msg += " (" + updatedBy + ")"
	}
	_, err := s.gateway.Write(ctx, content.WriteRequest{
		Path:    s.path,
		Content: []byte(name + "\n"),
		Message: msg,
	})
	return err
}
