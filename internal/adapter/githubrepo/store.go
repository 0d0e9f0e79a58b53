package githubrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v58/github"
	"github.com/rs/zerolog"

	"github.com/jun/repocms/internal/adapter"
	apperrors "github.com/jun/repocms/internal/errors"
)

// Repo identifies the repository branch every call targets.
type Repo struct {
	Owner  string
	Name   string
	Branch string
}

func (r Repo) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Name, r.Branch)
}

// Store implements adapter.ContentStore against one repository branch.
type Store struct {
	client *github.Client
	repo   Repo
	log    zerolog.Logger
}

// New creates a Store. The client must already carry the repository token.
func New(client *github.Client, repo Repo, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		repo:   repo,
		log:    logger.With().Str("component", "githubrepo").Str("repo", repo.String()).Logger(),
	}
}

func (s *Store) Get(ctx context.Context, path string) (*adapter.File, error) {
	path = strings.Trim(path, "/")
	fc, _, _, err := s.client.Repositories.GetContents(ctx, s.repo.Owner, s.repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: s.repo.Branch})
	if err != nil {
		return nil, classify(err, "get "+path)
	}
	if fc == nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("%s is a directory", path))
	}

	var content []byte
	if fc.GetEncoding() == "none" || (fc.Content == nil && fc.GetSize() > 0) {
		// The contents endpoint omits bodies over 1 MB.
		raw, _, err := s.client.Git.GetBlobRaw(ctx, s.repo.Owner, s.repo.Name, fc.GetSHA())
		if err != nil {
			return nil, classify(err, "get blob "+path)
		}
		content = raw
	} else {
		str, err := fc.GetContent()
		if err != nil {
			return nil, apperrors.Upstream(err, "decode "+path)
		}
		content = []byte(str)
	}

	return &adapter.File{
		Path:    fc.GetPath(),
		Content: content,
		SHA:     fc.GetSHA(),
		Size:    len(content),
	}, nil
}

func (s *Store) Put(ctx context.Context, req adapter.PutRequest) (*adapter.WriteResult, error) {
	path := strings.Trim(req.Path, "/")
	content := req.Content
	if content == nil {
		// A nil slice would marshal as null, which GitHub rejects.
		content = []byte{}
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(req.Message),
		Content: content,
		Branch:  github.String(s.repo.Branch),
	}

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if req.SHA == "" {
		res, _, err = s.client.Repositories.CreateFile(ctx, s.repo.Owner, s.repo.Name, path, opts)
	} else {
		opts.SHA = github.String(req.SHA)
		res, _, err = s.client.Repositories.UpdateFile(ctx, s.repo.Owner, s.repo.Name, path, opts)
	}
	if err != nil {
		return nil, classify(err, "put "+path)
	}

	out := &adapter.WriteResult{Path: path, Commit: commitInfo(&res.Commit)}
	if res.Content != nil {
		out.SHA = res.Content.GetSHA()
		if p := res.Content.GetPath(); p != "" {
			out.Path = p
		}
	}
	s.log.Debug().Str("path", out.Path).Str("commit", out.Commit.SHA).Msg("file committed")
	return out, nil
}

func (s *Store) Delete(ctx context.Context, path, message, sha string) (*adapter.CommitInfo, error) {
	path = strings.Trim(path, "/")
	res, _, err := s.client.Repositories.DeleteFile(ctx, s.repo.Owner, s.repo.Name, path,
		&github.RepositoryContentFileOptions{
			Message: github.String(message),
			SHA:     github.String(sha),
			Branch:  github.String(s.repo.Branch),
		})
	if err != nil {
		return nil, classify(err, "delete "+path)
	}
	c := commitInfo(&res.Commit)
	s.log.Debug().Str("path", path).Str("commit", c.SHA).Msg("file deleted")
	return &c, nil
}

func (s *Store) Tree(ctx context.Context) ([]adapter.TreeEntry, error) {
	tree, _, err := s.client.Git.GetTree(ctx, s.repo.Owner, s.repo.Name, s.repo.Branch, true)
	if err != nil {
		err = classify(err, "tree")
		if errors.Is(err, apperrors.ErrConflict) {
			// GitHub answers 409 for a repository without commits.
			return nil, nil
		}
		return nil, err
	}
	if tree.GetTruncated() {
		s.log.Warn().Int("entries", len(tree.Entries)).Msg("repository tree truncated by GitHub")
	}

	entries := make([]adapter.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, adapter.TreeEntry{
			Path: e.GetPath(),
			Type: e.GetType(),
			SHA:  e.GetSHA(),
			Size: e.GetSize(),
		})
	}
	return entries, nil
}

func commitInfo(c *github.Commit) adapter.CommitInfo {
	return adapter.CommitInfo{
		SHA:     c.GetSHA(),
		Message: c.GetMessage(),
		URL:     c.GetHTMLURL(),
	}
}
