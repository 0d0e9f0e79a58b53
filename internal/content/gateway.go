// Package content translates CMS file operations into ContentStore calls.
// It owns path rules, SHA discovery for writes, folder placeholders and the
// layout of uploaded images. Nothing is cached: every call goes to the store.
package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jun/repocms/internal/adapter"
	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/model"
)

// folderPlaceholder keeps otherwise empty directories in git.
const folderPlaceholder = ".keep"

// Config describes where content and uploads live in the repository.
type Config struct {
	// ContentRoot is the directory listed by List, e.g. "content".
	ContentRoot string
	// Extension filters List, e.g. ".md".
	Extension string
	// UploadRoot receives uploaded images, e.g. "images".
	UploadRoot string
	// ImageResizePrefix is the image-resizing path the derived upload URLs
	// are built on, e.g. "/cdn-cgi/image".
	ImageResizePrefix string
}

// DefaultConfig returns the layout used by the site generator.
func DefaultConfig() Config {
	return Config{
		ContentRoot:       "content",
		Extension:         ".md",
		UploadRoot:        "images",
		ImageResizePrefix: "/cdn-cgi/image",
	}
}

// Gateway implements list/read/write/createFolder/uploadBinary/delete.
type Gateway struct {
	store adapter.ContentStore
	cfg   Config
	roots []string
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used for upload paths.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// New creates a Gateway over store.
func New(store adapter.ContentStore, cfg Config, opts ...Option) *Gateway {
	cfg.ContentRoot = strings.Trim(cfg.ContentRoot, "/")
	cfg.UploadRoot = strings.Trim(cfg.UploadRoot, "/")
	cfg.ImageResizePrefix = strings.TrimSuffix(cfg.ImageResizePrefix, "/")

	g := &Gateway{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, r := range []string{cfg.ContentRoot, cfg.UploadRoot} {
		if r != "" {
			g.roots = append(g.roots, r)
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// List returns the content files under the content root with the configured
// extension. A non-empty query keeps only paths containing it, ignoring case.
func (g *Gateway) List(ctx context.Context, query string) ([]model.FileDescriptor, error) {
	entries, err := g.store.Tree(ctx)
	if err != nil {
		return nil, err
	}

	prefix := g.cfg.ContentRoot + "/"
	query = strings.ToLower(strings.TrimSpace(query))
	files := []model.FileDescriptor{}
	for _, e := range entries {
		if e.Type != "blob" || !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		if g.cfg.Extension != "" && !strings.HasSuffix(e.Path, g.cfg.Extension) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(e.Path), query) {
			continue
		}
		files = append(files, model.FileDescriptor{Path: e.Path, SHA: e.SHA, Size: e.Size})
	}
	return files, nil
}

// Read fetches a file. Absent files are NotFound.
func (g *Gateway) Read(ctx context.Context, p string) (*adapter.File, error) {
	p, err := g.resolve(p)
	if err != nil {
		return nil, err
	}
	return g.store.Get(ctx, p)
}

// WriteRequest describes a write through the Gateway.
type WriteRequest struct {
	Path    string
	Content []byte
	Message string
	// SHA is the version the caller last read. When empty and Create is
	// false, the current SHA is looked up first, so the write overwrites.
	SHA string
	// Create signals that the file must not exist yet. No lookup is made
	// and an existing file surfaces as Conflict.
	Create bool
}

// Write creates or updates a file and returns the new SHA and commit.
func (g *Gateway) Write(ctx context.Context, req WriteRequest) (*adapter.WriteResult, error) {
	p, err := g.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	sha := req.SHA
	if req.Create {
		sha = ""
	} else if sha == "" {
		sha, err = g.currentSHA(ctx, p)
		if err != nil {
			return nil, err
		}
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		if sha == "" {
			msg = "Create " + p
		} else {
			msg = "Update " + p
		}
	}

	res, err := g.store.Put(ctx, adapter.PutRequest{
		Path:    p,
		Content: req.Content,
		Message: msg,
		SHA:     sha,
	})
	if err != nil {
		return nil, err
	}
	g.log.Info().Str("path", res.Path).Str("sha", res.SHA).Str("commit", res.Commit.SHA).Msg("content written")
	return res, nil
}

// CreateFolder commits a placeholder file so the directory exists.
func (g *Gateway) CreateFolder(ctx context.Context, dir, message string) (*adapter.WriteResult, error) {
	dir, err := g.resolve(dir)
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = "Create folder " + dir
	}
	return g.Write(ctx, WriteRequest{
		Path:    path.Join(dir, folderPlaceholder),
		Content: []byte{},
		Message: message,
		Create:  true,
	})
}

// Delete removes a file. An empty sha is looked up first.
func (g *Gateway) Delete(ctx context.Context, p, sha, message string) (*adapter.CommitInfo, error) {
	p, err := g.resolve(p)
	if err != nil {
		return nil, err
	}
	if sha == "" {
		f, err := g.store.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		sha = f.SHA
	}
	if message == "" {
		message = "Delete " + p
	}
	c, err := g.store.Delete(ctx, p, message, sha)
	if err != nil {
		return nil, err
	}
	g.log.Info().Str("path", p).Str("commit", c.SHA).Msg("content deleted")
	return c, nil
}

// currentSHA returns the SHA of p, or "" when p does not exist.
func (g *Gateway) currentSHA(ctx context.Context, p string) (string, error) {
	f, err := g.store.Get(ctx, p)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return f.SHA, nil
}

// resolve validates a client supplied path and returns its clean form.
func (g *Gateway) resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return "", apperrors.BadRequest("path is required")
	case strings.HasPrefix(p, "/"):
		return "", apperrors.BadRequest("path must be relative")
	case strings.ContainsAny(p, "\\\x00"):
		return "", apperrors.BadRequest("path contains invalid characters")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", apperrors.BadRequest("path must not contain ..")
		}
	}

	clean := path.Clean(p)
	for _, root := range g.roots {
		if strings.HasPrefix(clean, root+"/") {
			return clean, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("path must be under %s", strings.Join(g.roots, " or ")))
}
