// Package memory implements adapter.ContentStore in process memory. It backs
// DEV_MODE and the tests, and mirrors GitHub's SHA rules so optimistic
// concurrency behaves the same as against a real repository.
package memory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jun/repocms/internal/adapter"
	apperrors "github.com/jun/repocms/internal/errors"
)

// DefaultMaxFileSize is GitHub's hard limit for a single file.
const DefaultMaxFileSize = 100 << 20

// Store is a single-branch repository held in memory.
type Store struct {
	mu      sync.RWMutex
	files   map[string][]byte
	commits int

	maxFileSize int
	maxFiles    int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFileSize rejects writes larger than n bytes.
func WithMaxFileSize(n int) Option {
	return func(s *Store) { s.maxFileSize = n }
}

// WithMaxFiles caps the number of files. Zero means unlimited.
func WithMaxFiles(n int) Option {
	return func(s *Store) { s.maxFiles = n }
}

// WithFiles seeds the store.
func WithFiles(files map[string]string) Option {
	return func(s *Store) {
		for p, c := range files {
			s.files[cleanPath(p)] = []byte(c)
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		files:       make(map[string][]byte),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BlobSHA returns the git blob SHA of content.
func BlobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) Get(_ context.Context, path string) (*adapter.File, error) {
	path = cleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[path]
	if !ok {
		if s.isDir(path) {
			return nil, apperrors.BadRequest(fmt.Sprintf("%s is a directory", path))
		}
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("%s not found", path))
	}
	return &adapter.File{
		Path:    path,
		Content: clone(content),
		SHA:     BlobSHA(content),
		Size:    len(content),
	}, nil
}

func (s *Store) Put(_ context.Context, req adapter.PutRequest) (*adapter.WriteResult, error) {
	path := cleanPath(req.Path)
	if path == "" {
		return nil, apperrors.BadRequest("path is required")
	}
	if s.maxFileSize > 0 && len(req.Content) > s.maxFileSize {
		return nil, apperrors.BadRequest(fmt.Sprintf("content too large: %d bytes (max %d)", len(req.Content), s.maxFileSize))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isDir(path) {
		return nil, apperrors.BadRequest(fmt.Sprintf("%s is a directory", path))
	}
	current, exists := s.files[path]
	switch {
	case req.SHA == "" && exists:
		return nil, apperrors.New(apperrors.KindConflict, `"sha" wasn't supplied`)
	case req.SHA != "" && !exists:
		return nil, apperrors.New(apperrors.KindConflict, fmt.Sprintf("%s does not exist at %s", path, req.SHA))
	case exists && BlobSHA(current) != req.SHA:
		return nil, apperrors.New(apperrors.KindConflict, fmt.Sprintf("%s does not match %s", path, req.SHA))
	}
	if !exists && s.maxFiles > 0 && len(s.files) >= s.maxFiles {
		return nil, apperrors.BadRequest("file limit reached")
	}

	s.files[path] = clone(req.Content)
	return &adapter.WriteResult{
		Path:   path,
		SHA:    BlobSHA(req.Content),
		Commit: s.commit(req.Message),
	}, nil
}

func (s *Store) Delete(_ context.Context, path, message, sha string) (*adapter.CommitInfo, error) {
	path = cleanPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.files[path]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Sprintf("%s not found", path))
	}
	if sha == "" {
		return nil, apperrors.New(apperrors.KindConflict, `"sha" wasn't supplied`)
	}
	if BlobSHA(current) != sha {
		return nil, apperrors.New(apperrors.KindConflict, fmt.Sprintf("%s does not match %s", path, sha))
	}
	delete(s.files, path)
	c := s.commit(message)
	return &c, nil
}

// Tree returns every file plus the directories implied by their paths,
// sorted by path.
func (s *Store) Tree(_ context.Context) ([]adapter.TreeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs := make(map[string]bool)
	entries := make([]adapter.TreeEntry, 0, len(s.files))
	for p, c := range s.files {
		entries = append(entries, adapter.TreeEntry{Path: p, Type: "blob", SHA: BlobSHA(c), Size: len(c)})
		for i := strings.LastIndex(p, "/"); i > 0; i = strings.LastIndex(p[:i], "/") {
			dirs[p[:i]] = true
		}
	}
	for d := range dirs {
		entries = append(entries, adapter.TreeEntry{Path: d, Type: "tree"})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// isDir reports whether some file lives below path. Callers hold the lock.
func (s *Store) isDir(path string) bool {
	prefix := path + "/"
	for p := range s.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (s *Store) commit(message string) adapter.CommitInfo {
	s.commits++
	sum := sha1.Sum([]byte(fmt.Sprintf("commit %d\x00%s", s.commits, message)))
	return adapter.CommitInfo{SHA: hex.EncodeToString(sum[:]), Message: message}
}

func cleanPath(p string) string {
	return strings.Trim(p, "/")
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
