package adapter

//go:generate mockgen -source=storage.go -destination=adaptermock/mock_storage.go -package=adaptermock

import (
	"context"
)

// File is a repository file with its decoded content.
type File struct {
	Path    string
	Content []byte
	// SHA is the git blob SHA, used as the version for optimistic concurrency.
	SHA  string
	Size int
}

// TreeEntry is one entry of the recursive repository tree.
type TreeEntry struct {
	Path string
	// Type is "blob" for files and "tree" for directories.
	Type string
	SHA  string
	Size int
}

// CommitInfo describes the commit created by a write or delete.
type CommitInfo struct {
	SHA     string
	Message string
	URL     string
}

// WriteResult is the outcome of a successful Put.
type WriteResult struct {
	Path   string
	SHA    string
	Commit CommitInfo
}

// PutRequest describes a create-or-update of a single file.
type PutRequest struct {
	Path    string
	Content []byte
	Message string
	// SHA is the expected current blob SHA. Empty means the file must not exist.
	SHA string
}

// ContentStore is the raw file API of a single repository branch.
// Implementations report failures with the kinds from internal/errors:
// NotFound for absent paths, Conflict for version mismatches, Upstream for
// everything the remote rejects.
type ContentStore interface {
	// Get returns a file. Directories are rejected as bad requests.
	Get(ctx context.Context, path string) (*File, error)

	// Put creates or updates a file and commits it.
	Put(ctx context.Context, req PutRequest) (*WriteResult, error)

	// Delete removes a file whose current SHA is sha.
	Delete(ctx context.Context, path, message, sha string) (*CommitInfo, error)

	// Tree lists every entry of the branch recursively.
	Tree(ctx context.Context) ([]TreeEntry, error)
}
