package githubrepo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/repocms/internal/adapter"
	"github.com/jun/repocms/internal/adapter/githubrepo"
	"github.com/jun/repocms/internal/adapter/githubrepo/githubtest"
	"github.com/jun/repocms/internal/adapter/memory"
	apperrors "github.com/jun/repocms/internal/errors"
)

func newStore(t *testing.T, files map[string]string) (*githubrepo.Store, *githubtest.Server) {
	t.Helper()
	srv := githubtest.NewServer("acme", "site", "main", memory.New(memory.WithFiles(files)))
	t.Cleanup(srv.Close)

	client, err := githubrepo.NewClient("repo-token", srv.APIURL())
	require.NoError(t, err)
	store := githubrepo.New(client, githubrepo.Repo{Owner: "acme", Name: "site", Branch: "main"}, zerolog.Nop())
	return store, srv
}

func TestStore_Get(t *testing.T) {
	store, _ := newStore(t, map[string]string{"content/post.md": "# Hello\n\nWorld"})

	f, err := store.Get(context.Background(), "content/post.md")
	require.NoError(t, err)
	assert.Equal(t, "content/post.md", f.Path)
	assert.Equal(t, "# Hello\n\nWorld", string(f.Content))
	assert.Equal(t, memory.BlobSHA([]byte("# Hello\n\nWorld")), f.SHA)
}

func TestStore_Get_NotFound(t *testing.T) {
	store, _ := newStore(t, nil)

	_, err := store.Get(context.Background(), "content/missing.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrNotFound)

	var e *apperrors.Error
	require.ErrorAs(t, err, &e)
	var details map[string]any
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, "Not Found", details["message"])
	assert.EqualValues(t, http.StatusNotFound, details["status"])
}

func TestStore_Get_Directory(t *testing.T) {
	store, _ := newStore(t, map[string]string{"content/blog/a.md": "a"})

	_, err := store.Get(context.Background(), "content/blog")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestStore_Get_LargeFileUsesBlobAPI(t *testing.T) {
	big := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 512)
	store, srv := newStore(t, map[string]string{"images/big.png": string(big)})
	srv.LargeFileThreshold = 1024

	f, err := store.Get(context.Background(), "images/big.png")
	require.NoError(t, err)
	assert.Equal(t, big, f.Content)
}

func TestStore_Get_BinaryRoundTrip(t *testing.T) {
	store, _ := newStore(t, nil)
	payload := []byte{0x00, 0xff, 0x10, 0x80, '\n', 0x7f}

	res, err := store.Put(context.Background(), adapter.PutRequest{
		Path: "images/2024/05/01/dot.png", Content: payload, Message: "upload",
	})
	require.NoError(t, err)

	f, err := store.Get(context.Background(), "images/2024/05/01/dot.png")
	require.NoError(t, err)
	assert.Equal(t, payload, f.Content)
	assert.Equal(t, res.SHA, f.SHA)
}

func TestStore_Put_CreateAndUpdate(t *testing.T) {
	store, _ := newStore(t, nil)
	ctx := context.Background()

	created, err := store.Put(ctx, adapter.PutRequest{Path: "content/new.md", Content: []byte("v1"), Message: "Create content/new.md"})
	require.NoError(t, err)
	assert.Equal(t, "content/new.md", created.Path)
	assert.Equal(t, memory.BlobSHA([]byte("v1")), created.SHA)
	assert.NotEmpty(t, created.Commit.SHA)
	assert.Equal(t, "Create content/new.md", created.Commit.Message)
	assert.Contains(t, created.Commit.URL, created.Commit.SHA)

	updated, err := store.Put(ctx, adapter.PutRequest{Path: "content/new.md", Content: []byte("v2"), Message: "edit", SHA: created.SHA})
	require.NoError(t, err)
	assert.Equal(t, memory.BlobSHA([]byte("v2")), updated.SHA)
}

func TestStore_Put_Conflicts(t *testing.T) {
	store, _ := newStore(t, map[string]string{"content/a.md": "a"})
	ctx := context.Background()

	// 422 "sha wasn't supplied"
	_, err := store.Put(ctx, adapter.PutRequest{Path: "content/a.md", Content: []byte("b"), Message: "m"})
	assert.ErrorIs(t, err, adapter.ErrConflict)

	// 409 stale sha
	_, err = store.Put(ctx, adapter.PutRequest{Path: "content/a.md", Content: []byte("b"), Message: "m", SHA: memory.BlobSHA([]byte("zzz"))})
	assert.ErrorIs(t, err, adapter.ErrConflict)
}

func TestStore_UpstreamErrors(t *testing.T) {
	store, srv := newStore(t, map[string]string{"content/a.md": "a"})
	ctx := context.Background()

	srv.FailNext(http.StatusInternalServerError, `{"message":"Server Error"}`)
	_, err := store.Get(ctx, "content/a.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)

	var e *apperrors.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, string(e.Details), "Server Error")

	srv.FailNext(http.StatusUnprocessableEntity, `{"message":"Validation Failed","errors":[{"resource":"Content","field":"path","code":"invalid"}]}`)
	_, err = store.Put(ctx, adapter.PutRequest{Path: "content/b.md", Content: []byte("b"), Message: "m"})
	assert.ErrorIs(t, err, apperrors.ErrUpstream, "422 unrelated to sha is not a conflict")

	srv.FailNext(http.StatusUnprocessableEntity, `{"message":"Validation Failed","errors":[{"resource":"Content","field":"sha","code":"invalid"}]}`)
	_, err = store.Put(ctx, adapter.PutRequest{Path: "content/b.md", Content: []byte("b"), Message: "m"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestStore_NoRetries(t *testing.T) {
	store, srv := newStore(t, nil)

	srv.FailNext(http.StatusBadGateway, `{"message":"Bad Gateway"}`)
	before := srv.Requests()
	_, err := store.Tree(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Equal(t, before+1, srv.Requests())
}

func TestStore_Delete(t *testing.T) {
	store, srv := newStore(t, map[string]string{"content/a.md": "a"})
	ctx := context.Background()

	_, err := store.Delete(ctx, "content/a.md", "rm", memory.BlobSHA([]byte("stale")))
	assert.ErrorIs(t, err, adapter.ErrConflict)

	c, err := store.Delete(ctx, "content/a.md", "rm", memory.BlobSHA([]byte("a")))
	require.NoError(t, err)
	assert.Equal(t, "rm", c.Message)

	_, err = srv.Store.Get(ctx, "content/a.md")
	assert.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestStore_Tree(t *testing.T) {
	store, _ := newStore(t, map[string]string{
		"content/index.md":  "home",
		"content/blog/a.md": "a",
		"static/app.js":     "js",
	})

	entries, err := store.Tree(context.Background())
	require.NoError(t, err)

	byPath := make(map[string]adapter.TreeEntry)
	for _, e := range entries {
		byPath[e.Path] = e
	}
	assert.Equal(t, "blob", byPath["content/index.md"].Type)
	assert.Equal(t, memory.BlobSHA([]byte("home")), byPath["content/index.md"].SHA)
	assert.Equal(t, 4, byPath["content/index.md"].Size)
	assert.Equal(t, "tree", byPath["content/blog"].Type)
	assert.Contains(t, byPath, "static/app.js")
}

func TestStore_Tree_EmptyRepository(t *testing.T) {
	store, srv := newStore(t, nil)
	srv.FailNext(http.StatusConflict, `{"message":"Git Repository is empty."}`)

	entries, err := store.Tree(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
