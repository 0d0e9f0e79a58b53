// Package githubtest provides an in-process fake of the GitHub endpoints the
// CMS talks to: the OAuth token exchange, /user, the Contents API and the Git
// Trees and Blobs APIs. Repository state lives in a memory.Store.
package githubtest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jun/repocms/internal/adapter"
	"github.com/jun/repocms/internal/adapter/memory"
	apperrors "github.com/jun/repocms/internal/errors"
)

// Server is a fake GitHub. Start it with NewServer and Close it when done.
type Server struct {
	*httptest.Server

	Store  *memory.Store
	Owner  string
	Repo   string
	Branch string

	// LargeFileThreshold makes the contents endpoint omit bodies of files
	// larger than this many bytes, as GitHub does above 1 MB.
	LargeFileThreshold int

	mu       sync.Mutex
	codes    map[string]string
	users    map[string]string
	failures []failure
	requests atomic.Int64
}

type failure struct {
	status int
	body   string
}

// NewServer starts a fake serving owner/repo@branch from store.
func NewServer(owner, repo, branch string, store *memory.Store) *Server {
	s := &Server{
		Store:  store,
		Owner:  owner,
		Repo:   repo,
		Branch: branch,
		codes:  make(map[string]string),
		users:  make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", s.handleToken)
	mux.HandleFunc("GET /user", s.handleUser)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", s.handleGetContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", s.handlePutContents)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/contents/{path...}", s.handleDeleteContents)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/trees/{ref}", s.handleTree)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/blobs/{sha}", s.handleBlob)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if f, ok := s.nextFailure(); ok {
			writeRaw(w, f.status, f.body)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

// APIURL is the REST base URL to hand to go-github.
func (s *Server) APIURL() string { return s.URL + "/" }

// AuthURL is the OAuth authorize endpoint.
func (s *Server) AuthURL() string { return s.URL + "/login/oauth/authorize" }

// TokenURL is the OAuth token endpoint.
func (s *Server) TokenURL() string { return s.URL + "/login/oauth/access_token" }

// AddUser registers an authorization code that exchanges for token, and the
// login /user reports for that token.
func (s *Server) AddUser(code, token, login string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = token
	s.users[token] = login
}

// FailNext makes the next request answer with status and a raw JSON body.
// Calls queue up.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int { return int(s.requests.Load()) }

func (s *Server) nextFailure() (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return failure{}, false
	}
	f := s.failures[0]
	s.failures = s.failures[1:]
	return f, true
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	s.mu.Lock()
	token, ok := s.codes[r.PostForm.Get("code")]
	s.mu.Unlock()
	if !ok {
		// GitHub reports a bad code with 200 and an error field.
		writeJSON(w, http.StatusOK, map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
		"scope":        "read:user",
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	login, ok := s.users[token]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"login": login, "id": 1, "type": "User"})
}

func (s *Server) checkRepo(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("owner") != s.Owner || r.PathValue("repo") != s.Repo {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return false
	}
	return true
}

func (s *Server) handleGetContents(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}
	if ref := r.URL.Query().Get("ref"); ref != "" && ref != s.Branch {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No commit found for the ref " + ref})
		return
	}

	path := r.PathValue("path")
	f, err := s.Store.Get(r.Context(), path)
	if errors.Is(err, apperrors.ErrBadRequest) {
		s.writeDirectory(w, r, path)
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	body := fileJSON(f.Path, f.SHA, len(f.Content))
	if s.LargeFileThreshold > 0 && len(f.Content) > s.LargeFileThreshold {
		body["encoding"] = "none"
		body["content"] = ""
	} else {
		body["encoding"] = "base64"
		body["content"] = wrap(base64.StdEncoding.EncodeToString(f.Content), 60)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeDirectory(w http.ResponseWriter, r *http.Request, dir string) {
	entries, _ := s.Store.Tree(r.Context())
	prefix := strings.Trim(dir, "/") + "/"
	listing := []map[string]any{}
	for _, e := range entries {
		rest, ok := strings.CutPrefix(e.Path, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		item := fileJSON(e.Path, e.SHA, e.Size)
		if e.Type == "tree" {
			item["type"] = "dir"
		}
		listing = append(listing, item)
	}
	writeJSON(w, http.StatusOK, listing)
}

type fileOptions struct {
	Message string `json:"message"`
	Content []byte `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func (s *Server) decodeOptions(w http.ResponseWriter, r *http.Request) (fileOptions, bool) {
	var opts fileOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return opts, false
	}
	if opts.Branch != "" && opts.Branch != s.Branch {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Branch " + opts.Branch + " not found"})
		return opts, false
	}
	if opts.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Invalid request.\n\n\"message\" wasn't supplied.",
		})
		return opts, false
	}
	return opts, true
}

func (s *Server) handlePutContents(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}
	opts, ok := s.decodeOptions(w, r)
	if !ok {
		return
	}
	res, err := s.Store.Put(r.Context(), adapter.PutRequest{
		Path:    r.PathValue("path"),
		Content: opts.Content,
		Message: opts.Message,
		SHA:     opts.SHA,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	status := http.StatusOK
	if opts.SHA == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content": fileJSON(res.Path, res.SHA, len(opts.Content)),
		"commit":  commitJSON(s.URL, res.Commit),
	})
}

func (s *Server) handleDeleteContents(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}
	opts, ok := s.decodeOptions(w, r)
	if !ok {
		return
	}
	c, err := s.Store.Delete(r.Context(), r.PathValue("path"), opts.Message, opts.SHA)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content": nil,
		"commit":  commitJSON(s.URL, *c),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}
	if r.PathValue("ref") != s.Branch {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	entries, err := s.Store.Tree(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tree := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{"path": e.Path, "type": e.Type, "mode": "040000"}
		if e.Type == "blob" {
			item["mode"] = "100644"
			item["sha"] = e.SHA
			item["size"] = e.Size
		}
		tree = append(tree, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sha":       "0000000000000000000000000000000000000000",
		"tree":      tree,
		"truncated": false,
	})
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	if !s.checkRepo(w, r) {
		return
	}
	entries, _ := s.Store.Tree(r.Context())
	for _, e := range entries {
		if e.Type != "blob" || e.SHA != r.PathValue("sha") {
			continue
		}
		f, err := s.Store.Get(r.Context(), e.Path)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.github.raw")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(f.Content)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

// writeStoreError answers with the status GitHub uses for the error kind.
func writeStoreError(w http.ResponseWriter, err error) {
	e := apperrors.As(err)
	switch e.Kind {
	case apperrors.KindNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	case apperrors.KindConflict:
		if strings.Contains(e.Message, "wasn't supplied") {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"message": "Invalid request.\n\n\"sha\" wasn't supplied.",
			})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{"message": e.Message})
	case apperrors.KindBadRequest:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": e.Message})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": e.Error()})
	}
}

func fileJSON(path, sha string, size int) map[string]any {
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	return map[string]any{"type": "file", "name": name, "path": path, "sha": sha, "size": size}
}

func commitJSON(base string, c adapter.CommitInfo) map[string]any {
	return map[string]any{
		"sha":      c.SHA,
		"message":  c.Message,
		"html_url": base + "/commit/" + c.SHA,
	}
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
