package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/jun/repocms/internal/errors"
)

const (
	cacheAdmin  = "no-store"
	cacheAssets = "public, max-age=300, must-revalidate"
)

// StaticHandler serves the admin UI and site assets from a file system.
type StaticHandler struct {
	files fs.FS
}

// NewStaticHandler creates a StaticHandler over files, normally os.DirFS(STATIC_DIR).
func NewStaticHandler(files fs.FS) *StaticHandler {
	return &StaticHandler{files: files}
}

// Serve answers GET and HEAD for any path not claimed by a route.
func (h *StaticHandler) Serve(_ context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	name, ok := h.resolve(req.Path)
	if !ok {
		return Response{}, apperrors.New(apperrors.KindNotFound, "Not found")
	}
	data, err := fs.ReadFile(h.files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Response{}, apperrors.New(apperrors.KindNotFound, "Not found")
		}
		return Response{}, apperrors.Wrap(apperrors.KindInternal, err, "read asset")
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	resp := Response{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":  ctype,
			"Cache-Control": CacheControl(req.Path),
		},
	}
	if req.HTTPMethod == http.MethodHead {
		return resp, nil
	}
	if isText(ctype) && utf8.Valid(data) {
		resp.Body = string(data)
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(data)
		resp.IsBase64Encoded = true
	}
	return resp, nil
}

// CacheControl returns the caching policy for a static path. The admin UI
// must always be fetched fresh.
func CacheControl(urlPath string) string {
	if urlPath == "/admin" || strings.HasPrefix(urlPath, "/admin/") {
		return cacheAdmin
	}
	return cacheAssets
}

// resolve maps a URL path to a file name, falling back to index.html for
// directories.
func (h *StaticHandler) resolve(urlPath string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) {
		return "", false
	}
	info, err := fs.Stat(h.files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path.Ext(name) == "" {
			// Pretty URLs: /about serves about.html when present.
			if _, err := fs.Stat(h.files, name+".html"); err == nil {
				return name + ".html", true
			}
		}
		return name, true
	}
	if info.IsDir() {
		return path.Join(name, "index.html"), true
	}
	return name, true
}

func isText(ctype string) bool {
	mt, _, _ := mime.ParseMediaType(ctype)
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case mt == "application/javascript", mt == "application/json", mt == "image/svg+xml", mt == "application/xml":
		return true
	}
	return false
}
