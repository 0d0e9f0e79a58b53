package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/repocms/internal/adapter"
	"github.com/jun/repocms/internal/content"
	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/markdown"
	"github.com/jun/repocms/internal/model"
)

// DefaultMaxUploadBytes caps image uploads when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// ContentHandler serves the /api content routes.
type ContentHandler struct {
	gateway        *content.Gateway
	maxUploadBytes int64
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(g *content.Gateway, maxUploadBytes int64) *ContentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ContentHandler{gateway: g, maxUploadBytes: maxUploadBytes}
}

// ListFiles returns the content files, optionally filtered by ?q=.
func (h *ContentHandler) ListFiles(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	files, err := h.gateway.List(ctx, queryParam(req, "q"))
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, files)
}

// GetContent returns one file. Markdown files also carry their front matter.
func (h *ContentHandler) GetContent(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	f, err := h.gateway.Read(ctx, queryParam(req, "path"))
	if err != nil {
		return Response{}, err
	}

	out := model.Content{Path: f.Path, SHA: f.SHA}
	if utf8.Valid(f.Content) {
		out.Content = string(f.Content)
		out.Encoding = "utf-8"
	} else {
		out.Content = base64.StdEncoding.EncodeToString(f.Content)
		out.Encoding = "base64"
	}

	if out.Encoding == "utf-8" && strings.EqualFold(path.Ext(f.Path), ".md") {
		if fm, _ := markdown.SplitFrontMatter(f.Content); fm != nil {
			visible, approved := markdown.IsVisible(fm)
			out.FrontMatter = fm
			out.Visible = &visible
			out.Approved = &approved
		}
	}
	return JSON(http.StatusOK, out)
}

type putContentBody struct {
	Content *string `json:"content"`
	Message string  `json:"message"`
	SHA     string  `json:"sha"`
}

// PutContent creates or updates the file at ?path=. A supplied sha must match
// the current version.
func (h *ContentHandler) PutContent(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	var body putContentBody
	if err := decodeJSON(req, &body); err != nil {
		return Response{}, err
	}
	if body.Content == nil {
		return Response{}, missing("content")
	}

	res, err := h.gateway.Write(ctx, content.WriteRequest{
		Path:    queryParam(req, "path"),
		Content: []byte(*body.Content),
		Message: body.Message,
		SHA:     strings.TrimSpace(body.SHA),
	})
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, writeResponse(res))
}

// DeleteContent removes the file at ?path=, guarded by the optional ?sha=.
func (h *ContentHandler) DeleteContent(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	p := queryParam(req, "path")
	c, err := h.gateway.Delete(ctx, p, queryParam(req, "sha"), queryParam(req, "message"))
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, model.WriteResponse{Path: strings.TrimSpace(p), Commit: c.SHA, URL: c.URL})
}

type newFileBody struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
	Message string  `json:"message"`
}

// NewFile creates a file that must not exist yet.
func (h *ContentHandler) NewFile(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	var body newFileBody
	if err := decodeJSON(req, &body); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(body.Path) == "" {
		return Response{}, missing("path")
	}
	if body.Content == nil {
		return Response{}, missing("content")
	}

	res, err := h.gateway.Write(ctx, content.WriteRequest{
		Path:    body.Path,
		Content: []byte(*body.Content),
		Message: body.Message,
		Create:  true,
	})
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusCreated, writeResponse(res))
}

type newFolderBody struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// NewFolder creates a directory by committing a placeholder file into it.
func (h *ContentHandler) NewFolder(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	var body newFolderBody
	if err := decodeJSON(req, &body); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(body.Path) == "" {
		return Response{}, missing("path")
	}

	res, err := h.gateway.CreateFolder(ctx, body.Path, body.Message)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusCreated, writeResponse(res))
}

// UploadImage stores the multipart "file" part under the upload root.
func (h *ContentHandler) UploadImage(ctx context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	mediaType, params, err := mime.ParseMediaType(GetHeader(req, "Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return Response{}, apperrors.BadRequest("expected multipart/form-data")
	}
	raw, err := requestBody(req)
	if err != nil {
		return Response{}, err
	}

	upload, err := h.readUpload(multipart.NewReader(bytes.NewReader(raw), params["boundary"]))
	if err != nil {
		return Response{}, err
	}

	res, err := h.gateway.UploadBinary(ctx, upload.filename, upload.data, upload.message)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusCreated, res)
}

type uploadForm struct {
	filename string
	data     []byte
	message  string
}

func (h *ContentHandler) readUpload(mr *multipart.Reader) (*uploadForm, error) {
	form := &uploadForm{}
	found := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "malformed multipart body")
		}

		switch part.FormName() {
		case "file":
			data, err := io.ReadAll(io.LimitReader(part, h.maxUploadBytes+1))
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "read upload")
			}
			if int64(len(data)) > h.maxUploadBytes {
				return nil, apperrors.BadRequest(fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
			}
			form.filename, form.data, found = part.FileName(), data, true
		case "message":
			msg, err := io.ReadAll(io.LimitReader(part, 1024))
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "read message")
			}
			form.message = strings.TrimSpace(string(msg))
		}
		part.Close()
	}

	if !found {
		return nil, missing("file")
	}
	if len(form.data) == 0 {
		return nil, apperrors.BadRequest("file is empty")
	}
	if !isImage(form.filename, form.data) {
		return nil, apperrors.BadRequest("file is not an image")
	}
	return form, nil
}

// isImage sniffs the content. SVG is text to the sniffer, so it is accepted
// by extension.
func isImage(filename string, data []byte) bool {
	if strings.EqualFold(path.Ext(filename), ".svg") {
		return bytes.Contains(data, []byte("<svg"))
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

func writeResponse(res *adapter.WriteResult) model.WriteResponse {
	return model.WriteResponse{
		Path:   res.Path,
		SHA:    res.SHA,
		Commit: res.Commit.SHA,
		URL:    res.Commit.URL,
	}
}
