package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/repocms/internal/markdown"
)

// PreviewHandler renders unsaved Markdown for the editor.
type PreviewHandler struct {
	renderer *markdown.Renderer
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(r *markdown.Renderer) *PreviewHandler {
	return &PreviewHandler{renderer: r}
}

type previewBody struct {
	Content *string `json:"content"`
}

func (h *PreviewHandler) Preview(_ context.Context, req events.APIGatewayProxyRequest) (Response, error) {
	var body previewBody
	if err := decodeJSON(req, &body); err != nil {
		return Response{}, err
	}
	if body.Content == nil {
		return Response{}, missing("content")
	}

	out, err := h.renderer.Preview([]byte(*body.Content))
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, out)
}
