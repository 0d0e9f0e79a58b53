package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/repocms/internal/markdown"
	"github.com/jun/repocms/internal/model"
)

func TestPreviewHandler(t *testing.T) {
	h := NewPreviewHandler(markdown.NewRenderer())

	resp, err := h.Preview(context.Background(), request("POST", "/api/preview", `{"content":"---\ntitle: Hi\n---\n# Heading\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"}`))
	require.NoError(t, err)
	got := decodeBody[model.Preview](t, resp)
	assert.Contains(t, got.HTML, "<h1")
	assert.Contains(t, got.HTML, "<table>")
	assert.NotContains(t, got.HTML, "title: Hi")
	assert.Equal(t, "Hi", got.FrontMatter["title"])

	_, err = h.Preview(context.Background(), request("POST", "/api/preview", `{}`))
	assert.Equal(t, http.StatusBadRequest, ErrorResponse(err).StatusCode)
}
