// Package markdown renders editor previews and reads YAML front matter.
package markdown

import (
	"bytes"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/jun/repocms/internal/model"
)

// codeStyle is the chroma style whose class names the admin stylesheet ships.
const codeStyle = "github"

// Renderer turns Markdown into HTML for the admin preview. Raw HTML in the
// source is omitted and dangerous link schemes are dropped.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer with GFM, footnotes, class-based code
// highlighting and heading IDs.
func NewRenderer() *Renderer {
	code := highlighting.NewHighlighting(
		highlighting.WithStyle(codeStyle),
		highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
	)
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote, code),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)}
}

// Render converts Markdown to HTML. Front matter is not stripped.
func (r *Renderer) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Preview splits off the front matter and renders the body.
func (r *Renderer) Preview(source []byte) (*model.Preview, error) {
	fm, body := SplitFrontMatter(source)
	out, err := r.Render(body)
	if err != nil {
		return nil, err
	}
	return &model.Preview{HTML: string(out), FrontMatter: fm}, nil
}
