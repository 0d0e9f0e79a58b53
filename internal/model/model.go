package model

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the payload of the signed session cookie.
type Session struct {
	Subject  string           `json:"subject"`
	IssuedAt *jwt.NumericDate `json:"issuedAt"`
}

// ThemeSetting is the editor theme preference as stored in DynamoDB.
type ThemeSetting struct {
	Key       string    `json:"setting_key" dynamodbav:"setting_key"`
	Value     string    `json:"value" dynamodbav:"value"`
	UpdatedBy string    `json:"updated_by,omitempty" dynamodbav:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// FileDescriptor is one entry of the content listing.
type FileDescriptor struct {
	Path string `json:"path"`
	SHA  string `json:"sha,omitempty"`
	Size int    `json:"size,omitempty"`
}

// Me is the response of GET /api/me.
type Me struct {
	Login string `json:"login"`
}

// Content is the response of GET /api/content.
type Content struct {
	Path        string         `json:"path"`
	Content     string         `json:"content"`
	SHA         string         `json:"sha"`
	Encoding    string         `json:"encoding,omitempty"`
	FrontMatter map[string]any `json:"frontMatter,omitempty"`
	Visible     *bool          `json:"visible,omitempty"`
	Approved    *bool          `json:"approved,omitempty"`
}

// WriteResponse is returned by every successful write.
type WriteResponse struct {
	Path   string `json:"path"`
	SHA    string `json:"sha"`
	Commit string `json:"commit,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Upload is the response of POST /api/upload-image. All URLs are site-relative.
type Upload struct {
	Path      string `json:"path"`
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
	WebP      string `json:"webp"`
	Thumb     string `json:"thumb"`
}

// Theme is the body and response of /api/theme.
type Theme struct {
	Theme string `json:"theme"`
}

// Preview is the response of POST /api/preview.
type Preview struct {
	HTML        string         `json:"html"`
	FrontMatter map[string]any `json:"frontMatter,omitempty"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details,omitempty"`
}
