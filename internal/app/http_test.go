package app

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/repocms/internal/auth"
)

func TestHTTPHandler_LoginAndCallback(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.github.AddUser("validcode", "tok", "alice")
	srv := httptest.NewServer(env.app.HTTPHandler())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	req, err := http.NewRequest("GET", srv.URL+"/callback?code=validcode&state=abc123", nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", auth.StateCookieName+"=abc123")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	names := map[string]string{}
	for _, c := range resp.Cookies() {
		names[c.Name] = c.Value
	}
	assert.NotEmpty(t, names["session"])
	assert.Contains(t, names, auth.StateCookieName)

	req, err = http.NewRequest("GET", srv.URL+"/api/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session", Value: names["session"]})
	resp, err = client.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"login":"alice"}`, string(body))
}

func TestHTTPHandler_BinaryUpload(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	srv := httptest.NewServer(env.app.HTTPHandler())
	defer srv.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "pixel.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\xff\xfe"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest("POST", srv.URL+"/api/upload-image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Cookie", env.cookieFor(t, "alice"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.True(t, strings.Contains(string(body), `pixel.png"`))
}
