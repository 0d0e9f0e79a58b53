package app

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/repocms/internal/handler"
)

// HandlerFunc is the signature shared by every route handler.
type HandlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Route binds a method and exact path to a handler.
type Route struct {
	Method  string
	Path    string
	Auth    bool
	Handler HandlerFunc
}

// table indexes routes by path, then method.
type table map[string]map[string]Route

func newTable(routes []Route) table {
	t := table{}
	for _, r := range routes {
		if t[r.Path] == nil {
			t[r.Path] = map[string]Route{}
		}
		t[r.Path][r.Method] = r
	}
	return t
}

// lookup returns the route for method and path. When the path is known but
// the method is not, it returns the allowed methods instead.
func (t table) lookup(method, path string) (Route, []string, bool) {
	methods, ok := t[path]
	if !ok {
		return Route{}, nil, false
	}
	if r, ok := methods[method]; ok {
		return r, nil, true
	}
	if r, ok := methods[http.MethodGet]; ok && method == http.MethodHead {
		return r, nil, true
	}
	allow := make([]string, 0, len(methods)+1)
	for m := range methods {
		allow = append(allow, m)
	}
	allow = append(allow, http.MethodOptions)
	sort.Strings(allow)
	return Route{}, allow, true
}

func (a *App) routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/login", Handler: a.authHandler.Login},
		{Method: http.MethodGet, Path: "/callback", Handler: a.authHandler.Callback},
		{Method: http.MethodPost, Path: "/logout", Handler: a.authHandler.Logout},

		{Method: http.MethodGet, Path: "/api/me", Auth: true, Handler: a.authHandler.Me},
		{Method: http.MethodGet, Path: "/api/files", Auth: true, Handler: a.contentHandler.ListFiles},
		{Method: http.MethodGet, Path: "/api/content", Auth: true, Handler: a.contentHandler.GetContent},
		{Method: http.MethodPut, Path: "/api/content", Auth: true, Handler: a.contentHandler.PutContent},
		{Method: http.MethodDelete, Path: "/api/content", Auth: true, Handler: a.contentHandler.DeleteContent},
		{Method: http.MethodPost, Path: "/api/new-file", Auth: true, Handler: a.contentHandler.NewFile},
		{Method: http.MethodPost, Path: "/api/new-folder", Auth: true, Handler: a.contentHandler.NewFolder},
		{Method: http.MethodPost, Path: "/api/upload-image", Auth: true, Handler: a.contentHandler.UploadImage},
		{Method: http.MethodGet, Path: "/api/theme", Auth: true, Handler: a.themeHandler.GetTheme},
		{Method: http.MethodPut, Path: "/api/theme", Auth: true, Handler: a.themeHandler.PutTheme},
		{Method: http.MethodPost, Path: "/api/preview", Auth: true, Handler: a.previewHandler.Preview},
	}
}

func isAPI(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// corsHeaders adds the CORS headers for the configured origin.
func (a *App) corsHeaders(resp *events.APIGatewayProxyResponse) {
	if a.allowedOrigin == "" {
		return
	}
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Access-Control-Allow-Origin"] = a.allowedOrigin
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,X-Correlation-ID"
	resp.Headers["Vary"] = "Origin"
}

func plainStatus(status int, msg string) events.APIGatewayProxyResponse {
	resp, _ := handler.JSON(status, map[string]string{"error": msg, "code": strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))})
	return resp
}
