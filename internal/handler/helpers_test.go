package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"github.com/jun/repocms/internal/model"
	"github.com/jun/repocms/internal/session"
)

func authed(ctx context.Context, login string) context.Context {
	return session.NewContext(ctx, &model.Session{Subject: login})
}

func request(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func withQuery(req events.APIGatewayProxyRequest, kv ...string) events.APIGatewayProxyRequest {
	req.QueryStringParameters = map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		req.QueryStringParameters[kv[i]] = kv[i+1]
	}
	return req
}

func decodeBody[T any](t *testing.T, resp Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &v), resp.Body)
	return v
}

// cookies parses the Set-Cookie directives of a response by name.
func cookies(resp Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	h := http.Header{"Set-Cookie": resp.MultiValueHeaders["Set-Cookie"]}
	for _, c := range (&http.Response{Header: h}).Cookies() {
		out[c.Name] = c
	}
	return out
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
