package app

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// maxLocalBody bounds request bodies read by the local server.
const maxLocalBody = 32 << 20

// HTTPHandler adapts the App to net/http for local development. Requests are
// translated into API Gateway proxy events, the same shape Lambda delivers.
func (a *App) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxLocalBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		resp, err := a.HandleRequest(r.Context(), toEvent(r, body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeEvent(w, resp)
	})
}

func toEvent(r *http.Request, body []byte) events.APIGatewayProxyRequest {
	req := events.APIGatewayProxyRequest{
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         map[string]string{},
		MultiValueHeaders:               map[string][]string{},
		QueryStringParameters:           map[string]string{},
		MultiValueQueryStringParameters: map[string][]string{},
	}
	for k, v := range r.Header {
		req.Headers[k] = strings.Join(v, ",")
		req.MultiValueHeaders[k] = v
	}
	// Browsers send one Cookie header; HTTP/2 may split it.
	if c := r.Header.Values("Cookie"); len(c) > 1 {
		req.Headers["Cookie"] = strings.Join(c, "; ")
	}
	for k, v := range r.URL.Query() {
		req.QueryStringParameters[k] = v[0]
		req.MultiValueQueryStringParameters[k] = v
	}

	if utf8.Valid(body) {
		req.Body = string(body)
	} else {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	}
	return req
}

func writeEvent(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if resp.IsBase64Encoded {
		if raw, err := base64.StdEncoding.DecodeString(resp.Body); err == nil {
			_, _ = w.Write(raw)
			return
		}
	}
	_, _ = io.WriteString(w, resp.Body)
}
