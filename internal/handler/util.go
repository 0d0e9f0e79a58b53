package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/model"
)

// Response is the API Gateway proxy response every handler returns.
type Response = events.APIGatewayProxyResponse

// GetHeader returns a request header, ignoring case. Multi-value headers are
// consulted when the single-value map lacks the name.
func GetHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, v := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return strings.Join(v, "; ")
		}
	}
	return ""
}

// queryParam returns a query string value, preferring the single-value map.
func queryParam(req events.APIGatewayProxyRequest, name string) string {
	if v, ok := req.QueryStringParameters[name]; ok {
		return v
	}
	if v := req.MultiValueQueryStringParameters[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// requestBody returns the raw body, undoing API Gateway's base64 encoding.
func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, apperrors.BadRequest("body is not valid base64")
	}
	return b, nil
}

// decodeJSON strictly decodes a JSON object body into dst. Unknown fields
// and trailing data are rejected.
func decodeJSON(req events.APIGatewayProxyRequest, dst any) error {
	body, err := requestBody(req)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.BadRequest("request body is required")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperrors.BadRequest(fmt.Sprintf("field %q must be a %s", typeErr.Field, typeErr.Type))
		}
		return apperrors.Wrap(apperrors.KindBadRequest, err, "invalid JSON body")
	}
	if _, err := dec.Token(); err != io.EOF {
		return apperrors.BadRequest("invalid JSON body: trailing data")
	}
	return nil
}

// missing reports a required body field that was absent or blank.
func missing(field string) error {
	return apperrors.BadRequest(fmt.Sprintf("field %q is required", field))
}

// JSON marshals v into a response with the given status.
func JSON(status int, v any) (Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.KindInternal, err, "marshal response")
	}
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":  "application/json; charset=utf-8",
			"Cache-Control": "no-store",
		},
		Body: string(body),
	}, nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindBadRequest, apperrors.KindCSRFMismatch:
		return http.StatusBadRequest
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse renders err as the JSON error body. Internal errors never
// leak their cause.
func ErrorResponse(err error) Response {
	e := apperrors.As(err)
	body := model.ErrorBody{Error: e.Message, Code: string(e.Kind), Details: e.Details}
	if e.Kind == apperrors.KindInternal {
		body = model.ErrorBody{Error: "internal error", Code: string(e.Kind)}
	}
	resp, mErr := JSON(StatusFor(e.Kind), body)
	if mErr != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
			Body:       `{"error":"internal error","code":"internal_error"}`,
		}
	}
	return resp
}

// SetCookies appends Set-Cookie directives. They go into MultiValueHeaders
// because a response may carry more than one.
func SetCookies(resp *Response, cookies ...*http.Cookie) {
	if resp.MultiValueHeaders == nil {
		resp.MultiValueHeaders = map[string][]string{}
	}
	for _, c := range cookies {
		if c == nil {
			continue
		}
		resp.MultiValueHeaders["Set-Cookie"] = append(resp.MultiValueHeaders["Set-Cookie"], c.String())
	}
}

// redirect builds a 302 to location.
func redirect(location string) Response {
	return Response{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location":      location,
			"Cache-Control": "no-store",
		},
	}
}
