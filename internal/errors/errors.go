// Package errors defines the error taxonomy shared by the gateway, the OAuth
// flow and the router. Every failure that reaches a client is one of these
// kinds.
package errors

import (
	"encoding/json"
	"errors"
)

// Kind classifies an error for status mapping and the JSON "code" field.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindCSRFMismatch Kind = "csrf_mismatch"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUpstream     Kind = "upstream_error"
	KindInternal     Kind = "internal_error"
)

// Sentinels. errors.Is matches any *Error of the same kind against these.
var (
	ErrBadRequest   = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrCSRFMismatch = &Error{Kind: KindCSRFMismatch, Message: "invalid oauth state"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrUpstream     = &Error{Kind: KindUpstream, Message: "upstream error"}
	ErrInternal     = &Error{Kind: KindInternal, Message: "internal error"}
)

// Error is a classified error with an optional machine-readable payload.
type Error struct {
	Kind    Kind
	Message string
	// Details is passed through to the client, e.g. GitHub's error body.
	Details json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithDetails attaches v, marshalled to JSON, as the error's details.
// Raw JSON bytes are kept as is.
func (e *Error) WithDetails(v any) *Error {
	switch d := v.(type) {
	case nil:
		return e
	case json.RawMessage:
		if json.Valid(d) {
			e.Details = d
		}
	case []byte:
		if json.Valid(d) {
			e.Details = d
		}
	default:
		if b, err := json.Marshal(d); err == nil {
			e.Details = b
		}
	}
	return e
}

// New returns an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// BadRequest is shorthand for New(KindBadRequest, msg).
func BadRequest(msg string) *Error { return New(KindBadRequest, msg) }

// Upstream is shorthand for Wrap(KindUpstream, err, msg).
func Upstream(err error, msg string) *Error { return Wrap(KindUpstream, err, msg) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain. Unclassified errors are wrapped
// as internal errors.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, err, "internal error")
}
