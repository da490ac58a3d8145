package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a relay failure.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindTooLarge         Kind = "too_large"
	KindUpstream         Kind = "upstream_failure"
	KindInternal         Kind = "internal"
	KindMethodNotAllowed Kind = "method_not_allowed"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTooLarge         = &Error{Kind: KindTooLarge}
	ErrUpstream         = &Error{Kind: KindUpstream}
	ErrInternal         = &Error{Kind: KindInternal}
	ErrMethodNotAllowed = &Error{Kind: KindMethodNotAllowed}
)

// Error is the failure variant of a relay outcome.
type Error struct {
	Kind Kind
	Err  error
}

// Wrap builds an *Error of the given kind around err.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so wrapped errors match the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode maps the kind onto the HTTP status returned to callers.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Message is the human-readable text shown to callers.
// Internal and upstream failures embed the underlying error text.
func (e *Error) Message() string {
	switch e.Kind {
	case KindInvalidInput:
		return "path and question are required"
	case KindNotFound:
		return "CSV file not found"
	case KindTooLarge:
		return "CSV file too large"
	case KindMethodNotAllowed:
		return "method not allowed"
	}
	detail := "unknown error"
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return "internal server error: " + detail
}

// AsError converts any error into an *Error, treating foreign errors as internal.
func AsError(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return Wrap(KindInternal, err)
}
