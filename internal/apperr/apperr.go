// Package apperr defines the error kinds surfaced to API clients and how they
// map onto HTTP responses.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the client.
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	ForgerySuspected
	Forbidden
	ValidationFailed
	RateLimited
	UpstreamFailure
	NotFound
	Conflict
)

var kindStatus = map[Kind]int{
	Internal:         http.StatusInternalServerError,
	Unauthenticated:  http.StatusUnauthorized,
	ForgerySuspected: http.StatusForbidden,
	Forbidden:        http.StatusForbidden,
	ValidationFailed: http.StatusBadRequest,
	RateLimited:      http.StatusTooManyRequests,
	UpstreamFailure:  http.StatusInternalServerError,
	NotFound:         http.StatusNotFound,
	Conflict:         http.StatusConflict,
}

var kindMessage = map[Kind]string{
	Internal:         "internal server error",
	Unauthenticated:  "unauthorized",
	ForgerySuspected: "invalid CSRF token",
	Forbidden:        "permission denied",
	ValidationFailed: "invalid request",
	RateLimited:      "too many requests, slow down",
	UpstreamFailure:  "provisioning failed",
	NotFound:         "not found",
	Conflict:         "already exists",
}

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case ForgerySuspected:
		return "forgery_suspected"
	case Forbidden:
		return "forbidden"
	case ValidationFailed:
		return "validation_failed"
	case RateLimited:
		return "rate_limited"
	case UpstreamFailure:
		return "upstream_failure"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a client-safe message. Err holds the cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = kindMessage[e.Kind]
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so errors.Is(err, apperr.ErrForbidden) works
// for any Forbidden error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// New returns an error of the given kind with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause that is logged but never shown to the client.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Kind sentinels for errors.Is.
var (
	ErrUnauthenticated  = &Error{Kind: Unauthenticated}
	ErrForgerySuspected = &Error{Kind: ForgerySuspected}
	ErrForbidden        = &Error{Kind: Forbidden}
	ErrValidation       = &Error{Kind: ValidationFailed}
	ErrRateLimited      = &Error{Kind: RateLimited}
	ErrUpstream         = &Error{Kind: UpstreamFailure}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrConflict         = &Error{Kind: Conflict}
)

// KindOf returns the kind of err, Internal for anything not built by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	return kindStatus[KindOf(err)]
}

// Message returns the text that may be shown to the client.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == Internal || e.Kind == UpstreamFailure {
			// Causes of these never leave the process.
			return kindMessage[e.Kind]
		}
		if e.Message != "" {
			return e.Message
		}
		return kindMessage[e.Kind]
	}
	return kindMessage[Internal]
}
