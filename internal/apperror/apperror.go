// Package apperror models the settlement engine's error kinds (spec §7)
// as a single typed error rather than a hierarchy of error structs.
package apperror

import "net/http"

// Kind classifies an error for HTTP-status mapping and logging, independent
// of its message.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindMalformed            Kind = "malformed"
	KindNotImplemented       Kind = "not_implemented"
)

// Error is the engine-wide error type. Use the constructors below rather
// than building one directly.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to the status code the HTTP edge returns.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindMalformed, KindNotImplemented:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func new(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func InvalidInput(msg string) *Error              { return new(KindInvalidInput, msg, nil) }
func Forbidden(msg string) *Error                 { return new(KindForbidden, msg, nil) }
func NotFound(msg string) *Error                  { return new(KindNotFound, msg, nil) }
func Conflict(msg string) *Error                  { return new(KindConflict, msg, nil) }
func UpstreamUnavailable(msg string, cause error) *Error { return new(KindUpstreamUnavailable, msg, cause) }
func Malformed(msg string) *Error                 { return new(KindMalformed, msg, nil) }
func NotImplemented(msg string) *Error            { return new(KindNotImplemented, msg, nil) }

// WithDetails attaches structured context surfaced in the JSON error body.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether err itself is an *Error of the given kind. Wrapped
// errors are not unwrapped.
func Is(err error, kind Kind) bool {
	ae, ok := err.(*Error)
	return ok && ae.Kind == kind
}
