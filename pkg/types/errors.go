package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies negotiation failures for callers and the HTTP shell.
type ErrorKind string

const (
	KindBadInput         ErrorKind = "bad_input"
	KindBadToken         ErrorKind = "bad_token"
	KindNoSession        ErrorKind = "no_session"
	KindBusy             ErrorKind = "busy"
	KindOutOfOrder       ErrorKind = "out_of_order"
	KindSessionClosed    ErrorKind = "session_closed"
	KindValidationFailed ErrorKind = "validation_failed"
	KindCooldown         ErrorKind = "cooldown"
	KindRateLimited      ErrorKind = "rate_limited"
	KindDialogueFailed   ErrorKind = "dialogue_failed"
	KindDegraded         ErrorKind = "degraded"
	KindInternal         ErrorKind = "internal"
)

// Error is the domain error carried across component boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a domain error with the given kind.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapE builds a domain error wrapping an underlying cause.
func WrapE(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status code the HTTP shell returns.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindBadInput:
		return http.StatusBadRequest
	case KindBadToken:
		return http.StatusUnauthorized
	case KindNoSession:
		return http.StatusNotFound
	case KindBusy, KindOutOfOrder:
		return http.StatusConflict
	case KindSessionClosed:
		return http.StatusGone
	case KindValidationFailed:
		return http.StatusUnprocessableEntity
	case KindCooldown, KindRateLimited:
		return http.StatusTooManyRequests
	case KindDialogueFailed:
		return http.StatusBadGateway
	case KindDegraded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
