package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/picklepals/picklepals/internal/validate"
)

// StatusSessionExpired is returned when a credential is recognized but stale.
const StatusSessionExpired = 498

// Error is the single error type handlers return. Status maps directly to
// the HTTP status line.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(status int, format string, args ...any) error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports malformed or invalid parameters (400).
func BadRequest(format string, args ...any) error {
	return newError(http.StatusBadRequest, format, args...)
}

// Unauthorized reports a missing, unknown or rejected credential (401).
func Unauthorized(format string, args ...any) error {
	return newError(http.StatusUnauthorized, format, args...)
}

// Forbidden reports an authenticated caller without the needed permission (403).
func Forbidden(format string, args ...any) error {
	return newError(http.StatusForbidden, format, args...)
}

// NotFound reports an unknown endpoint or a missing record (404).
func NotFound(format string, args ...any) error {
	return newError(http.StatusNotFound, format, args...)
}

// Teapot is only returned by the coffee endpoint (418).
func Teapot(format string, args ...any) error {
	return newError(http.StatusTeapot, format, args...)
}

// SessionExpired reports a known access token past its lifetime (498).
func SessionExpired(format string, args ...any) error {
	return newError(StatusSessionExpired, format, args...)
}

// StatusOf returns the status carried by err, or 500 for anything that is not an *Error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// translate maps validation failures to BadRequest and leaves other errors alone.
func translate(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var policyErr *validate.Error
	if errors.As(err, &policyErr) {
		return BadRequest("%s", policyErr.Error())
	}
	var coercionErr *validate.CoercionError
	if errors.As(err, &coercionErr) {
		return BadRequest("parameter %q must be %s", coercionErr.Field, coercionErr.Target)
	}
	return err
}
