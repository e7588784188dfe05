// Package access carries the outcomes that short-circuit a request before
// any form processing: denial, missing entities and malformed parameters.
// Each outcome knows the HTTP status it maps to.
package access

import (
	"errors"
	"net/http"
)

// HTTPError is satisfied by errors that know their response status.
type HTTPError interface {
	error
	StatusCode() int
}

// Error is a user-visible outcome with a status code. Message is safe to
// show; Err keeps the underlying cause for logs.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.StatusCode())
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode implements HTTPError.
func (e *Error) StatusCode() int {
	if e == nil || e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// Denied reports that the current user may not perform the request.
func Denied(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{Code: http.StatusForbidden, Message: message}
}

// NotFound reports that a referenced entity does not exist.
func NotFound(message string) *Error {
	if message == "" {
		message = "Not found"
	}
	return &Error{Code: http.StatusNotFound, Message: message}
}

// BadParameter reports a missing or malformed request parameter.
func BadParameter(message string, cause error) *Error {
	return &Error{Code: http.StatusBadRequest, Message: message, Err: cause}
}

// IsDenied reports whether err carries a 403 status.
func IsDenied(err error) bool {
	return StatusOf(err) == http.StatusForbidden
}

// IsNotFound reports whether err carries a 404 status.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// StatusOf returns the status carried by err, or 500 for anything else.
// A nil error maps to 200.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// Message returns the user-visible message of err when it is an access
// outcome, and a generic text otherwise so internals never leak.
func Message(err error) string {
	var accessErr *Error
	if errors.As(err, &accessErr) {
		return accessErr.Error()
	}
	return http.StatusText(StatusOf(err))
}
