// Package apperrors defines the error kinds shared by services and the HTTP layer.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP boundary
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindBusinessRule Kind = "BUSINESS_RULE"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// AppError is implemented by every typed error in the service layer
type AppError interface {
	error
	Kind() Kind
	HTTPStatus() int
	Unwrap() error
}

type appError struct {
	kind Kind
	msg  string
	err  error
}

func (e *appError) Error() string { return e.msg }
func (e *appError) Kind() Kind    { return e.kind }
func (e *appError) Unwrap() error { return e.err }

func (e *appError) HTTPStatus() int {
	switch e.kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, msg string, err error) AppError {
	return &appError{kind: kind, msg: msg, err: err}
}

func Validation(msg string) AppError   { return newError(KindValidation, msg, nil) }
func Unauthorized(msg string) AppError { return newError(KindUnauthorized, msg, nil) }
func Forbidden(msg string) AppError    { return newError(KindForbidden, msg, nil) }
func NotFound(msg string) AppError     { return newError(KindNotFound, msg, nil) }
func Conflict(msg string) AppError     { return newError(KindConflict, msg, nil) }
func BusinessRule(msg string) AppError { return newError(KindBusinessRule, msg, nil) }

// Internal wraps an unexpected failure
func Internal(msg string, err error) AppError {
	return newError(KindInternal, msg, err)
}

// Wrap prefixes err's message with msg and keeps its kind.
// Untyped errors become Internal. errors.Is still matches the wrapped sentinel.
func Wrap(err error, msg string) AppError {
	if err == nil {
		return nil
	}
	kind := KindInternal
	var appErr AppError
	if errors.As(err, &appErr) {
		kind = appErr.Kind()
	}
	return newError(kind, msg+": "+err.Error(), err)
}

// Explain replaces the message of a typed error with msg. The kind and the
// errors.Is chain are kept.
func Explain(err error, msg string) AppError {
	if err == nil {
		return nil
	}
	return newError(KindOf(err), msg, err)
}

// KindOf reports the kind of err, KindInternal for untyped errors
func KindOf(err error) Kind {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindInternal
}

// HTTPStatus returns the status code for err
func HTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message shown to clients.
// Errors that never passed through this package are reported generically.
func PublicMessage(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return "internal server error"
}
