// Package apperr defines the service-wide error taxonomy. Every error that
// crosses a service boundary is one of these; raw storage and driver errors
// are wrapped into CodeInternal before they reach a handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeTokenRevoked       Code = "TOKEN_REVOKED"
	CodeNotFound           Code = "RESOURCE_NOT_FOUND"
	CodeNotAuthorized      Code = "NOT_AUTHORIZED"
	CodeConflict           Code = "RESOURCE_ALREADY_EXISTS"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeRateLimited        Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
)

type Error struct {
	Code    Code
	Status  int
	Message string

	// RetryAfter is set for rate-limit errors only.
	RetryAfter time.Duration

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf returns the taxonomy code carried by err, or CodeInternal for
// anything that is not an *Error (unknown errors are internal by policy).
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// AsError extracts the *Error from err, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// InvalidCredentials deliberately carries the same message for a wrong
// password, an unknown account and a locked-out client.
func InvalidCredentials() *Error {
	return &Error{
		Code:    CodeInvalidCredentials,
		Status:  http.StatusUnauthorized,
		Message: "incorrect email or password",
	}
}

func InvalidToken(message string) *Error {
	if message == "" {
		message = "token is invalid or malformed"
	}
	return &Error{Code: CodeInvalidToken, Status: http.StatusUnauthorized, Message: message}
}

func TokenExpired() *Error {
	return &Error{Code: CodeTokenExpired, Status: http.StatusUnauthorized, Message: "token has expired"}
}

func TokenRevoked() *Error {
	return &Error{
		Code:    CodeTokenRevoked,
		Status:  http.StatusUnauthorized,
		Message: "this token has been revoked and can no longer be used",
	}
}

func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: resource + " not found"}
}

func NotAuthorized(message string) *Error {
	if message == "" {
		message = "you are not authorized to perform this action"
	}
	return &Error{Code: CodeNotAuthorized, Status: http.StatusForbidden, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: message}
}

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusUnprocessableEntity, Message: message}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    "rate limit exceeded, please try again later",
		RetryAfter: retryAfter,
	}
}

func Internal(cause error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "an unexpected error occurred, please try again later",
		cause:   cause,
	}
}
