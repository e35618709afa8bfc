package autherrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a gateway failure category. Codes are part of the API
// contract: callers switch on them, so they never change once published.
type Code string

const (
	// Tenant API-key strategy failures
	CodeAuthMissing   Code = "AUTH_MISSING"
	CodeAuthInvalid   Code = "AUTH_INVALID"
	CodeAuthSuspended Code = "AUTH_SUSPENDED"

	// Administrator strategy failures
	CodeAdminAuthMissing    Code = "ADMIN_AUTH_MISSING"
	CodeTokenInvalid        Code = "TOKEN_INVALID"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeAdminAccessRequired Code = "ADMIN_ACCESS_REQUIRED"

	// Upstream session acquisition failed. Reported as a 500: the backend
	// could not authenticate against the partner, the caller did nothing wrong.
	CodeUpstreamAuthFailed Code = "MONTY_AUTH_FAILED"

	CodeValidation Code = "VALIDATION_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// Error is a coded error carrying the HTTP status and a caller-safe message.
// The wrapped cause is for logs only and is never serialised to the caller.
type Error struct {
	Code    Code
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets sentinel comparisons match on the code alone, so wrapped instances
// of the same code still satisfy errors.Is against the predefined values.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New creates a coded error.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a cause to a predefined coded error.
func Wrap(cause error, base *Error) *Error {
	return &Error{Code: base.Code, Status: base.Status, Message: base.Message, cause: cause}
}

// Predefined gateway errors. Messages are deliberately generic: strategy
// failures must never leak whether a key exists, and backend failures must
// never forward upstream error bodies.
var (
	ErrAuthMissing   = New(CodeAuthMissing, http.StatusUnauthorized, "missing API key")
	ErrAuthInvalid   = New(CodeAuthInvalid, http.StatusUnauthorized, "invalid API key")
	ErrAuthSuspended = New(CodeAuthSuspended, http.StatusForbidden, "client is suspended")

	ErrAdminAuthMissing    = New(CodeAdminAuthMissing, http.StatusUnauthorized, "missing administrator token")
	ErrTokenInvalid        = New(CodeTokenInvalid, http.StatusUnauthorized, "invalid token")
	ErrTokenExpired        = New(CodeTokenExpired, http.StatusUnauthorized, "token expired")
	ErrAdminAccessRequired = New(CodeAdminAccessRequired, http.StatusForbidden, "administrator access required")

	ErrUpstreamAuthFailed = New(CodeUpstreamAuthFailed, http.StatusInternalServerError, "backend authentication failed")

	ErrInternal = New(CodeInternal, http.StatusInternalServerError, "internal error")
)

// AsError extracts a coded error from an error chain.
func AsError(err error) (*Error, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// Validation creates a caller-facing validation error.
func Validation(message string) *Error {
	return New(CodeValidation, http.StatusBadRequest, message)
}

// NotFound creates a caller-facing not-found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}
