package autherrors

import (
	"errors"
	"fmt"
)

// UpstreamCause classifies why an upstream authentication attempt failed.
// The classification drives logging and retry decisions; callers only ever
// see the generic MONTY_AUTH_FAILED response.
type UpstreamCause string

const (
	// CauseInvalidCredentials means the partner rejected the credentials
	CauseInvalidCredentials UpstreamCause = "invalid-credentials"
	// CauseServerError means the partner answered with a 5xx
	CauseServerError UpstreamCause = "upstream-server-error"
	// CauseNetworkError means no response arrived from the partner
	CauseNetworkError UpstreamCause = "network-error"
)

// UpstreamAuthError is the internal error for unrecoverable upstream
// authentication failures. It never carries the raw upstream response body.
type UpstreamAuthError struct {
	Cause UpstreamCause
	cause error
}

// NewUpstreamAuthError creates a classified upstream failure.
func NewUpstreamAuthError(cause UpstreamCause, err error) *UpstreamAuthError {
	return &UpstreamAuthError{Cause: cause, cause: err}
}

func (e *UpstreamAuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("upstream authentication failed (%s): %s", e.Cause, e.cause)
	}
	return fmt.Sprintf("upstream authentication failed (%s)", e.Cause)
}

func (e *UpstreamAuthError) Unwrap() error {
	return e.cause
}

// AsUpstreamAuthError extracts an UpstreamAuthError from an error chain.
func AsUpstreamAuthError(err error) (*UpstreamAuthError, bool) {
	var upstreamErr *UpstreamAuthError
	if errors.As(err, &upstreamErr) {
		return upstreamErr, true
	}
	return nil, false
}
