package tokencache

import (
	"time"

	"github.com/pkg/errors"
)

// DefaultValidityMargin is the safety window subtracted from a token's
// expiry before it is considered usable, so an in-flight upstream call never
// races a token that expires mid-request.
const DefaultValidityMargin = 60 * time.Second

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Entry is the cached upstream session for one tenant. At most one entry
// exists per client; every refresh or login overwrites it whole.
type Entry struct {
	ClientID     string            `json:"client_id"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Identifiers  map[string]string `json:"identifiers,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Validate checks the write-time invariants of an entry.
func (e *Entry) Validate() error {
	if e.ClientID == "" {
		return errors.New("client id is required")
	}
	if e.AccessToken == "" {
		return errors.New("access token is required")
	}
	if !e.ExpiresAt.After(NowTimeFunc()) {
		return errors.New("expiry must lie in the future")
	}
	return nil
}

// IsValid reports whether the entry's access token is still usable, leaving
// the given margin before the actual expiry.
func IsValid(e *Entry, margin time.Duration) bool {
	if e == nil || e.AccessToken == "" || e.ExpiresAt.IsZero() {
		return false
	}
	return NowTimeFunc().Before(e.ExpiresAt.Add(-margin))
}

// TimeToExpiry returns how long until the entry's access token expires.
// Negative for already-expired entries.
func TimeToExpiry(e *Entry) time.Duration {
	if e == nil {
		return 0
	}
	return e.ExpiresAt.Sub(NowTimeFunc())
}
