package broker

import "context"

// TokenData is a token set returned by the partner. ExpiresIn is ambiguous
// by upstream design: either a relative duration in seconds or an absolute
// Unix timestamp in seconds. NormalizeExpiry resolves it.
type TokenData struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Identifiers  map[string]string
}

// Upstream is the partner API's authentication surface. Implementations must
// bound every call with a timeout and classify failures as
// autherrors.UpstreamAuthError; a Refresh failure is a recoverable signal to
// the broker, never fatal by itself.
type Upstream interface {
	Login(ctx context.Context, username, password string) (*TokenData, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenData, error)
	Health(ctx context.Context) error
}
