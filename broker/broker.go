package broker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/clients"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
	"github.com/simbridge/go-esim-gateway/tokencache"
	"github.com/simbridge/go-esim-gateway/vault"
	"golang.org/x/sync/singleflight"
)

// year2000Unix disambiguates the partner's expiry encoding: values below it
// are relative durations in seconds, values at or above it are absolute Unix
// timestamps in seconds. The partner emits both shapes; this threshold is
// the documented contract, do not change it.
const year2000Unix = 946684800

// Broker obtains a valid upstream access token for a tenant: cached if still
// usable, refreshed if a refresh token exists, re-acquired via full login
// otherwise. Concurrent callers for the same tenant share one acquisition
// through a per-tenant singleflight group.
type Broker struct {
	vault    *vault.Vault
	cache    tokencache.Repo
	upstream Upstream
	margin   time.Duration
	log      zerolog.Logger

	group   singleflight.Group
	nowTime func() time.Time
}

// Option modifies a Broker instance.
type Option func(*Broker)

// WithValidityMargin overrides the safety margin applied to cached tokens.
func WithValidityMargin(margin time.Duration) Option {
	return func(b *Broker) {
		b.margin = margin
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Broker) {
		b.nowTime = nowFunc
	}
}

// New creates a Broker with its required dependencies.
func New(credentialVault *vault.Vault, cache tokencache.Repo, upstream Upstream, log zerolog.Logger, options ...Option) (*Broker, error) {
	if credentialVault == nil {
		return nil, errors.New("[broker New] vault is required")
	}
	if cache == nil {
		return nil, errors.New("[broker New] token cache is required")
	}
	if upstream == nil {
		return nil, errors.New("[broker New] upstream client is required")
	}

	b := &Broker{
		vault:    credentialVault,
		cache:    cache,
		upstream: upstream,
		margin:   tokencache.DefaultValidityMargin,
		log:      log,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// GetValidToken returns a currently-valid upstream access token for the
// client. The fast path reads the cache without any network call; otherwise
// the acquisition is deduplicated per tenant so at most one refresh-or-login
// round trip is in flight at a time.
func (b *Broker) GetValidToken(ctx context.Context, client *clients.Client) (string, error) {
	entry, err := b.cache.Get(ctx, client.ID)
	if err != nil && !errors.Is(err, tokencache.ErrNotFound) {
		return "", errors.Wrap(err, "[GetValidToken] cache read")
	}
	if tokencache.IsValid(entry, b.margin) {
		return entry.AccessToken, nil
	}

	token, err, _ := b.group.Do(client.ID, func() (interface{}, error) {
		return b.acquire(client)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// acquire runs detached from any single caller's context: the result is
// cached for the next caller even if the requester that triggered the
// acquisition has already disconnected. The upstream client bounds the call
// with its own timeout.
func (b *Broker) acquire(client *clients.Client) (string, error) {
	ctx := context.Background()

	// Another caller may have finished an acquisition between our cache
	// check and joining the flight group.
	entry, err := b.cache.Get(ctx, client.ID)
	if err != nil && !errors.Is(err, tokencache.ErrNotFound) {
		return "", errors.Wrap(err, "[acquire] cache read")
	}
	if tokencache.IsValid(entry, b.margin) {
		return entry.AccessToken, nil
	}

	if entry != nil && entry.RefreshToken != "" {
		tokenData, refreshErr := b.upstream.Refresh(ctx, entry.RefreshToken)
		if refreshErr == nil {
			return b.persist(ctx, client.ID, tokenData)
		}
		// Refresh failure is recoverable: fall through to full login.
		b.log.Warn().
			Str("client_id", client.ID).
			Str("cause", string(upstreamCause(refreshErr))).
			Msg("token refresh failed, falling back to full login")
	}

	return b.login(ctx, client)
}

func (b *Broker) login(ctx context.Context, client *clients.Client) (string, error) {
	password, err := b.vault.Decrypt(client.UpstreamPasswordEncrypted)
	if err != nil {
		b.log.Error().Str("client_id", client.ID).Msg("stored credentials could not be decrypted")
		return "", errors.Wrap(err, "[login] decrypt credentials")
	}

	tokenData, err := b.upstream.Login(ctx, client.UpstreamUsername, password)
	if err != nil {
		b.log.Error().
			Str("client_id", client.ID).
			Str("cause", string(upstreamCause(err))).
			Msg("upstream login failed")
		return "", err
	}

	return b.persist(ctx, client.ID, tokenData)
}

// persist normalizes the expiry, upserts the cache row, and returns the
// access token. A cache write failure is logged but does not discard a token
// the caller can still use.
func (b *Broker) persist(ctx context.Context, clientID string, tokenData *TokenData) (string, error) {
	entry := &tokencache.Entry{
		ClientID:     clientID,
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
		ExpiresAt:    NormalizeExpiry(b.nowTime(), tokenData.ExpiresIn),
		Identifiers:  tokenData.Identifiers,
		UpdatedAt:    b.nowTime(),
	}
	if err := b.cache.Upsert(ctx, entry); err != nil {
		b.log.Error().Err(err).Str("client_id", clientID).Msg("failed to persist upstream session")
	}
	return entry.AccessToken, nil
}

// LoginWithCredentials performs a full upstream login with request-supplied
// credentials (an end user of the tenant, not the tenant's stored service
// account) and persists the resulting session as the tenant's cache entry.
func (b *Broker) LoginWithCredentials(ctx context.Context, client *clients.Client, username, password string) (*tokencache.Entry, error) {
	tokenData, err := b.upstream.Login(ctx, username, password)
	if err != nil {
		b.log.Error().
			Str("client_id", client.ID).
			Str("cause", string(upstreamCause(err))).
			Msg("upstream login with supplied credentials failed")
		return nil, err
	}

	entry := &tokencache.Entry{
		ClientID:     client.ID,
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
		ExpiresAt:    NormalizeExpiry(b.nowTime(), tokenData.ExpiresIn),
		Identifiers:  tokenData.Identifiers,
		UpdatedAt:    b.nowTime(),
	}
	if err := b.cache.Upsert(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "[LoginWithCredentials] persist session")
	}
	return entry, nil
}

// ValidateCredentials checks a username/password pair against the partner
// without touching the cache, used when admitting a new tenant.
func (b *Broker) ValidateCredentials(ctx context.Context, username, password string) error {
	_, err := b.upstream.Login(ctx, username, password)
	return err
}

// RefreshToken exchanges a refresh token for a new token set. Failures
// propagate untouched; the caller decides whether to fall back to login.
func (b *Broker) RefreshToken(ctx context.Context, refreshToken string) (*TokenData, error) {
	return b.upstream.Refresh(ctx, refreshToken)
}

// InvalidateToken drops the cached session for a tenant, used on explicit
// logout, deactivation, and deletion. Missing entries are not an error.
func (b *Broker) InvalidateToken(ctx context.Context, clientID string) error {
	if err := b.cache.Delete(ctx, clientID); err != nil && !errors.Is(err, tokencache.ErrNotFound) {
		return errors.Wrap(err, "[InvalidateToken] cache delete")
	}
	return nil
}

// CheckUpstreamHealth reports whether the partner is reachable.
func (b *Broker) CheckUpstreamHealth(ctx context.Context) bool {
	if err := b.upstream.Health(ctx); err != nil {
		b.log.Warn().Str("cause", string(upstreamCause(err))).Msg("upstream health probe failed")
		return false
	}
	return true
}

// NormalizeExpiry resolves the partner's ambiguous expiry encoding into an
// absolute instant. See year2000Unix.
func NormalizeExpiry(now time.Time, expiresIn int64) time.Time {
	if expiresIn < year2000Unix {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Unix(expiresIn, 0)
}

func upstreamCause(err error) autherrors.UpstreamCause {
	if upstreamErr, ok := autherrors.AsUpstreamAuthError(err); ok {
		return upstreamErr.Cause
	}
	return autherrors.CauseNetworkError
}
