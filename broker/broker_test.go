package broker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/broker"
	"github.com/simbridge/go-esim-gateway/broker/upstreamfakes"
	"github.com/simbridge/go-esim-gateway/clients"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
	"github.com/simbridge/go-esim-gateway/tokencache"
	"github.com/simbridge/go-esim-gateway/tokencache/repofakes"
	"github.com/simbridge/go-esim-gateway/vault"
	"github.com/stretchr/testify/require"
)

func zerologNop() zerolog.Logger {
	return zerolog.Nop()
}

const (
	testMasterSecret = "broker-test-master-secret"
	testUsername     = "tenant@partner.example"
	testPassword     = "stored-service-password"
)

type brokerFixture struct {
	vault    *vault.Vault
	cache    *repofakes.FakeTokenRepo
	upstream *upstreamfakes.FakeUpstream
	broker   *broker.Broker
	client   *clients.Client
}

func setupBroker(t *testing.T, options ...broker.Option) *brokerFixture {
	t.Helper()

	v := vault.New(testMasterSecret)
	cache := repofakes.NewFakeTokenRepo()
	upstream := upstreamfakes.NewFakeUpstream()

	b, err := broker.New(v, cache, upstream, zerologNop(), options...)
	require.NoError(t, err)

	encrypted, err := v.Encrypt(testPassword)
	require.NoError(t, err)

	return &brokerFixture{
		vault:    v,
		cache:    cache,
		upstream: upstream,
		broker:   b,
		client: &clients.Client{
			ID:                        "client-1",
			Name:                      "Test Tenant",
			Active:                    true,
			UpstreamUsername:          testUsername,
			UpstreamPasswordEncrypted: encrypted,
		},
	}
}

func tokenData(accessToken string, expiresIn int64) *broker.TokenData {
	return &broker.TokenData{
		AccessToken:  accessToken,
		RefreshToken: "refresh-" + accessToken,
		ExpiresIn:    expiresIn,
		Identifiers:  map[string]string{"agent_id": "agent-42"},
	}
}

func TestCachedValidTokenNeedsNoNetworkCall(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Upsert(ctx, &tokencache.Entry{
		ClientID:    f.client.ID,
		AccessToken: "cached-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	token, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)
	require.Equal(t, "cached-token", token)
	require.Zero(t, f.upstream.LoginCallCount())
	require.Zero(t, f.upstream.RefreshCallCount())
}

func TestUncachedTokenTriggersFullLogin(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	f.upstream.LoginFunc = func(username, password string) (*broker.TokenData, error) {
		require.Equal(t, testUsername, username)
		require.Equal(t, testPassword, password)
		return tokenData("fresh-token", 3600), nil
	}

	token, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)
	require.Equal(t, 1, f.upstream.LoginCallCount())

	entry, err := f.cache.Get(ctx, f.client.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", entry.AccessToken)
	require.Equal(t, "refresh-fresh-token", entry.RefreshToken)
	require.Equal(t, "agent-42", entry.Identifiers["agent_id"])
	require.True(t, tokencache.IsValid(entry, tokencache.DefaultValidityMargin))
}

func TestExpiredEntryRefreshesBeforeLogin(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Upsert(ctx, &tokencache.Entry{
		ClientID:     f.client.ID,
		AccessToken:  "stale-token",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(time.Second), // inside the 60s margin
	}))

	var order []string
	var orderMu sync.Mutex
	record := func(call string) {
		orderMu.Lock()
		defer orderMu.Unlock()
		order = append(order, call)
	}

	f.upstream.RefreshFunc = func(refreshToken string) (*broker.TokenData, error) {
		record("refresh")
		require.Equal(t, "old-refresh", refreshToken)
		return tokenData("refreshed-token", 3600), nil
	}
	f.upstream.LoginFunc = func(username, password string) (*broker.TokenData, error) {
		record("login")
		return tokenData("login-token", 3600), nil
	}

	token, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)
	require.Equal(t, "refreshed-token", token)
	require.Equal(t, []string{"refresh"}, order)
}

func TestRefreshFailureFallsBackToSingleLogin(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Upsert(ctx, &tokencache.Entry{
		ClientID:     f.client.ID,
		AccessToken:  "stale-token",
		RefreshToken: "dead-refresh",
		ExpiresAt:    time.Now().Add(time.Second),
	}))

	f.upstream.RefreshFunc = func(string) (*broker.TokenData, error) {
		return nil, autherrors.NewUpstreamAuthError(autherrors.CauseInvalidCredentials, nil)
	}
	f.upstream.LoginFunc = func(string, string) (*broker.TokenData, error) {
		return tokenData("recovered-token", 3600), nil
	}

	token, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)
	require.Equal(t, "recovered-token", token)
	require.Equal(t, 1, f.upstream.RefreshCallCount())
	require.Equal(t, 1, f.upstream.LoginCallCount())
}

func TestExpiredEntryWithoutRefreshTokenLogsInDirectly(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Upsert(ctx, &tokencache.Entry{
		ClientID:    f.client.ID,
		AccessToken: "stale-token",
		ExpiresAt:   time.Now().Add(time.Second),
	}))

	f.upstream.LoginFunc = func(string, string) (*broker.TokenData, error) {
		return tokenData("direct-login-token", 3600), nil
	}

	token, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)
	require.Equal(t, "direct-login-token", token)
	require.Zero(t, f.upstream.RefreshCallCount())
	require.Equal(t, 1, f.upstream.LoginCallCount())
}

func TestLoginFailureWritesNoCacheRow(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	f.upstream.LoginFunc = func(string, string) (*broker.TokenData, error) {
		return nil, autherrors.NewUpstreamAuthError(autherrors.CauseInvalidCredentials, nil)
	}

	_, err := f.broker.GetValidToken(ctx, f.client)
	require.Error(t, err)

	upstreamErr, ok := autherrors.AsUpstreamAuthError(err)
	require.True(t, ok)
	require.Equal(t, autherrors.CauseInvalidCredentials, upstreamErr.Cause)

	_, err = f.cache.Get(ctx, f.client.ID)
	require.ErrorIs(t, err, tokencache.ErrNotFound)
}

func TestExpiryNormalizationRelative(t *testing.T) {
	now := time.Now()
	f := setupBroker(t, broker.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	f.upstream.LoginFunc = func(string, string) (*broker.TokenData, error) {
		return &broker.TokenData{AccessToken: "relative-token", ExpiresIn: 3600}, nil
	}

	_, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)

	entry, err := f.cache.Get(ctx, f.client.ID)
	require.NoError(t, err)
	require.Equal(t, now.Add(3600*time.Second), entry.ExpiresAt)
}

func TestExpiryNormalizationAbsolute(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	// Unix seconds for 2030-01-01, above the year-2000 threshold
	const absoluteExpiry = 1893456000

	f.upstream.LoginFunc = func(string, string) (*broker.TokenData, error) {
		return &broker.TokenData{AccessToken: "absolute-token", ExpiresIn: absoluteExpiry}, nil
	}

	_, err := f.broker.GetValidToken(ctx, f.client)
	require.NoError(t, err)

	entry, err := f.cache.Get(ctx, f.client.ID)
	require.NoError(t, err)
	require.Equal(t, time.Unix(absoluteExpiry, 0), entry.ExpiresAt)
}

func TestNormalizeExpiryThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.Equal(t, now.Add(3600*time.Second), broker.NormalizeExpiry(now, 3600))
	require.Equal(t, time.Unix(1893456000, 0), broker.NormalizeExpiry(now, 1893456000))

	// Just below the threshold: still treated as a relative duration
	require.Equal(t, now.Add(946684799*time.Second), broker.NormalizeExpiry(now, 946684799))
	// At the threshold: absolute
	require.Equal(t, time.Unix(946684800, 0), broker.NormalizeExpiry(now, 946684800))
}

func TestConcurrentCallersShareOneLogin(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	f.upstream.LoginFunc = func(string, string) (*broker.TokenData, error) {
		time.Sleep(50 * time.Millisecond) // hold the flight open
		return tokenData("shared-token", 3600), nil
	}

	const callers = 10
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.broker.GetValidToken(ctx, f.client)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, f.upstream.LoginCallCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "shared-token", tokens[i])
	}
}

func TestLoginWithCredentialsPersistsSession(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	f.upstream.LoginFunc = func(username, password string) (*broker.TokenData, error) {
		require.Equal(t, "enduser@example.com", username)
		require.Equal(t, "end-user-password", password)
		return tokenData("end-user-token", 3600), nil
	}

	entry, err := f.broker.LoginWithCredentials(ctx, f.client, "enduser@example.com", "end-user-password")
	require.NoError(t, err)
	require.Equal(t, "end-user-token", entry.AccessToken)

	cached, err := f.cache.Get(ctx, f.client.ID)
	require.NoError(t, err)
	require.Equal(t, "end-user-token", cached.AccessToken)
}

func TestInvalidateToken(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Upsert(ctx, &tokencache.Entry{
		ClientID:    f.client.ID,
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	require.NoError(t, f.broker.InvalidateToken(ctx, f.client.ID))
	_, err := f.cache.Get(ctx, f.client.ID)
	require.ErrorIs(t, err, tokencache.ErrNotFound)

	// Invalidating an absent entry is not an error
	require.NoError(t, f.broker.InvalidateToken(ctx, f.client.ID))
}

func TestCheckUpstreamHealth(t *testing.T) {
	f := setupBroker(t)
	ctx := context.Background()

	require.True(t, f.broker.CheckUpstreamHealth(ctx))

	f.upstream.HealthErr = autherrors.NewUpstreamAuthError(autherrors.CauseNetworkError, nil)
	require.False(t, f.broker.CheckUpstreamHealth(ctx))
	require.Equal(t, 2, f.upstream.HealthCallCount())
}
