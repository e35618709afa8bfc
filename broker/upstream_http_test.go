package broker_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/broker"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
	"github.com/stretchr/testify/require"
)

func newHTTPUpstream(t *testing.T, handler http.HandlerFunc) *broker.HTTPUpstream {
	t.Helper()
	partner := httptest.NewServer(handler)
	t.Cleanup(partner.Close)
	return broker.NewHTTPUpstream(partner.URL, 5*time.Second, time.Second, zerologNop())
}

func TestHTTPUpstreamLoginParsesTokens(t *testing.T) {
	upstream := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"agent_id":"agent-7","reseller_id":"reseller-3"}`))
	})

	tokenData, err := upstream.Login(context.Background(), "svc-user", "svc-pw")
	require.NoError(t, err)
	require.Equal(t, "at-1", tokenData.AccessToken)
	require.Equal(t, "rt-1", tokenData.RefreshToken)
	require.Equal(t, int64(3600), tokenData.ExpiresIn)
	require.Equal(t, map[string]string{"agent_id": "agent-7", "reseller_id": "reseller-3"}, tokenData.Identifiers)
}

func TestHTTPUpstreamClassifiesRejection(t *testing.T) {
	upstream := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad credentials"}`, http.StatusUnauthorized)
	})

	_, err := upstream.Login(context.Background(), "svc-user", "wrong")
	upstreamErr, ok := autherrors.AsUpstreamAuthError(err)
	require.True(t, ok)
	require.Equal(t, autherrors.CauseInvalidCredentials, upstreamErr.Cause)
}

func TestHTTPUpstreamClassifiesServerError(t *testing.T) {
	upstream := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := upstream.Refresh(context.Background(), "rt-1")
	upstreamErr, ok := autherrors.AsUpstreamAuthError(err)
	require.True(t, ok)
	require.Equal(t, autherrors.CauseServerError, upstreamErr.Cause)
}

func TestHTTPUpstreamClassifiesNetworkError(t *testing.T) {
	partner := httptest.NewServer(http.NotFoundHandler())
	baseURL := partner.URL
	partner.Close()
	upstream := broker.NewHTTPUpstream(baseURL, time.Second, time.Second, zerologNop())

	_, err := upstream.Login(context.Background(), "svc-user", "svc-pw")
	upstreamErr, ok := autherrors.AsUpstreamAuthError(err)
	require.True(t, ok)
	require.Equal(t, autherrors.CauseNetworkError, upstreamErr.Cause)
}

func TestHTTPUpstreamLogsFailureClass(t *testing.T) {
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "account locked, ref 8842", http.StatusUnauthorized)
	}))
	t.Cleanup(partner.Close)

	var logged bytes.Buffer
	log := zerolog.New(&logged)
	upstream := broker.NewHTTPUpstream(partner.URL, time.Second, time.Second, log)

	_, err := upstream.Login(context.Background(), "svc-user", "wrong")
	require.Error(t, err)
	require.Contains(t, logged.String(), string(autherrors.CauseInvalidCredentials))
	// The partner's response body stays out of the logs.
	require.NotContains(t, logged.String(), "account locked")
}

func TestHTTPUpstreamHealth(t *testing.T) {
	status := http.StatusOK
	upstream := newHTTPUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/health", r.URL.Path)
		w.WriteHeader(status)
	})

	require.NoError(t, upstream.Health(context.Background()))

	status = http.StatusServiceUnavailable
	err := upstream.Health(context.Background())
	upstreamErr, ok := autherrors.AsUpstreamAuthError(err)
	require.True(t, ok)
	require.Equal(t, autherrors.CauseServerError, upstreamErr.Cause)
}
