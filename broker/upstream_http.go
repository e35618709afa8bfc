package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
)

const (
	loginPath   = "/v1/auth/login"
	refreshPath = "/v1/auth/refresh"
	healthPath  = "/v1/health"
)

var _ Upstream = (*HTTPUpstream)(nil)

// HTTPUpstream talks to the partner API over HTTP/JSON. Login and refresh
// share one bounded client; health probes get their own shorter timeout.
type HTTPUpstream struct {
	baseURL       string
	client        *http.Client
	healthTimeout time.Duration
	log           zerolog.Logger
}

// NewHTTPUpstream creates an upstream client for the partner base URL.
func NewHTTPUpstream(baseURL string, timeout, healthTimeout time.Duration, log zerolog.Logger) *HTTPUpstream {
	return &HTTPUpstream{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		healthTimeout: healthTimeout,
		log:           log,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	AgentID      string `json:"agent_id"`
	ResellerID   string `json:"reseller_id"`
}

func (u *HTTPUpstream) Login(ctx context.Context, username, password string) (*TokenData, error) {
	return u.requestToken(ctx, loginPath, loginRequest{Username: username, Password: password})
}

func (u *HTTPUpstream) Refresh(ctx context.Context, refreshToken string) (*TokenData, error) {
	return u.requestToken(ctx, refreshPath, refreshRequest{RefreshToken: refreshToken})
}

// Health probes the partner with a bounded timeout, shorter than the one
// used for token acquisition.
func (u *HTTPUpstream) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, u.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+healthPath, nil)
	if err != nil {
		return errors.Wrap(err, "[HTTPUpstream Health] build request")
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return u.classified(healthPath, autherrors.CauseNetworkError, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return u.classified(healthPath, autherrors.CauseServerError, fmt.Errorf("health probe returned %d", resp.StatusCode))
	}
	return nil
}

func (u *HTTPUpstream) requestToken(ctx context.Context, path string, payload any) (*TokenData, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPUpstream requestToken] encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPUpstream requestToken] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, u.classified(path, autherrors.CauseNetworkError, err)
	}
	defer drainAndClose(resp.Body)

	// The raw body is never propagated; only the status class matters.
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, u.classified(path, autherrors.CauseInvalidCredentials, fmt.Errorf("partner rejected credentials with %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, u.classified(path, autherrors.CauseServerError, fmt.Errorf("partner returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, u.classified(path, autherrors.CauseServerError, fmt.Errorf("unexpected partner status %d", resp.StatusCode))
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, u.classified(path, autherrors.CauseServerError, errors.Wrap(err, "decode partner response"))
	}
	if parsed.AccessToken == "" {
		return nil, u.classified(path, autherrors.CauseServerError, errors.New("partner response missing access token"))
	}

	identifiers := make(map[string]string)
	if parsed.AgentID != "" {
		identifiers["agent_id"] = parsed.AgentID
	}
	if parsed.ResellerID != "" {
		identifiers["reseller_id"] = parsed.ResellerID
	}
	if len(identifiers) == 0 {
		identifiers = nil
	}

	return &TokenData{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    parsed.ExpiresIn,
		Identifiers:  identifiers,
	}, nil
}

// classified logs the failure class and wraps it; the raw partner error
// stays out of anything caller-facing.
func (u *HTTPUpstream) classified(path string, cause autherrors.UpstreamCause, err error) error {
	u.log.Warn().Str("path", path).Str("cause", string(cause)).Msg("partner request failed")
	return autherrors.NewUpstreamAuthError(cause, err)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
