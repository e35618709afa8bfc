package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/simbridge/go-esim-gateway/clients"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
)

// Strategy authenticates a request. On success it returns the request with
// the principal attached to its context; on failure it returns a coded error
// and the chain stops.
type Strategy func(r *http.Request) (*http.Request, error)

// Secure runs the given strategies in order before the handler. The first
// failure short-circuits the chain and is written as the response.
func (s *Server) Secure(handler http.HandlerFunc, strategies ...Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, strategy := range strategies {
			// Keep the inbound request for error reporting: strategies
			// return a nil request on failure.
			authenticated, err := strategy(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			r = authenticated
		}
		handler(w, r)
	}
}

// TenantAPIKeyStrategy authenticates the calling tenant by its opaque API
// key presented as a bearer credential.
func (s *Server) TenantAPIKeyStrategy() Strategy {
	return func(r *http.Request) (*http.Request, error) {
		apiKey, ok := bearerCredential(r)
		if !ok {
			return nil, autherrors.ErrAuthMissing
		}

		client, err := s.registry.FindByAPIKey(r.Context(), apiKey, true)
		if err != nil {
			switch {
			case errors.Is(err, clients.ErrSuspended):
				return nil, autherrors.ErrAuthSuspended
			case errors.Is(err, clients.ErrNotFound):
				return nil, autherrors.ErrAuthInvalid
			default:
				return nil, autherrors.Wrap(err, autherrors.ErrInternal)
			}
		}

		return withTenant(r, client), nil
	}
}

// UpstreamSessionStrategy attaches a valid upstream access token to the
// request. It must be chained after TenantAPIKeyStrategy. A broker failure
// is a backend dependency failure, reported as MONTY_AUTH_FAILED with a 500;
// the request never proceeds without a token.
func (s *Server) UpstreamSessionStrategy() Strategy {
	return func(r *http.Request) (*http.Request, error) {
		client, ok := clientFromRequest(r)
		if !ok {
			return nil, autherrors.ErrInternal
		}

		token, err := s.broker.GetValidToken(r.Context(), client)
		if err != nil {
			cause := "unknown"
			if upstreamErr, isUpstream := autherrors.AsUpstreamAuthError(err); isUpstream {
				cause = string(upstreamErr.Cause)
			}
			s.log.Error().
				Str("client_id", client.ID).
				Str("cause", cause).
				Msg("failed to attach upstream session")
			return nil, autherrors.Wrap(err, autherrors.ErrUpstreamAuthFailed)
		}

		ctx := context.WithValue(r.Context(), ContextKeyUpstreamToken, token)
		return r.WithContext(ctx), nil
	}
}

// AdminTokenStrategy authenticates an administrator by a signed bearer token.
func (s *Server) AdminTokenStrategy() Strategy {
	return func(r *http.Request) (*http.Request, error) {
		tokenString, ok := bearerCredential(r)
		if !ok {
			return nil, autherrors.ErrAdminAuthMissing
		}

		claims, err := s.adminTokens.Verify(tokenString)
		if err != nil {
			return nil, err
		}

		admin := &Admin{ID: claims.ID, Username: claims.Username, Role: claims.Role}
		ctx := context.WithValue(r.Context(), ContextKeyAdmin, admin)
		return r.WithContext(ctx), nil
	}
}

func bearerCredential(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
