package server

import (
	"net/http"
	"time"

	"github.com/simbridge/go-esim-gateway/internal/autherrors"
)

type upstreamLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type upstreamLoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UpstreamLoginHandler authenticates an end user of the calling tenant
// against the partner with the credentials presented in the request body,
// not the tenant's stored service credentials. The resulting session becomes
// the tenant's cached session.
func (s *Server) UpstreamLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, ok := clientFromRequest(r)
		if !ok {
			s.writeError(w, r, autherrors.ErrInternal)
			return
		}

		var req upstreamLoginRequest
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Username == "" || req.Password == "" {
			s.writeError(w, r, autherrors.Validation("username and password are required"))
			return
		}

		entry, err := s.broker.LoginWithCredentials(r.Context(), client, req.Username, req.Password)
		if err != nil {
			s.writeError(w, r, autherrors.Wrap(err, autherrors.ErrUpstreamAuthFailed))
			return
		}

		s.writeJSON(w, http.StatusOK, upstreamLoginResponse{
			AccessToken:  entry.AccessToken,
			RefreshToken: entry.RefreshToken,
			ExpiresAt:    entry.ExpiresAt,
		})
	}
}

// LogoutHandler drops the tenant's cached upstream session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := TenantFromContext(r.Context())
		if !ok {
			s.writeError(w, r, autherrors.ErrInternal)
			return
		}

		if err := s.broker.InvalidateToken(r.Context(), tenant.ID); err != nil {
			s.writeError(w, r, autherrors.Wrap(err, autherrors.ErrInternal))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

// MeHandler demonstrates the downstream contract: the tenant principal and a
// valid upstream token are both on the context by the time a proxied handler
// runs. The token itself is never echoed back.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := TenantFromContext(r.Context())
		if !ok {
			s.writeError(w, r, autherrors.ErrInternal)
			return
		}
		_, hasSession := UpstreamTokenFromContext(r.Context())

		s.writeJSON(w, http.StatusOK, map[string]any{
			"tenant":      tenant,
			"has_session": hasSession,
		})
	}
}
