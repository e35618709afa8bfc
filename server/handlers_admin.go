package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/simbridge/go-esim-gateway/clients"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginHandler exchanges the configured administrator credentials for a
// signed administrator token.
func (s *Server) AdminLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminLoginRequest
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		configuredPassword := s.config.GetAdminPassword()
		usernameMatch := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.config.GetAdminUsername())) == 1
		passwordMatch := configuredPassword != "" && subtle.ConstantTimeCompare([]byte(req.Password), []byte(configuredPassword)) == 1
		if !usernameMatch || !passwordMatch {
			s.writeError(w, r, autherrors.ErrTokenInvalid)
			return
		}

		token, err := s.adminTokens.Create("admin", req.Username)
		if err != nil {
			s.writeError(w, r, errors.Wrap(err, "[AdminLoginHandler] create token"))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

type createClientRequest struct {
	Name             string `json:"name"`
	UpstreamUsername string `json:"upstream_username"`
	UpstreamPassword string `json:"upstream_password"`
}

// CreateClientHandler admits a new tenant. The supplied upstream credentials
// are validated with a live partner login before anything is committed, so a
// tenant can never be created with credentials that do not work.
func (s *Server) CreateClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createClientRequest
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Name == "" || req.UpstreamUsername == "" || req.UpstreamPassword == "" {
			s.writeError(w, r, autherrors.Validation("name, upstream_username and upstream_password are required"))
			return
		}

		if err := s.broker.ValidateCredentials(r.Context(), req.UpstreamUsername, req.UpstreamPassword); err != nil {
			if upstreamErr, ok := autherrors.AsUpstreamAuthError(err); ok && upstreamErr.Cause == autherrors.CauseInvalidCredentials {
				s.writeError(w, r, autherrors.Validation("upstream credentials were rejected by the partner"))
				return
			}
			s.writeError(w, r, autherrors.Wrap(err, autherrors.ErrUpstreamAuthFailed))
			return
		}

		client, err := s.registry.Create(r.Context(), req.Name, req.UpstreamUsername, req.UpstreamPassword)
		if err != nil {
			s.writeError(w, r, registryError(err))
			return
		}

		// The only response that ever carries the API key in full.
		s.writeJSON(w, http.StatusCreated, client)
	}
}

func (s *Server) GetClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.registry.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, registryError(err))
			return
		}
		s.writeJSON(w, http.StatusOK, client)
	}
}

func (s *Server) ListClientsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", 50)

		list, err := s.registry.List(r.Context(), offset, limit)
		if err != nil {
			s.writeError(w, r, errors.Wrap(err, "[ListClientsHandler] list"))
			return
		}
		if list == nil {
			list = []*clients.Client{}
		}
		s.writeJSON(w, http.StatusOK, list)
	}
}

type updateClientRequest struct {
	Name             *string `json:"name"`
	Active           *bool   `json:"active"`
	UpstreamUsername *string `json:"upstream_username"`
	UpstreamPassword *string `json:"upstream_password"`
}

// UpdateClientHandler applies a partial update. Deactivating a tenant also
// drops its cached upstream session so the suspension takes effect at once.
func (s *Server) UpdateClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateClientRequest
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		clientID := r.PathValue("id")
		client, err := s.registry.Update(r.Context(), clientID, clients.UpdateParams{
			Name:             req.Name,
			Active:           req.Active,
			UpstreamUsername: req.UpstreamUsername,
			UpstreamPassword: req.UpstreamPassword,
		})
		if err != nil {
			s.writeError(w, r, registryError(err))
			return
		}

		if req.Active != nil && !*req.Active {
			if err := s.broker.InvalidateToken(r.Context(), clientID); err != nil {
				s.log.Error().Err(err).Str("client_id", clientID).Msg("failed to invalidate session on deactivation")
			}
		}

		s.writeJSON(w, http.StatusOK, client)
	}
}

// DeleteClientHandler removes a tenant and its cached session.
func (s *Server) DeleteClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.PathValue("id")

		if err := s.broker.InvalidateToken(r.Context(), clientID); err != nil {
			s.writeError(w, r, errors.Wrap(err, "[DeleteClientHandler] invalidate session"))
			return
		}
		if err := s.registry.Delete(r.Context(), clientID); err != nil {
			s.writeError(w, r, registryError(err))
			return
		}
		s.writeJSON(w, http.StatusNoContent, nil)
	}
}

func (s *Server) RotateAPIKeyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.registry.RotateAPIKey(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, registryError(err))
			return
		}
		s.writeJSON(w, http.StatusOK, client)
	}
}

// registryError translates registry failures into coded caller responses.
// Constraint violations surface as validation errors, never silently.
func registryError(err error) error {
	switch {
	case errors.Is(err, clients.ErrNotFound):
		return autherrors.NotFound("client not found")
	case errors.Is(err, clients.ErrDuplicateAPIKey):
		return autherrors.Validation("api key already exists")
	case errors.Is(err, clients.ErrValidation):
		return autherrors.Validation(err.Error())
	case errors.Is(err, clients.ErrSuspended):
		return autherrors.ErrAuthSuspended
	default:
		if _, ok := autherrors.AsError(err); ok {
			return err
		}
		return autherrors.Wrap(err, autherrors.ErrInternal)
	}
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return defaultValue
	}
	return parsed
}
