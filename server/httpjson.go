package server

import (
	"encoding/json"
	"net/http"

	"github.com/simbridge/go-esim-gateway/internal/autherrors"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	// A client that disconnected mid-response surfaces as a write error
	// here; there is nothing useful left to do with it.
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Debug().Err(err).Msg("response write failed")
	}
}

// writeError maps any error to its coded JSON response. Causes stay in the
// logs; only the code and the caller-safe message go on the wire.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	coded, ok := autherrors.AsError(err)
	if !ok {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unclassified error")
		coded = autherrors.ErrInternal
	}
	if coded.Status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Str("code", string(coded.Code)).Msg("request failed")
	}
	s.writeJSON(w, coded.Status, errorResponse{Error: string(coded.Code), Message: coded.Message})
}

func (s *Server) decodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return autherrors.Validation("malformed JSON body")
	}
	return nil
}
