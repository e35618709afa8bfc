package server

import "net/http"

// HealthHandler reports gateway liveness and whether the partner is
// reachable. The upstream probe is bounded by its own short timeout.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upstreamHealthy := s.broker.CheckUpstreamHealth(r.Context())

		status := http.StatusOK
		if !upstreamHealthy {
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, status, map[string]any{
			"status":   "ok",
			"upstream": upstreamHealthy,
		})
	}
}
