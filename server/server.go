package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/admintoken"
	"github.com/simbridge/go-esim-gateway/broker"
	"github.com/simbridge/go-esim-gateway/clients"
	"github.com/simbridge/go-esim-gateway/internal/config"
)

// Server is the authentication gateway in front of the partner API. Every
// route declares an ordered list of strategies; handlers only ever see
// requests whose principals are already attached to the context.
type Server struct {
	env         string
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	registry    *clients.Registry
	broker      *broker.Broker
	adminTokens *admintoken.Manager
	log         zerolog.Logger
}

func New(cfg config.Config, registry *clients.Registry, sessionBroker *broker.Broker, adminTokens *admintoken.Manager, log zerolog.Logger) (*Server, error) {
	if registry == nil {
		return nil, errors.New("[Server New] client registry is required")
	}
	if sessionBroker == nil {
		return nil, errors.New("[Server New] session broker is required")
	}
	if adminTokens == nil {
		return nil, errors.New("[Server New] admin token manager is required")
	}

	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		registry:    registry,
		broker:      sessionBroker,
		adminTokens: adminTokens,
		log:         log,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		s.log.Info().Str("route", route).Msg("registered")
	}
}
