package server

import "net/http"

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.withCommonMiddleware(s.HealthHandler()))

	// Administrative surface
	s.RegisterRouteFunc("POST "+RouteAdminLogin, s.withCommonMiddleware(s.AdminLoginHandler()))
	s.RegisterRouteFunc("POST "+RouteAdminClients, s.secured(s.CreateClientHandler(), s.AdminTokenStrategy()))
	s.RegisterRouteFunc("GET "+RouteAdminClients, s.secured(s.ListClientsHandler(), s.AdminTokenStrategy()))
	s.RegisterRouteFunc("GET "+RouteAdminClient, s.secured(s.GetClientHandler(), s.AdminTokenStrategy()))
	s.RegisterRouteFunc("PATCH "+RouteAdminClient, s.secured(s.UpdateClientHandler(), s.AdminTokenStrategy()))
	s.RegisterRouteFunc("DELETE "+RouteAdminClient, s.secured(s.DeleteClientHandler(), s.AdminTokenStrategy()))
	s.RegisterRouteFunc("POST "+RouteAdminClientRotate, s.secured(s.RotateAPIKeyHandler(), s.AdminTokenStrategy()))

	// Tenant surface. The session-login route is the one tenant route that
	// runs without upstream-session attachment: it creates the session.
	s.RegisterRouteFunc("POST "+RouteSessionLogin, s.secured(s.UpstreamLoginHandler(), s.TenantAPIKeyStrategy()))
	s.RegisterRouteFunc("POST "+RouteSessionLogout, s.secured(s.LogoutHandler(), s.TenantAPIKeyStrategy()))
	s.RegisterRouteFunc("GET "+RouteMe, s.secured(s.MeHandler(), s.TenantAPIKeyStrategy(), s.UpstreamSessionStrategy()))
}

func (s *Server) secured(handler http.HandlerFunc, strategies ...Strategy) http.HandlerFunc {
	return s.withCommonMiddleware(s.Secure(handler, strategies...))
}

func (s *Server) withCommonMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return ChainMiddleware(handler, s.RecoverMiddleware, s.LoggingMiddleware)
}
