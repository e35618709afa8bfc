package server

const (
	RouteHealth = "/health"

	// Administrative surface
	RouteAdminLogin        = "/admin/login"
	RouteAdminClients      = "/admin/clients"
	RouteAdminClient       = "/admin/clients/{id}"
	RouteAdminClientRotate = "/admin/clients/{id}/rotate-key"

	// Tenant surface
	RouteSessionLogin  = "/api/session/login"
	RouteSessionLogout = "/api/session/logout"
	RouteMe            = "/api/me"
)
