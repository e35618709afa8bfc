package server

import (
	"context"
	"net/http"

	"github.com/simbridge/go-esim-gateway/clients"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyTenant stores the authenticated tenant principal
	ContextKeyTenant ContextKey = "tenant"
	// ContextKeyUpstreamToken stores the attached upstream access token
	ContextKeyUpstreamToken ContextKey = "upstream_token"
	// ContextKeyAdmin stores the authenticated administrator principal
	ContextKeyAdmin ContextKey = "admin"

	// contextKeyClient holds the full client record for strategies chained
	// after the API-key strategy. It is unexported: downstream consumers get
	// the sanitized Tenant principal, never the record with the ciphertext.
	contextKeyClient ContextKey = "client_record"
)

// Tenant is the principal attached to the request after the API-key strategy
// succeeds. The upstream username is masked; the encrypted password and the
// presented API key are not carried at all.
type Tenant struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Active           bool   `json:"active"`
	UpstreamUsername string `json:"upstream_username"`
}

// Admin is the principal attached after the administrator strategy succeeds.
type Admin struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TenantFromContext returns the authenticated tenant, if any.
func TenantFromContext(ctx context.Context) (*Tenant, bool) {
	tenant, ok := ctx.Value(ContextKeyTenant).(*Tenant)
	return tenant, ok
}

// UpstreamTokenFromContext returns the attached upstream access token, ready
// to be placed in an Authorization header for a proxied call.
func UpstreamTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ContextKeyUpstreamToken).(string)
	return token, ok
}

// AdminFromContext returns the authenticated administrator, if any.
func AdminFromContext(ctx context.Context) (*Admin, bool) {
	admin, ok := ctx.Value(ContextKeyAdmin).(*Admin)
	return admin, ok
}

func clientFromRequest(r *http.Request) (*clients.Client, bool) {
	client, ok := r.Context().Value(contextKeyClient).(*clients.Client)
	return client, ok
}

func withTenant(r *http.Request, client *clients.Client) *http.Request {
	tenant := &Tenant{
		ID:               client.ID,
		Name:             client.Name,
		Active:           client.Active,
		UpstreamUsername: client.MaskedUpstreamUsername(),
	}
	ctx := context.WithValue(r.Context(), ContextKeyTenant, tenant)
	ctx = context.WithValue(ctx, contextKeyClient, client)
	return r.WithContext(ctx)
}
