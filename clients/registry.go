package clients

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/simbridge/go-esim-gateway/vault"
)

// ErrSuspended indicates the client exists but is deactivated
var ErrSuspended = errors.New("client is suspended")

// Registry manages the lifecycle of client records. It owns password
// encryption and API key issuance; plaintext passwords never leave it after
// Create/Update return.
type Registry struct {
	repo    Repo
	vault   *vault.Vault
	nowTime func() time.Time
}

// RegistryOption modifies a Registry instance.
type RegistryOption func(*Registry)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowTime = nowFunc
	}
}

// NewRegistry creates a Registry with its required dependencies.
func NewRegistry(repo Repo, credentialVault *vault.Vault, options ...RegistryOption) (*Registry, error) {
	if repo == nil {
		return nil, errors.New("[NewRegistry] repo is required")
	}
	if credentialVault == nil {
		return nil, errors.New("[NewRegistry] vault is required")
	}

	registry := &Registry{
		repo:    repo,
		vault:   credentialVault,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(registry)
	}
	return registry, nil
}

// Create encrypts the supplied upstream password, issues an API key, and
// persists the new client. The returned record is the only place the issued
// API key is handed out in full.
func (r *Registry) Create(ctx context.Context, name, upstreamUsername, upstreamPassword string) (*Client, error) {
	encrypted, err := r.vault.Encrypt(upstreamPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[Registry Create] encrypt password")
	}

	clientID := uuid.New().String()
	apiKey, err := vault.GenerateAPIKey(clientID)
	if err != nil {
		return nil, errors.Wrap(err, "[Registry Create] generate api key")
	}

	now := r.nowTime()
	client := &Client{
		ID:                        clientID,
		Name:                      name,
		APIKey:                    apiKey,
		Active:                    true,
		UpstreamUsername:          upstreamUsername,
		UpstreamPasswordEncrypted: encrypted,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := client.Validate(); err != nil {
		return nil, err
	}

	if err := r.repo.Create(ctx, client); err != nil {
		return nil, errors.Wrap(err, "[Registry Create] persist client")
	}
	return client, nil
}

// UpdateParams carries the optional fields of a partial update. Nil fields
// are left untouched; in particular, a nil UpstreamPassword keeps the stored
// ciphertext exactly as it is.
type UpdateParams struct {
	Name             *string
	Active           *bool
	UpstreamUsername *string
	UpstreamPassword *string
}

// Update applies a partial update to a client record.
func (r *Registry) Update(ctx context.Context, clientID string, params UpdateParams) (*Client, error) {
	client, err := r.repo.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		client.Name = *params.Name
	}
	if params.Active != nil {
		client.Active = *params.Active
	}
	if params.UpstreamUsername != nil {
		client.UpstreamUsername = *params.UpstreamUsername
	}
	if params.UpstreamPassword != nil {
		encrypted, err := r.vault.Encrypt(*params.UpstreamPassword)
		if err != nil {
			return nil, errors.Wrap(err, "[Registry Update] encrypt password")
		}
		client.UpstreamPasswordEncrypted = encrypted
	}
	client.UpdatedAt = r.nowTime()

	if err := client.Validate(); err != nil {
		return nil, err
	}
	if err := r.repo.Update(ctx, client); err != nil {
		return nil, errors.Wrap(err, "[Registry Update] persist client")
	}
	return client, nil
}

// RotateAPIKey replaces the client's API key with a freshly generated one.
// The previous key stops working immediately.
func (r *Registry) RotateAPIKey(ctx context.Context, clientID string) (*Client, error) {
	client, err := r.repo.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	apiKey, err := vault.GenerateAPIKey(client.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Registry RotateAPIKey] generate api key")
	}
	client.APIKey = apiKey
	client.UpdatedAt = r.nowTime()

	if err := r.repo.Update(ctx, client); err != nil {
		return nil, errors.Wrap(err, "[Registry RotateAPIKey] persist client")
	}
	return client, nil
}

// Get returns a client by id.
func (r *Registry) Get(ctx context.Context, clientID string) (*Client, error) {
	return r.repo.Get(ctx, clientID)
}

// Delete removes a client record. The caller is responsible for invalidating
// the tenant's cached upstream session first; stores with referential
// integrity additionally cascade the session row themselves.
func (r *Registry) Delete(ctx context.Context, clientID string) error {
	return r.repo.Delete(ctx, clientID)
}

// List returns a page of clients.
func (r *Registry) List(ctx context.Context, offset, limit int) ([]*Client, error) {
	return r.repo.List(ctx, offset, limit)
}

// FindByAPIKey resolves an inbound API key to a client. With activeOnly set,
// a matching but deactivated client yields ErrSuspended so the gateway can
// distinguish a suspended tenant from an unknown key.
func (r *Registry) FindByAPIKey(ctx context.Context, apiKey string, activeOnly bool) (*Client, error) {
	client, err := r.repo.FindByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if activeOnly && !client.Active {
		return nil, ErrSuspended
	}
	return client, nil
}

// DecryptPassword recovers a client's upstream password for a login attempt.
func (r *Registry) DecryptPassword(client *Client) (string, error) {
	return r.vault.Decrypt(client.UpstreamPasswordEncrypted)
}
