package clients

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound indicates no client matched the lookup
	ErrNotFound = errors.New("client not found")
	// ErrDuplicateAPIKey indicates a uniqueness violation on the api key
	ErrDuplicateAPIKey = errors.New("api key already exists")
)

// Repo is the durable store of client records. Implementations must keep
// api_key unique across all clients and must cascade-delete the tenant's
// cached upstream session on Delete where the store supports it.
type Repo interface {
	Create(ctx context.Context, client *Client) error
	Get(ctx context.Context, clientID string) (*Client, error)
	Update(ctx context.Context, client *Client) error
	Delete(ctx context.Context, clientID string) error
	FindByAPIKey(ctx context.Context, apiKey string) (*Client, error)
	List(ctx context.Context, offset, limit int) ([]*Client, error)
}
