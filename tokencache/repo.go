package tokencache

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound indicates no cached session exists for the client
var ErrNotFound = errors.New("upstream session not found")

// Repo is the durable store of cached upstream sessions, keyed by client id.
// Upsert must be atomic per client: a concurrent pair of upserts for the same
// client leaves exactly one of the two full entries, never a field mix.
type Repo interface {
	Get(ctx context.Context, clientID string) (*Entry, error)
	Upsert(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, clientID string) error
	// SweepExpired removes all entries past their expiry and returns the
	// number removed.
	SweepExpired(ctx context.Context) (int, error)
}
