// Package redis implements tokencache.Repo on Redis. Entries are stored as
// JSON under "session:<client_id>" with a TTL matching the token expiry, so
// Redis itself evicts dead entries and SweepExpired has nothing to do.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/simbridge/go-esim-gateway/tokencache"
)

const keyPrefix = "session:"

var _ tokencache.Repo = (*TokenRepo)(nil)

// TokenRepo is the Redis implementation of tokencache.Repo. A single SET is
// atomic per key, which gives Upsert its per-client atomicity.
type TokenRepo struct {
	client *redis.Client
}

func NewTokenRepo(client *redis.Client) *TokenRepo {
	return &TokenRepo{client: client}
}

func (r *TokenRepo) Get(ctx context.Context, clientID string) (*tokencache.Entry, error) {
	data, err := r.client.Get(ctx, keyPrefix+clientID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, tokencache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached session: %w", err)
	}

	entry := &tokencache.Entry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached session: %w", err)
	}
	return entry, nil
}

func (r *TokenRepo) Upsert(ctx context.Context, entry *tokencache.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cached session: %w", err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if err := r.client.Set(ctx, keyPrefix+entry.ClientID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to upsert cached session: %w", err)
	}
	return nil
}

func (r *TokenRepo) Delete(ctx context.Context, clientID string) error {
	removed, err := r.client.Del(ctx, keyPrefix+clientID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete cached session: %w", err)
	}
	if removed == 0 {
		return tokencache.ErrNotFound
	}
	return nil
}

// SweepExpired is a no-op: Redis evicts entries through key TTLs.
func (r *TokenRepo) SweepExpired(_ context.Context) (int, error) {
	return 0, nil
}
