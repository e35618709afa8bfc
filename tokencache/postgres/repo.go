// Package postgres implements tokencache.Repo on PostgreSQL via pgx.
//
// Expected schema:
//
//	CREATE TABLE upstream_sessions (
//	    client_id UUID PRIMARY KEY REFERENCES clients (id) ON DELETE CASCADE,
//	    access_token TEXT NOT NULL,
//	    refresh_token TEXT,
//	    expires_at TIMESTAMPTZ NOT NULL,
//	    identifiers JSONB,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/simbridge/go-esim-gateway/tokencache"
)

var _ tokencache.Repo = (*TokenRepo)(nil)

// TokenRepo is the PostgreSQL implementation of tokencache.Repo. The single
// INSERT ... ON CONFLICT statement gives Upsert its per-client atomicity.
type TokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

func (r *TokenRepo) Get(ctx context.Context, clientID string) (*tokencache.Entry, error) {
	query := `
		SELECT client_id, access_token, refresh_token, expires_at, identifiers, updated_at
		FROM upstream_sessions
		WHERE client_id = $1
	`
	entry := &tokencache.Entry{}
	var refreshToken *string
	var identifiers []byte
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&entry.ClientID, &entry.AccessToken, &refreshToken,
		&entry.ExpiresAt, &identifiers, &entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tokencache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached session: %w", err)
	}
	if refreshToken != nil {
		entry.RefreshToken = *refreshToken
	}
	if len(identifiers) > 0 {
		if err := json.Unmarshal(identifiers, &entry.Identifiers); err != nil {
			return nil, fmt.Errorf("failed to decode session identifiers: %w", err)
		}
	}
	return entry, nil
}

func (r *TokenRepo) Upsert(ctx context.Context, entry *tokencache.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	var identifiers []byte
	if len(entry.Identifiers) > 0 {
		encoded, err := json.Marshal(entry.Identifiers)
		if err != nil {
			return fmt.Errorf("failed to encode session identifiers: %w", err)
		}
		identifiers = encoded
	}

	query := `
		INSERT INTO upstream_sessions (client_id, access_token, refresh_token, expires_at, identifiers, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (client_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    identifiers = EXCLUDED.identifiers,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, query,
		entry.ClientID, entry.AccessToken, entry.RefreshToken,
		entry.ExpiresAt, identifiers, entry.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert cached session: %w", err)
	}
	return nil
}

func (r *TokenRepo) Delete(ctx context.Context, clientID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM upstream_sessions WHERE client_id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete cached session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tokencache.ErrNotFound
	}
	return nil
}

func (r *TokenRepo) SweepExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM upstream_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
