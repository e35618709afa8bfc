// Package postgres implements clients.Repo on PostgreSQL via pgx.
//
// Expected schema:
//
//	CREATE TABLE clients (
//	    id UUID PRIMARY KEY,
//	    name TEXT NOT NULL,
//	    api_key TEXT NOT NULL UNIQUE,
//	    active BOOLEAN NOT NULL DEFAULT TRUE,
//	    upstream_username TEXT NOT NULL,
//	    upstream_password_encrypted TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/simbridge/go-esim-gateway/clients"
)

const pgUniqueViolation = "23505"

var _ clients.Repo = (*ClientRepo)(nil)

// ClientRepo is the PostgreSQL implementation of clients.Repo.
type ClientRepo struct {
	pool *pgxpool.Pool
}

func NewClientRepo(pool *pgxpool.Pool) *ClientRepo {
	return &ClientRepo{pool: pool}
}

func (r *ClientRepo) Create(ctx context.Context, client *clients.Client) error {
	query := `
		INSERT INTO clients (id, name, api_key, active, upstream_username, upstream_password_encrypted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		client.ID, client.Name, client.APIKey, client.Active,
		client.UpstreamUsername, client.UpstreamPasswordEncrypted,
		client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return clients.ErrDuplicateAPIKey
		}
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *ClientRepo) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	query := `
		SELECT id, name, api_key, active, upstream_username, upstream_password_encrypted, created_at, updated_at
		FROM clients
		WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, clientID))
}

func (r *ClientRepo) Update(ctx context.Context, client *clients.Client) error {
	query := `
		UPDATE clients
		SET name = $2, api_key = $3, active = $4, upstream_username = $5,
		    upstream_password_encrypted = $6, updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		client.ID, client.Name, client.APIKey, client.Active,
		client.UpstreamUsername, client.UpstreamPasswordEncrypted, client.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return clients.ErrDuplicateAPIKey
		}
		return fmt.Errorf("failed to update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return clients.ErrNotFound
	}
	return nil
}

// Delete removes the client and its cached upstream session in one
// transaction, preserving the 1:1 referential integrity between the tables.
func (r *ClientRepo) Delete(ctx context.Context, clientID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM upstream_sessions WHERE client_id = $1`, clientID); err != nil {
		return fmt.Errorf("failed to delete cached session: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return clients.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *ClientRepo) FindByAPIKey(ctx context.Context, apiKey string) (*clients.Client, error) {
	query := `
		SELECT id, name, api_key, active, upstream_username, upstream_password_encrypted, created_at, updated_at
		FROM clients
		WHERE api_key = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, apiKey))
}

func (r *ClientRepo) List(ctx context.Context, offset, limit int) ([]*clients.Client, error) {
	query := `
		SELECT id, name, api_key, active, upstream_username, upstream_password_encrypted, created_at, updated_at
		FROM clients
		ORDER BY created_at
		OFFSET $1 LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var result []*clients.Client
	for rows.Next() {
		client := &clients.Client{}
		if err := rows.Scan(
			&client.ID, &client.Name, &client.APIKey, &client.Active,
			&client.UpstreamUsername, &client.UpstreamPasswordEncrypted,
			&client.CreatedAt, &client.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client row: %w", err)
		}
		result = append(result, client)
	}
	return result, rows.Err()
}

func (r *ClientRepo) scanOne(row pgx.Row) (*clients.Client, error) {
	client := &clients.Client{}
	err := row.Scan(
		&client.ID, &client.Name, &client.APIKey, &client.Active,
		&client.UpstreamUsername, &client.UpstreamPasswordEncrypted,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, clients.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return client, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
