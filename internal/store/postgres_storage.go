/**
 * @description
 * This file provides the PostgreSQL implementation of the `Storage` contract. Every
 * wallet field is one row of the `wallet_storage` table keyed by its (namespaced) key.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 */

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const walletStorageSchema = `
CREATE TABLE IF NOT EXISTS wallet_storage (
	storage_key TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStorage is a Storage backed by a pgx connection pool.
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage creates a new instance of PostgresStorage.
func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// EnsureSchema creates the wallet_storage table when it does not exist yet.
func (r *PostgresStorage) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, walletStorageSchema)
	return err
}

func (r *PostgresStorage) Read(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx, "SELECT value FROM wallet_storage WHERE storage_key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *PostgresStorage) Write(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	query := `
		INSERT INTO wallet_storage (storage_key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (storage_key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, key, value)
	return err
}

func (r *PostgresStorage) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresStorage) Close() error {
	r.db.Close()
	return nil
}
