package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nahueltrek/api/internal/apperr"
)

// PostgresStore keeps OAuth credential blobs in google_credentials, one row per subsystem key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM google_credentials WHERE key=$1`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", key, apperr.ErrCredentialMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credential %s: %w", key, err)
	}
	return blob, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO google_credentials (key, blob, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = NOW()
	`, key, string(blob))
	if err != nil {
		return fmt.Errorf("save credential %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM google_credentials WHERE key=$1`, key); err != nil {
		return fmt.Errorf("delete credential %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
