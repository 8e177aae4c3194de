package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// SecretStore abstracts the DB lookup for testability.
type SecretStore interface {
	LookupByName(ctx context.Context, name string) (string, error)
}

// sqlSecretStore is the real implementation using *sql.DB (pgx driver).
type sqlSecretStore struct {
	db *sql.DB
}

func (s *sqlSecretStore) LookupByName(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT secret_value FROM credentials WHERE name = $1 AND revoked_at IS NULL`,
		name,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: no credential named %q", ErrUnavailable, name)
		}
		return "", fmt.Errorf("sqlSecretStore.LookupByName: %w", err)
	}
	return value, nil
}

// PostgresStore resolves credentials from the credentials table.
type PostgresStore struct {
	store  SecretStore
	logger *zap.Logger
}

// NewPostgresStore creates a credential store backed by PostgreSQL.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		store:  &sqlSecretStore{db: db},
		logger: logger,
	}
}

// newPostgresStoreWithLookup creates a store with an injected lookup (for testing).
func newPostgresStoreWithLookup(store SecretStore, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{store: store, logger: logger}
}

// Resolve looks up the named secret. DB errors are surfaced as
// ErrUnavailable so the caller treats them as a job-scoped failure, not a
// run-fatal condition.
func (s *PostgresStore) Resolve(ctx context.Context, name string) (string, error) {
	value, err := s.store.LookupByName(ctx, name)
	if err != nil {
		s.logger.Warn("credential lookup failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}
