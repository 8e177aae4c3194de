package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnavailable means a named credential could not be resolved. The job
// depending on it is marked failed; other jobs still run.
var ErrUnavailable = errors.New("credential unavailable")

// Store resolves a secret by its reference name.
type Store interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// EnvStore resolves credentials from environment variables. The reference
// "audit-api" with prefix "DENYWATCH_SECRET" reads DENYWATCH_SECRET_AUDIT_API.
type EnvStore struct {
	Prefix string
}

// NewEnvStore creates an EnvStore with the given variable prefix.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{Prefix: prefix}
}

func (s *EnvStore) Resolve(_ context.Context, name string) (string, error) {
	key := s.Prefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s not set", ErrUnavailable, key)
}
