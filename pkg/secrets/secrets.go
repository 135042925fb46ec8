// Package secrets resolves credentials such as the token signing key from
// Vault, falling back to the environment.
package secrets

import (
	"context"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Well known secret keys
const (
	KeyJWTSecret  = "jwt_secret"
	KeyDBPassword = "db_password"
)

// EnvKey converts a secret key to its environment variable name,
// jwt_secret becomes JWT_SECRET
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// FromEnvironment looks a secret up in the environment only
func FromEnvironment(key string) (string, error) {
	value := os.Getenv(EnvKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}
