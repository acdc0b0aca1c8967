// Package keystore defines the lookup interface the API key
// authentication provider validates against.
package keystore

import "context"

// KeyStore answers membership queries for valid API keys.
// Implementations must be safe for concurrent use.
type KeyStore interface {
	// Contains reports whether key is a valid API key. An error means
	// the store itself failed, not that the key is invalid.
	Contains(ctx context.Context, key string) (bool, error)
}
