package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/northlabs/north-mcp-go/keystore"
	"github.com/northlabs/north-mcp-go/keystore/memory"
)

// APIKeyHeader is the dedicated header consumed by APIKeyProvider.
const APIKeyHeader = "X-API-Key"

// APIKeyProvider authenticates against a set of valid API keys, read
// from the X-API-Key header or, opportunistically, from a plain
// Authorization bearer token. The synthesized email is a stable hash of
// the key, a correlation handle rather than a real identity.
type APIKeyProvider struct {
	store keystore.KeyStore
	log   *slog.Logger
}

// APIKeyOption configures an APIKeyProvider.
type APIKeyOption func(*APIKeyProvider)

// WithAPIKeyLogger sets the provider's logger.
func WithAPIKeyLogger(log *slog.Logger) APIKeyOption {
	return func(p *APIKeyProvider) { p.log = log }
}

// NewAPIKeyProvider builds a provider backed by the given key store.
func NewAPIKeyProvider(store keystore.KeyStore, opts ...APIKeyOption) *APIKeyProvider {
	p := &APIKeyProvider{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewStaticAPIKeyProvider builds a provider over a fixed in-memory key
// set.
func NewStaticAPIKeyProvider(validKeys []string, opts ...APIKeyOption) *APIKeyProvider {
	return NewAPIKeyProvider(memory.New(validKeys...), opts...)
}

func (p *APIKeyProvider) Scheme() string { return "ApiKey" }

func (p *APIKeyProvider) Authenticate(ctx context.Context, conn Connection) (*Identity, error) {
	if key := conn.Header(APIKeyHeader); key != "" {
		ok, err := p.store.Contains(ctx, key)
		if err != nil {
			p.log.ErrorContext(ctx, "auth.apikey.store.fail", slog.String("err", err.Error()))
			return nil, newError(ErrAuthenticationFailed, "invalid api key")
		}
		if !ok {
			return nil, newError(ErrAuthenticationFailed, "invalid api key")
		}
		return p.identityFor(key), nil
	}

	// Bearer fallback is opportunistic: the Authorization header may
	// belong to another provider in the chain, so a miss here is
	// not-applicable rather than a failure.
	authz := conn.Header("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, ErrNotApplicable
	}
	key := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if key == "" {
		return nil, ErrNotApplicable
	}
	ok, err := p.store.Contains(ctx, key)
	if err != nil {
		p.log.ErrorContext(ctx, "auth.apikey.store.fail", slog.String("err", err.Error()))
		return nil, ErrNotApplicable
	}
	if !ok {
		return nil, ErrNotApplicable
	}
	return p.identityFor(key), nil
}

func (p *APIKeyProvider) identityFor(key string) *Identity {
	sum := sha256.Sum256([]byte(key))
	return &Identity{
		Email:                 "api-key-user-" + hex.EncodeToString(sum[:])[:16],
		ConnectorAccessTokens: map[string]string{},
	}
}
