package auth

import (
	"context"
	"log/slog"

	"github.com/northlabs/north-mcp-go/internal/issuerverify"
)

// backendConfig collects the settings for the default backend.
type backendConfig struct {
	serverSecret   string
	trustedIssuers []string
	providers      []Provider
	log            *slog.Logger
}

// BackendOption configures NewBackend.
type BackendOption func(*backendConfig)

// WithServerSecret enables the shared-secret check on the default
// providers.
func WithServerSecret(secret string) BackendOption {
	return func(c *backendConfig) { c.serverSecret = secret }
}

// WithTrustedIssuers switches identity token handling from unverified
// decode to signature verification against the listed issuer URLs.
func WithTrustedIssuers(issuers ...string) BackendOption {
	return func(c *backendConfig) { c.trustedIssuers = append([]string(nil), issuers...) }
}

// WithProviders replaces the default provider set entirely. Options
// affecting the default providers are ignored in that case.
func WithProviders(providers ...Provider) BackendOption {
	return func(c *backendConfig) { c.providers = providers }
}

// WithLogger sets the logger shared by the chain and the default
// providers.
func WithLogger(log *slog.Logger) BackendOption {
	return func(c *backendConfig) { c.log = log }
}

// NewBackend builds the standard authentication chain. With no
// WithProviders override, the chain prefers the X-North headers and
// falls back to the legacy Authorization bearer payload; the historical
// secret-only backend is this chain with just a server secret
// configured. The supplied context bounds background JWKS refreshes and
// should be the server's root context.
func NewBackend(ctx context.Context, opts ...BackendOption) (*Chain, error) {
	cfg := &backendConfig{log: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	providers := cfg.providers
	if providers == nil {
		var verifier *issuerverify.Verifier
		if len(cfg.trustedIssuers) > 0 {
			verifier = issuerverify.New(ctx, issuerverify.WithLogger(cfg.log))
		}
		providers = []Provider{
			NewXNorthProvider(cfg.serverSecret,
				WithXNorthTrustedIssuers(verifier, cfg.trustedIssuers),
				WithXNorthLogger(cfg.log),
			),
			NewLegacyBearerProvider(cfg.serverSecret,
				WithBearerTrustedIssuers(verifier, cfg.trustedIssuers),
				WithBearerLogger(cfg.log),
			),
		}
	}

	return NewChain(providers, WithChainLogger(cfg.log))
}
