package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Chain tries providers in configured order, short-circuiting on the
// first success. Provider failures before the end of the chain are
// swallowed (and logged) so later providers can still authenticate the
// request; when the chain is exhausted, the last explicit failure is
// surfaced. If every provider was not applicable the generic
// ErrAuthenticationFailed results.
//
// The chain is constructed once at startup and is read-only afterwards.
type Chain struct {
	providers []Provider
	log       *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainLogger sets the logger used for per-provider diagnostics.
func WithChainLogger(log *slog.Logger) ChainOption {
	return func(c *Chain) { c.log = log }
}

// NewChain builds a provider chain. At least one provider is required.
func NewChain(providers []Provider, opts ...ChainOption) (*Chain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("auth: at least one provider is required")
	}
	c := &Chain{
		providers: append([]Provider(nil), providers...),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Providers returns the configured providers in order.
func (c *Chain) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

// Authenticate runs the chain against the connection.
func (c *Chain) Authenticate(ctx context.Context, conn Connection) (*Identity, error) {
	var lastFailure error

	for _, p := range c.providers {
		id, err := p.Authenticate(ctx, conn)
		if err == nil {
			if id.Scheme == "" {
				id.Scheme = p.Scheme()
			}
			c.log.DebugContext(ctx, "auth.provider.ok", slog.String("scheme", id.Scheme))
			return id, nil
		}
		if errors.Is(err, ErrNotApplicable) {
			c.log.DebugContext(ctx, "auth.provider.skip", slog.String("scheme", p.Scheme()))
			continue
		}
		c.log.DebugContext(ctx, "auth.provider.fail",
			slog.String("scheme", p.Scheme()),
			slog.String("err", err.Error()),
		)
		lastFailure = err
	}

	if lastFailure != nil {
		return nil, lastFailure
	}
	return nil, newError(ErrAuthenticationFailed, "authentication failed")
}
