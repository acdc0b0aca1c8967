package auth

import (
	"context"
	"errors"

	"github.com/northlabs/north-mcp-go/northctx"
)

// Identity is the authenticated principal for a request. It is
// constructed by a Provider, lives for the duration of one request, and
// is never persisted. Treat it as immutable once constructed.
type Identity struct {
	// Email of the principal. Empty means authenticated but anonymous.
	Email string

	// ConnectorAccessTokens maps connector name to the delegated access
	// token forwarded for it.
	ConnectorAccessTokens map[string]string

	// RawUserIDToken is the original identity token as presented, when
	// one was.
	RawUserIDToken string

	// Claims is the decoded identity token payload, when one was
	// presented. Derived from RawUserIDToken.
	Claims map[string]any

	// Scheme names the provider that produced this identity. Stamped by
	// the chain; empty for identities constructed directly.
	Scheme string
}

// RequestContext projects the identity into the ambient bundle handler
// code reads through northctx.
func (id *Identity) RequestContext() northctx.RequestContext {
	tokens := id.ConnectorAccessTokens
	if tokens == nil {
		tokens = map[string]string{}
	}
	return northctx.RequestContext{
		UserIDToken:     id.RawUserIDToken,
		ConnectorTokens: tokens,
		Claims:          id.Claims,
	}
}

type identityKey struct{}

// WithIdentity binds the authenticated identity to the request context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// GetAuthenticatedUserOptional returns the bound identity or nil.
func GetAuthenticatedUserOptional(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// GetAuthenticatedUser returns the bound identity and fails when code
// requires authentication but none is bound.
func GetAuthenticatedUser(ctx context.Context) (*Identity, error) {
	if id := GetAuthenticatedUserOptional(ctx); id != nil {
		return id, nil
	}
	return nil, errors.New("user not found in context")
}
