// Package northctx exposes the North request context: the raw identity
// token, delegated connector tokens, and decoded claims extracted from
// an inbound request. The context is bound per request by the
// authentication middleware and read by tool handler code; a request
// that presented no credentials carries the zero-value context, so
// lookups never need a "missing" branch.
package northctx

import (
	"context"
	"net/http"

	"github.com/northlabs/north-mcp-go/internal/tokencodec"
)

// Header names consumed by the X-North authentication scheme.
const (
	UserIDTokenHeader     = "X-North-ID-Token"
	ConnectorTokensHeader = "X-North-Connector-Tokens"
	ServerSecretHeader    = "X-North-Server-Secret"
)

// RequestContext holds North-specific request state. The zero value is
// the valid "anonymous" context. Values are immutable once bound.
type RequestContext struct {
	UserIDToken     string
	ConnectorTokens map[string]string
	Claims          map[string]any
}

// IsZero reports whether no credential material was extracted.
func (rc RequestContext) IsZero() bool {
	return rc.UserIDToken == "" && len(rc.ConnectorTokens) == 0 && len(rc.Claims) == 0
}

// ConnectorToken returns the delegated access token for a connector
// name, if present.
func (rc RequestContext) ConnectorToken(name string) (string, bool) {
	tok, ok := rc.ConnectorTokens[name]
	return tok, ok
}

type requestContextKey struct{}

// WithRequestContext binds rc to the context for the duration of a
// request. Derived contexts die with the handler call frame, so the
// binding unwinds automatically on completion, error, or panic and can
// never leak into a sibling request.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the bound RequestContext, or the zero value when
// none was bound. It never fails.
func FromContext(ctx context.Context) RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(RequestContext); ok {
		return rc
	}
	return RequestContext{}
}

// FromRequest returns the RequestContext for an in-flight HTTP request.
// It prefers the context bound by the middleware and falls back to a
// best-effort, unverified reconstruction from the request headers for
// integration points the middleware chain did not wrap. It never fails;
// when nothing can be reconstructed the zero value is returned.
func FromRequest(r *http.Request) RequestContext {
	if r == nil {
		return RequestContext{}
	}
	if rc := FromContext(r.Context()); !rc.IsZero() {
		return rc
	}
	return fromHeaders(r.Header)
}

func fromHeaders(h http.Header) RequestContext {
	idToken := h.Get(UserIDTokenHeader)
	connectorTokens, _ := tokencodec.DecodeConnectorTokens(h.Get(ConnectorTokensHeader), false)

	if idToken != "" || len(connectorTokens) > 0 {
		return RequestContext{
			UserIDToken:     idToken,
			ConnectorTokens: connectorTokens,
			Claims:          tokencodec.DecodeJWTPayload(idToken),
		}
	}

	authz := h.Get("Authorization")
	if authz == "" {
		return RequestContext{}
	}
	tokens, err := tokencodec.DecodeLegacyBearer(authz)
	if err != nil {
		return RequestContext{}
	}
	rc := RequestContext{ConnectorTokens: tokens.ConnectorAccessTokens}
	if tokens.UserIDToken != nil {
		rc.UserIDToken = *tokens.UserIDToken
		rc.Claims = tokencodec.DecodeJWTPayload(rc.UserIDToken)
	}
	return rc
}
