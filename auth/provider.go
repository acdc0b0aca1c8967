package auth

import (
	"context"
	"net/http"
)

// Connection is the subset of an inbound connection providers may
// inspect. It abstracts over HTTP requests and other transports that
// carry header-like metadata.
type Connection interface {
	// Header returns the value for a header name, or "" when absent.
	// Lookup is case-insensitive.
	Header(name string) string
}

// HeaderConnection adapts a plain http.Header to the Connection
// interface.
type HeaderConnection http.Header

func (h HeaderConnection) Header(name string) string {
	return http.Header(h).Get(name)
}

// RequestConnection returns the Connection view of an HTTP request.
func RequestConnection(r *http.Request) Connection {
	return HeaderConnection(r.Header)
}

// Provider is a single authentication strategy. Implementations must be
// safe for concurrent use; Authenticate is called once per request.
type Provider interface {
	// Scheme is a short label for the credential format ("Bearer",
	// "XNorth", "ApiKey", "OAuth"), used in logs.
	Scheme() string

	// Authenticate inspects the connection and returns the identity,
	// ErrNotApplicable when its credential shape is absent, or an
	// explicit failure when the shape is present but invalid. Blocking
	// work (issuer discovery, introspection) must honor ctx.
	Authenticate(ctx context.Context, conn Connection) (*Identity, error)
}
