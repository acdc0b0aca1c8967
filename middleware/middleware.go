// Package middleware wraps an http.Handler with request
// authentication. Protected endpoints reject unauthenticated requests
// with a 401 JSON body; all other endpoints pass through, with the
// identity bound opportunistically when credentials happen to be
// present. Successful authentication binds the identity and the North
// request context to the request's context for downstream handlers.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/northlabs/north-mcp-go/auth"
	"github.com/northlabs/north-mcp-go/internal/logctx"
	"github.com/northlabs/north-mcp-go/northctx"
)

// DefaultProtectedPaths are the endpoints that always require
// authentication, matched exactly after trailing-slash normalization.
var DefaultProtectedPaths = []string{"/mcp", "/sse"}

// DefaultProtectedPrefixes are raw path prefixes that always require
// authentication.
var DefaultProtectedPrefixes = []string{"/messages/"}

// Authenticator produces an identity from connection metadata.
// *auth.Chain satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, conn auth.Connection) (*auth.Identity, error)
}

type newConfig struct {
	protectedPaths    []string
	protectedPrefixes []string
	strictBypass      bool
	log               *slog.Logger
}

// Option configures the Handler.
type Option func(*newConfig)

// WithProtectedPaths replaces the default protected path set. Paths
// match exactly, ignoring a trailing slash.
func WithProtectedPaths(paths ...string) Option {
	return func(c *newConfig) { c.protectedPaths = paths }
}

// WithProtectedPrefixes replaces the default protected prefix set.
// Prefixes match against the raw request path.
func WithProtectedPrefixes(prefixes ...string) Option {
	return func(c *newConfig) { c.protectedPrefixes = prefixes }
}

// WithStrictBypass disables opportunistic authentication on
// unprotected paths: requests to them never run the provider chain and
// never carry an identity.
func WithStrictBypass() Option {
	return func(c *newConfig) { c.strictBypass = true }
}

// WithLogger sets the middleware's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *newConfig) { c.log = log }
}

// Handler is the authentication middleware. Construct with NewHandler.
type Handler struct {
	next         http.Handler
	authn        Authenticator
	paths        map[string]struct{}
	prefixes     []string
	strictBypass bool
	log          *slog.Logger
}

// NewHandler wraps next with authentication backed by authn.
func NewHandler(next http.Handler, authn Authenticator, opts ...Option) (*Handler, error) {
	if next == nil {
		return nil, fmt.Errorf("middleware: next handler is required")
	}
	if authn == nil {
		return nil, fmt.Errorf("middleware: authenticator is required")
	}

	cfg := &newConfig{
		protectedPaths:    DefaultProtectedPaths,
		protectedPrefixes: DefaultProtectedPrefixes,
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	paths := make(map[string]struct{}, len(cfg.protectedPaths))
	for _, p := range cfg.protectedPaths {
		paths[normalizePath(p)] = struct{}{}
	}

	return &Handler{
		next:         next,
		authn:        authn,
		paths:        paths,
		prefixes:     append([]string(nil), cfg.protectedPrefixes...),
		strictBypass: cfg.strictBypass,
		log:          slog.New(logctx.Handler{Handler: cfg.log.Handler()}),
	}, nil
}

// RequireAuth returns a middleware adapter for mux-style composition.
func RequireAuth(authn Authenticator, opts ...Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h, err := NewHandler(next, authn, opts...)
		if err != nil {
			panic(err)
		}
		return h
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	protected := h.isProtected(r.URL.Path)
	if !protected && h.strictBypass {
		h.next.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	id, err := h.authn.Authenticate(ctx, auth.RequestConnection(r))
	if err != nil {
		if protected {
			h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
			writeAuthError(w, err.Error())
			return
		}
		h.log.DebugContext(ctx, "auth.optional.fail", slog.String("err", err.Error()))
		h.next.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	ctx = auth.WithIdentity(ctx, id)
	ctx = northctx.WithRequestContext(ctx, id.RequestContext())
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{
		Scheme:     id.Scheme,
		Email:      id.Email,
		Connectors: len(id.ConnectorAccessTokens),
	})
	h.log.DebugContext(ctx, "auth.check.ok")

	h.next.ServeHTTP(w, r.WithContext(ctx))
}

func (h *Handler) isProtected(path string) bool {
	if _, ok := h.paths[normalizePath(path)]; ok {
		return true
	}
	for _, prefix := range h.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
