// Package issuerverify validates user identity tokens against a set of
// trusted OIDC issuers. Verification resolves the issuer's published
// signing keys via OpenID discovery and JWKS, then checks the token
// signature and issuer claim. Audience validation is intentionally
// skipped; these tokens are identity assertions, not access tokens.
package issuerverify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/northlabs/north-mcp-go/internal/tokencodec"
)

const defaultFetchTimeout = 10 * time.Second

// VerificationError carries the human-readable reason a token failed
// verification. The reason is safe to surface to clients.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string { return e.Reason }

func fail(reason string) error { return &VerificationError{Reason: reason} }

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger used for verification diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(v *Verifier) { v.log = log }
}

// WithFetchTimeout bounds each discovery and JWKS network fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// Verifier verifies identity tokens against trusted issuers. Signing
// keys are cached per JWKS URI; a kid miss forces a re-fetch rather than
// serving a stale key. Safe for concurrent use.
type Verifier struct {
	ctx     context.Context
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	keyfns  map[string]keyfunc.Keyfunc
	httpCli *http.Client
}

// New constructs a Verifier. The supplied context bounds the lifetime of
// background JWKS refreshes; it should outlive all requests (typically
// the server's root context).
func New(ctx context.Context, opts ...Option) *Verifier {
	v := &Verifier{
		ctx:     ctx,
		timeout: defaultFetchTimeout,
		log:     slog.Default(),
		keyfns:  map[string]keyfunc.Keyfunc{},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.httpCli = &http.Client{Timeout: v.timeout}
	return v
}

// Verify checks rawToken against trustedIssuers and returns the now
// trusted claims. Every failure is a *VerificationError with a concise
// reason; network failures never propagate as anything else.
func (v *Verifier) Verify(ctx context.Context, rawToken string, trustedIssuers []string) (map[string]any, error) {
	if rawToken == "" {
		return nil, fail("user ID token missing")
	}
	if len(trustedIssuers) == 0 {
		return nil, fail("trusted issuers not configured")
	}

	unverified := tokencodec.DecodeJWTPayload(rawToken)
	if unverified == nil {
		return nil, fail("unable to decode user ID token")
	}

	issuer, _ := unverified["iss"].(string)
	if issuer == "" {
		return nil, fail("token missing issuer")
	}
	if !containsIssuer(trustedIssuers, issuer) {
		return nil, fail("untrusted issuer: " + issuer)
	}

	jwksURI, err := v.discoverJWKSURI(ctx, issuer)
	if err != nil {
		return nil, err
	}

	header := tokencodec.DecodeJWTHeader(rawToken)
	if header == nil {
		return nil, fail("unable to inspect token header")
	}
	kid, _ := header["kid"].(string)
	if kid == "" {
		return nil, fail("token missing key identifier")
	}
	alg, _ := header["alg"].(string)
	if alg == "" {
		alg = "RS256"
	}

	kf, err := v.keyfuncFor(jwksURI)
	if err != nil {
		v.log.DebugContext(ctx, "issuerverify.jwks.fail", slog.String("jwks_uri", jwksURI), slog.String("err", err.Error()))
		return nil, fail("token signature verification failed")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithIssuer(issuer),
	)
	parsed, err := parser.Parse(rawToken, kf.Keyfunc)
	if err != nil {
		v.log.DebugContext(ctx, "issuerverify.signature.fail", slog.String("err", err.Error()))
		return nil, fail("token signature verification failed")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fail("token signature verification failed")
	}
	return claims, nil
}

// discoverJWKSURI fetches the issuer's OpenID discovery document and
// extracts jwks_uri. The fetch is bounded by the configured timeout.
func (v *Verifier) discoverJWKSURI(ctx context.Context, issuer string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	fetchCtx = oidc.ClientContext(fetchCtx, v.httpCli)

	provider, err := oidc.NewProvider(fetchCtx, issuer)
	if err != nil {
		v.log.ErrorContext(ctx, "issuerverify.discovery.fail", slog.String("issuer", issuer), slog.String("err", err.Error()))
		return "", fail("failed to verify token: unable to fetch issuer configuration")
	}

	var meta struct {
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil || meta.JwksURI == "" {
		return "", fail("issuer configuration missing jwks_uri")
	}
	return meta.JwksURI, nil
}

// keyfuncFor returns the cached keyfunc for a JWKS URI, constructing one
// on first use. keyfunc re-fetches the key set when asked for an unknown
// kid, so an unmatched kid is never resolved from stale cache contents.
func (v *Verifier) keyfuncFor(jwksURI string) (keyfunc.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if kf, ok := v.keyfns[jwksURI]; ok {
		return kf, nil
	}
	kf, err := keyfunc.NewDefaultCtx(v.ctx, []string{jwksURI})
	if err != nil {
		return nil, err
	}
	v.keyfns[jwksURI] = kf
	return kf, nil
}

func containsIssuer(trusted []string, issuer string) bool {
	for _, t := range trusted {
		if t == issuer {
			return true
		}
	}
	return false
}
