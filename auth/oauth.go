package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator is a caller-supplied OAuth validation callback. It
// returns the token's claims, or nil (with or without an error) when
// the token is invalid. It may block; it is always invoked with the
// request context.
type TokenValidator func(ctx context.Context, token string) (map[string]any, error)

// OAuthConfig selects exactly one validation strategy, attempted in
// priority order: Validator, then JWTSecret, then IntrospectionURL. At
// least one must be set.
type OAuthConfig struct {
	// Validator is a custom validation callback.
	Validator TokenValidator

	// JWTSecret enables local JWT verification with a shared secret.
	JWTSecret string
	// JWTAlgorithm is the expected signing algorithm. Default "HS256".
	JWTAlgorithm string

	// IntrospectionURL enables RFC 7662 remote introspection. The POST
	// authenticates with HTTP Basic client credentials and expects an
	// {"active": true, ...} JSON response.
	IntrospectionURL string
	ClientID         string
	ClientSecret     string

	// EmailClaim is the claim holding the principal's email. Default
	// "email". The claim must be present and non-empty.
	EmailClaim string
}

// connectorTokensClaim is the conventional claim carrying delegated
// connector tokens inside OAuth claims.
const connectorTokensClaim = "connector_access_tokens"

// OAuthProvider authenticates plain OAuth bearer tokens on the
// Authorization header. Any other Authorization shape is not
// applicable.
type OAuthProvider struct {
	cfg     OAuthConfig
	httpCli *http.Client
	log     *slog.Logger
}

// OAuthOption configures an OAuthProvider.
type OAuthOption func(*OAuthProvider)

// WithOAuthLogger sets the provider's logger.
func WithOAuthLogger(log *slog.Logger) OAuthOption {
	return func(p *OAuthProvider) { p.log = log }
}

// WithOAuthHTTPClient overrides the client used for introspection.
func WithOAuthHTTPClient(cli *http.Client) OAuthOption {
	return func(p *OAuthProvider) { p.httpCli = cli }
}

// NewOAuthProvider builds the provider, failing fast when no validation
// strategy is configured.
func NewOAuthProvider(cfg OAuthConfig, opts ...OAuthOption) (*OAuthProvider, error) {
	if cfg.Validator == nil && cfg.JWTSecret == "" && cfg.IntrospectionURL == "" {
		return nil, fmt.Errorf("auth: oauth provider requires a validator, jwt secret, or introspection endpoint")
	}
	if cfg.JWTAlgorithm == "" {
		cfg.JWTAlgorithm = "HS256"
	}
	if cfg.EmailClaim == "" {
		cfg.EmailClaim = "email"
	}
	p := &OAuthProvider{
		cfg:     cfg,
		httpCli: &http.Client{Timeout: 10 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OAuthProvider) Scheme() string { return "OAuth" }

func (p *OAuthProvider) Authenticate(ctx context.Context, conn Connection) (*Identity, error) {
	authz := conn.Header("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, ErrNotApplicable
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if token == "" {
		return nil, ErrNotApplicable
	}

	claims, err := p.validate(ctx, token)
	if err != nil {
		return nil, err
	}

	email, _ := claims[p.cfg.EmailClaim].(string)
	if email == "" {
		return nil, newError(ErrAuthenticationFailed, "email required in oauth token")
	}

	connectorTokens := map[string]string{}
	if raw, ok := claims[connectorTokensClaim].(map[string]any); ok {
		for name, v := range raw {
			if tok, ok := v.(string); ok {
				connectorTokens[name] = tok
			}
		}
	}

	return &Identity{
		Email:                 email,
		ConnectorAccessTokens: connectorTokens,
		RawUserIDToken:        token,
		Claims:                claims,
	}, nil
}

func (p *OAuthProvider) validate(ctx context.Context, token string) (map[string]any, error) {
	switch {
	case p.cfg.Validator != nil:
		claims, err := p.cfg.Validator(ctx, token)
		if err != nil {
			p.log.DebugContext(ctx, "auth.oauth.validator.fail", slog.String("err", err.Error()))
			return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
		}
		if claims == nil {
			return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
		}
		return claims, nil

	case p.cfg.JWTSecret != "":
		return p.validateJWT(ctx, token)

	default:
		return p.introspect(ctx, token)
	}
}

func (p *OAuthProvider) validateJWT(ctx context.Context, token string) (map[string]any, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{p.cfg.JWTAlgorithm}))
	parsed, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(p.cfg.JWTSecret), nil
	})
	if err != nil {
		p.log.DebugContext(ctx, "auth.oauth.jwt.fail", slog.String("err", err.Error()))
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	return claims, nil
}

func (p *OAuthProvider) introspect(ctx context.Context, token string) (map[string]any, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.IntrospectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)

	resp, err := p.httpCli.Do(req)
	if err != nil {
		p.log.DebugContext(ctx, "auth.oauth.introspect.fail", slog.String("err", err.Error()))
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	if active, _ := claims["active"].(bool); !active {
		return nil, newError(ErrAuthenticationFailed, "invalid oauth token")
	}
	return claims, nil
}
