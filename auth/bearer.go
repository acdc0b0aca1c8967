package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/northlabs/north-mcp-go/internal/issuerverify"
	"github.com/northlabs/north-mcp-go/internal/tokencodec"
)

// LegacyBearerProvider authenticates the legacy Authorization header
// carrying a base64-encoded JSON payload of server secret, identity
// token, and connector tokens. For backward compatibility a prefix-less
// value that looks like base64 is accepted as well.
type LegacyBearerProvider struct {
	serverSecret string
	resolver     claimsResolver
	log          *slog.Logger
}

// LegacyBearerOption configures a LegacyBearerProvider.
type LegacyBearerOption func(*LegacyBearerProvider)

// WithBearerTrustedIssuers switches identity token handling from
// unverified decode to signature verification against the listed
// issuers.
func WithBearerTrustedIssuers(v *issuerverify.Verifier, issuers []string) LegacyBearerOption {
	return func(p *LegacyBearerProvider) {
		p.resolver.verifier = v
		p.resolver.issuers = append([]string(nil), issuers...)
	}
}

// WithBearerLogger sets the provider's logger.
func WithBearerLogger(log *slog.Logger) LegacyBearerOption {
	return func(p *LegacyBearerProvider) { p.log = log }
}

// NewLegacyBearerProvider builds the provider. An empty serverSecret
// disables the shared-secret check.
func NewLegacyBearerProvider(serverSecret string, opts ...LegacyBearerOption) *LegacyBearerProvider {
	p := &LegacyBearerProvider{
		serverSecret: serverSecret,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LegacyBearerProvider) Scheme() string { return "Bearer" }

func (p *LegacyBearerProvider) Authenticate(ctx context.Context, conn Connection) (*Identity, error) {
	raw := conn.Header("Authorization")
	if raw == "" {
		return nil, ErrNotApplicable
	}

	// Either "Bearer <b64>" or a bare base64 document; anything else is
	// someone else's Authorization header.
	if !strings.HasPrefix(raw, "Bearer ") && !tokencodec.LooksLikeBase64(raw) {
		return nil, ErrNotApplicable
	}

	tokens, err := tokencodec.DecodeLegacyBearer(raw)
	if err != nil {
		p.log.DebugContext(ctx, "auth.bearer.decode.fail", slog.String("err", err.Error()))
		msg := "invalid authorization header"
		if errors.Is(err, tokencodec.ErrMalformed) {
			msg = strings.TrimPrefix(err.Error(), tokencodec.ErrMalformed.Error()+": ")
		}
		return nil, newError(ErrMalformedToken, msg)
	}

	providedSecret := ""
	if tokens.ServerSecret != nil {
		providedSecret = *tokens.ServerSecret
	}
	if p.serverSecret != "" && providedSecret != p.serverSecret {
		p.log.DebugContext(ctx, "auth.bearer.secret.mismatch")
		return nil, newError(ErrAccessDenied, "access denied")
	}

	rawIDToken := ""
	if tokens.UserIDToken != nil {
		rawIDToken = *tokens.UserIDToken
	}
	claims, err := p.resolver.resolve(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	debugConnectors(p.log, ctx, "auth.bearer.ok", tokens.ConnectorAccessTokens)
	return &Identity{
		Email:                 emailFromClaims(claims),
		ConnectorAccessTokens: tokens.ConnectorAccessTokens,
		RawUserIDToken:        rawIDToken,
		Claims:                claims,
	}, nil
}
