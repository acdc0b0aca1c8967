package auth

import (
	"context"
	"log/slog"

	"github.com/northlabs/north-mcp-go/internal/issuerverify"
	"github.com/northlabs/north-mcp-go/internal/tokencodec"
	"github.com/northlabs/north-mcp-go/northctx"
)

// XNorthProvider authenticates the dedicated X-North-* headers: the
// identity token, the Base64URL connector-token map, and the shared
// server secret. It is applicable when any of the three headers is
// present, which is why the default backend orders it ahead of the
// legacy bearer provider.
type XNorthProvider struct {
	serverSecret string
	resolver     claimsResolver
	log          *slog.Logger
}

// XNorthOption configures an XNorthProvider.
type XNorthOption func(*XNorthProvider)

// WithXNorthTrustedIssuers switches identity token handling from
// unverified decode to signature verification against the listed
// issuers. Once configured, a token that fails verification fails the
// whole authentication; there is no fallback to unverified decoding.
func WithXNorthTrustedIssuers(v *issuerverify.Verifier, issuers []string) XNorthOption {
	return func(p *XNorthProvider) {
		p.resolver.verifier = v
		p.resolver.issuers = append([]string(nil), issuers...)
	}
}

// WithXNorthLogger sets the provider's logger.
func WithXNorthLogger(log *slog.Logger) XNorthOption {
	return func(p *XNorthProvider) { p.log = log }
}

// NewXNorthProvider builds the provider. An empty serverSecret disables
// the shared-secret check.
func NewXNorthProvider(serverSecret string, opts ...XNorthOption) *XNorthProvider {
	p := &XNorthProvider{
		serverSecret: serverSecret,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *XNorthProvider) Scheme() string { return "XNorth" }

func (p *XNorthProvider) Authenticate(ctx context.Context, conn Connection) (*Identity, error) {
	idToken := conn.Header(northctx.UserIDTokenHeader)
	rawConnectorTokens := conn.Header(northctx.ConnectorTokensHeader)
	providedSecret := conn.Header(northctx.ServerSecretHeader)

	if idToken == "" && rawConnectorTokens == "" && providedSecret == "" {
		return nil, ErrNotApplicable
	}

	connectorTokens := map[string]string{}
	if rawConnectorTokens != "" {
		var err error
		connectorTokens, err = tokencodec.DecodeConnectorTokens(rawConnectorTokens, true)
		if err != nil {
			p.log.DebugContext(ctx, "auth.xnorth.connectors.fail", slog.String("err", err.Error()))
			return nil, newError(ErrMalformedToken, "invalid connector tokens format")
		}
	}

	if p.serverSecret != "" && providedSecret != p.serverSecret {
		p.log.DebugContext(ctx, "auth.xnorth.secret.mismatch")
		return nil, newError(ErrAccessDenied, "access denied")
	}

	claims, err := p.resolver.resolve(ctx, idToken)
	if err != nil {
		return nil, err
	}

	debugConnectors(p.log, ctx, "auth.xnorth.ok", connectorTokens)
	return &Identity{
		Email:                 emailFromClaims(claims),
		ConnectorAccessTokens: connectorTokens,
		RawUserIDToken:        idToken,
		Claims:                claims,
	}, nil
}
