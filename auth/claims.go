package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/northlabs/north-mcp-go/internal/issuerverify"
	"github.com/northlabs/north-mcp-go/internal/tokencodec"
)

// claimsResolver turns a raw identity token into claims. With trusted
// issuers configured the token must verify cryptographically; there is
// no silent fallback to unverified decoding. Without trusted issuers
// only the best-effort unverified decode is used.
type claimsResolver struct {
	verifier *issuerverify.Verifier
	issuers  []string
}

func (r claimsResolver) resolve(ctx context.Context, rawToken string) (map[string]any, error) {
	if rawToken == "" {
		return nil, nil
	}

	if len(r.issuers) > 0 {
		claims, err := r.verifier.Verify(ctx, rawToken, r.issuers)
		if err != nil {
			reason := "verification failed"
			var ve *issuerverify.VerificationError
			if errors.As(err, &ve) && ve.Reason != "" {
				reason = strings.ToLower(ve.Reason)
			}
			return nil, newError(ErrInvalidIdentityToken, "invalid user id token: "+reason)
		}
		return claims, nil
	}

	return tokencodec.DecodeJWTPayload(rawToken), nil
}

// emailFromClaims pulls a string email claim, or "" when absent. A
// missing email yields an anonymous identity for the Legacy and X-North
// providers rather than a failure.
func emailFromClaims(claims map[string]any) string {
	email, _ := claims["email"].(string)
	return email
}

func debugConnectors(log *slog.Logger, ctx context.Context, event string, tokens map[string]string) {
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	log.DebugContext(ctx, event, slog.Any("connectors", names))
}
