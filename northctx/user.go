package northctx

import (
	"context"

	"github.com/northlabs/north-mcp-go/internal/tokencodec"
)

// User is a convenience view over the identity token claims.
type User struct {
	RawToken string
	Claims   map[string]any

	Email           string
	Name            string
	ConnectorID     string
	ConnectorUserID string
}

// UserFromClaims builds a User from a raw token and its claims,
// flattening the federated_claims sub-object when present.
func UserFromClaims(rawToken string, claims map[string]any) *User {
	u := &User{RawToken: rawToken, Claims: claims}
	u.Email, _ = claims["email"].(string)
	u.Name, _ = claims["name"].(string)
	if fed, ok := claims["federated_claims"].(map[string]any); ok {
		u.ConnectorID, _ = fed["connector_id"].(string)
		u.ConnectorUserID, _ = fed["user_id"].(string)
	}
	return u
}

// UserFromContext returns a parsed view of the current user, or nil when
// there is no identity token or its payload cannot be decoded.
func UserFromContext(ctx context.Context) *User {
	rc := FromContext(ctx)
	if rc.UserIDToken == "" {
		return nil
	}
	claims := rc.Claims
	if claims == nil {
		claims = tokencodec.DecodeJWTPayload(rc.UserIDToken)
	}
	if claims == nil {
		return nil
	}
	return UserFromClaims(rc.UserIDToken, claims)
}
