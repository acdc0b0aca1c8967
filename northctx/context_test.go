package northctx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlabs/north-mcp-go/internal/tokencodec"
)

func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestFromContextZeroValue(t *testing.T) {
	rc := FromContext(context.Background())
	assert.True(t, rc.IsZero())
	assert.Empty(t, rc.UserIDToken)

	_, ok := rc.ConnectorToken("gmail")
	assert.False(t, ok)
}

func TestRequestContextRoundTrip(t *testing.T) {
	want := RequestContext{
		UserIDToken:     "raw",
		ConnectorTokens: map[string]string{"gmail": "tok"},
		Claims:          map[string]any{"email": "foo@bar.com"},
	}
	got := FromContext(WithRequestContext(context.Background(), want))
	assert.Equal(t, want, got)
	assert.False(t, got.IsZero())

	tok, ok := got.ConnectorToken("gmail")
	require.True(t, ok)
	assert.Equal(t, "tok", tok)
}

func TestFromRequestPrefersBoundContext(t *testing.T) {
	bound := RequestContext{UserIDToken: "bound-token"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRequestContext(req.Context(), bound))
	req.Header.Set(UserIDTokenHeader, "header-token")

	assert.Equal(t, "bound-token", FromRequest(req).UserIDToken)
}

func TestFromRequestXNorthHeaders(t *testing.T) {
	idToken := makeJWT(t, map[string]any{"email": "foo@bar.com"})
	rawConnectors := base64.RawURLEncoding.EncodeToString([]byte(`{"github": "gh"}`))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDTokenHeader, idToken)
	req.Header.Set(ConnectorTokensHeader, rawConnectors)

	rc := FromRequest(req)
	assert.Equal(t, idToken, rc.UserIDToken)
	assert.Equal(t, map[string]string{"github": "gh"}, rc.ConnectorTokens)
	assert.Equal(t, "foo@bar.com", rc.Claims["email"])
}

func TestFromRequestLegacyAuthorization(t *testing.T) {
	idToken := makeJWT(t, map[string]any{"email": "foo@bar.com"})
	enc, err := tokencodec.EncodeLegacyBearer(&tokencodec.AuthHeaderTokens{
		UserIDToken:           &idToken,
		ConnectorAccessTokens: map[string]string{"g": "tok"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+enc)

	rc := FromRequest(req)
	assert.Equal(t, idToken, rc.UserIDToken)
	assert.Equal(t, map[string]string{"g": "tok"}, rc.ConnectorTokens)
}

func TestFromRequestNothingPresent(t *testing.T) {
	assert.True(t, FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)).IsZero())
	assert.True(t, FromRequest(nil).IsZero())
}

func TestUserFromContext(t *testing.T) {
	t.Run("no token yields nil", func(t *testing.T) {
		assert.Nil(t, UserFromContext(context.Background()))
	})

	t.Run("federated claims flatten", func(t *testing.T) {
		idToken := makeJWT(t, map[string]any{
			"email": "foo@bar.com",
			"name":  "Foo Bar",
			"federated_claims": map[string]any{
				"connector_id": "google",
				"user_id":      "u-123",
			},
		})
		ctx := WithRequestContext(context.Background(), RequestContext{UserIDToken: idToken})

		u := UserFromContext(ctx)
		require.NotNil(t, u)
		assert.Equal(t, "foo@bar.com", u.Email)
		assert.Equal(t, "Foo Bar", u.Name)
		assert.Equal(t, "google", u.ConnectorID)
		assert.Equal(t, "u-123", u.ConnectorUserID)
		assert.Equal(t, idToken, u.RawToken)
	})

	t.Run("undecodable token yields nil", func(t *testing.T) {
		ctx := WithRequestContext(context.Background(), RequestContext{UserIDToken: "garbage"})
		assert.Nil(t, UserFromContext(ctx))
	})
}
