package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northlabs/north-mcp-go/internal/issuerverify"
	"github.com/northlabs/north-mcp-go/internal/tokencodec"
	"github.com/northlabs/north-mcp-go/northctx"
)

func strPtr(s string) *string { return &s }

func conn(headers map[string]string) Connection {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return HeaderConnection(h)
}

// makeJWT builds an unsigned JWT carrying the given claims, enough for
// the unverified decode path.
func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func makeLegacyBearer(t *testing.T, secret, idToken *string, connectors map[string]string) string {
	t.Helper()
	enc, err := tokencodec.EncodeLegacyBearer(&tokencodec.AuthHeaderTokens{
		ServerSecret:          secret,
		UserIDToken:           idToken,
		ConnectorAccessTokens: connectors,
	})
	require.NoError(t, err)
	return enc
}

func TestLegacyBearerProviderNotApplicable(t *testing.T) {
	p := NewLegacyBearerProvider("")

	for name, headers := range map[string]map[string]string{
		"no authorization": {},
		"basic auth":       {"Authorization": "Basic dXNlcjpwYXNz"},
		"opaque token":     {"Authorization": "some-opaque-token"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), conn(headers))
			assert.ErrorIs(t, err, ErrNotApplicable)
		})
	}
}

func TestLegacyBearerProviderHappyPath(t *testing.T) {
	idToken := makeJWT(t, map[string]any{"email": "foo@bar.com"})
	payload := makeLegacyBearer(t, strPtr("s3cret"), &idToken, map[string]string{"gmail": "tok-1"})

	p := NewLegacyBearerProvider("s3cret")

	for name, authz := range map[string]string{
		"with prefix": "Bearer " + payload,
		"bare base64": payload,
	} {
		t.Run(name, func(t *testing.T) {
			id, err := p.Authenticate(context.Background(), conn(map[string]string{"Authorization": authz}))
			require.NoError(t, err)
			assert.Equal(t, "foo@bar.com", id.Email)
			assert.Equal(t, map[string]string{"gmail": "tok-1"}, id.ConnectorAccessTokens)
			assert.Equal(t, idToken, id.RawUserIDToken)
			assert.Equal(t, "foo@bar.com", id.Claims["email"])
		})
	}
}

func TestLegacyBearerProviderMalformed(t *testing.T) {
	p := NewLegacyBearerProvider("")

	t.Run("bad base64", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer not-base64!!!",
		}))
		assert.ErrorIs(t, err, ErrMalformedToken)
		assert.EqualError(t, err, "invalid authorization header")
	})

	t.Run("missing required keys", func(t *testing.T) {
		payload := base64.StdEncoding.EncodeToString([]byte(`{"server_secret": "x"}`))
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer " + payload,
		}))
		assert.ErrorIs(t, err, ErrMalformedToken)
		assert.EqualError(t, err, "unable to decode bearer token")
	})
}

func TestLegacyBearerProviderSecretMismatch(t *testing.T) {
	payload := makeLegacyBearer(t, strPtr("wrong"), nil, nil)

	p := NewLegacyBearerProvider("right")
	_, err := p.Authenticate(context.Background(), conn(map[string]string{
		"Authorization": "Bearer " + payload,
	}))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.EqualError(t, err, "access denied")
}

func TestLegacyBearerProviderAnonymous(t *testing.T) {
	t.Run("null id token", func(t *testing.T) {
		payload := makeLegacyBearer(t, strPtr("s"), nil, nil)
		p := NewLegacyBearerProvider("s")
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer " + payload,
		}))
		require.NoError(t, err)
		assert.Empty(t, id.Email)
		assert.Nil(t, id.Claims)
	})

	t.Run("token without email claim", func(t *testing.T) {
		idToken := makeJWT(t, map[string]any{"sub": "u-1"})
		payload := makeLegacyBearer(t, nil, &idToken, nil)
		p := NewLegacyBearerProvider("")
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer " + payload,
		}))
		require.NoError(t, err)
		assert.Empty(t, id.Email)
		assert.Equal(t, "u-1", id.Claims["sub"])
	})
}

func TestXNorthProviderNotApplicable(t *testing.T) {
	p := NewXNorthProvider("secret")
	_, err := p.Authenticate(context.Background(), conn(map[string]string{
		"Authorization": "Bearer whatever",
	}))
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestXNorthProviderHappyPath(t *testing.T) {
	idToken := makeJWT(t, map[string]any{"email": "foo@bar.com"})
	rawConnectors := base64.RawURLEncoding.EncodeToString([]byte(`{"github": "gh-tok"}`))

	p := NewXNorthProvider("s3cret")
	id, err := p.Authenticate(context.Background(), conn(map[string]string{
		northctx.UserIDTokenHeader:     idToken,
		northctx.ConnectorTokensHeader: rawConnectors,
		northctx.ServerSecretHeader:    "s3cret",
	}))
	require.NoError(t, err)
	assert.Equal(t, "foo@bar.com", id.Email)
	assert.Equal(t, map[string]string{"github": "gh-tok"}, id.ConnectorAccessTokens)
}

func TestXNorthProviderStrictConnectorTokens(t *testing.T) {
	p := NewXNorthProvider("")
	_, err := p.Authenticate(context.Background(), conn(map[string]string{
		northctx.ConnectorTokensHeader: "%%%not-base64url%%%",
	}))
	assert.ErrorIs(t, err, ErrMalformedToken)
	assert.EqualError(t, err, "invalid connector tokens format")
}

func TestXNorthProviderSecretMismatch(t *testing.T) {
	p := NewXNorthProvider("right")
	_, err := p.Authenticate(context.Background(), conn(map[string]string{
		northctx.ServerSecretHeader: "wrong",
	}))
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestXNorthProviderTrustedIssuersNoFallback(t *testing.T) {
	ctx := context.Background()
	v := issuerverify.New(ctx)

	// Token issued by an issuer outside of the trusted set must fail
	// outright, never fall back to unverified decoding.
	idToken := makeJWT(t, map[string]any{"email": "foo@bar.com", "iss": "https://evil.example"})

	p := NewXNorthProvider("",
		WithXNorthTrustedIssuers(v, []string{"https://good.example"}),
	)
	_, err := p.Authenticate(ctx, conn(map[string]string{
		northctx.UserIDTokenHeader: idToken,
	}))
	assert.ErrorIs(t, err, ErrInvalidIdentityToken)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid user id token: "), err.Error())
	assert.Contains(t, err.Error(), "untrusted issuer")
}

func TestAPIKeyProviderHeader(t *testing.T) {
	p := NewStaticAPIKeyProvider([]string{"sk-valid"})

	t.Run("valid key", func(t *testing.T) {
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			APIKeyHeader: "sk-valid",
		}))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id.Email, "api-key-user-"), id.Email)
		assert.Len(t, id.Email, len("api-key-user-")+16)
		assert.Empty(t, id.ConnectorAccessTokens)

		// The synthesized email is stable across calls.
		again, err := p.Authenticate(context.Background(), conn(map[string]string{
			APIKeyHeader: "sk-valid",
		}))
		require.NoError(t, err)
		assert.Equal(t, id.Email, again.Email)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			APIKeyHeader: "sk-nope",
		}))
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.EqualError(t, err, "invalid api key")
	})
}

func TestAPIKeyProviderBearerFallback(t *testing.T) {
	p := NewStaticAPIKeyProvider([]string{"sk-valid"})

	t.Run("valid bearer key", func(t *testing.T) {
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer sk-valid",
		}))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id.Email, "api-key-user-"))
	})

	t.Run("unknown bearer token is not applicable", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer someone-elses-token",
		}))
		assert.ErrorIs(t, err, ErrNotApplicable)
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(nil))
		assert.ErrorIs(t, err, ErrNotApplicable)
	})
}

func TestOAuthProviderRequiresStrategy(t *testing.T) {
	_, err := NewOAuthProvider(OAuthConfig{})
	require.Error(t, err)
}

func TestOAuthProviderCustomValidator(t *testing.T) {
	p, err := NewOAuthProvider(OAuthConfig{
		Validator: func(ctx context.Context, token string) (map[string]any, error) {
			if token != "good" {
				return nil, nil
			}
			return map[string]any{
				"email": "oauth@bar.com",
				"connector_access_tokens": map[string]any{
					"slack": "sl-tok",
				},
			}, nil
		},
	})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer good",
		}))
		require.NoError(t, err)
		assert.Equal(t, "oauth@bar.com", id.Email)
		assert.Equal(t, map[string]string{"slack": "sl-tok"}, id.ConnectorAccessTokens)
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer bad",
		}))
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.EqualError(t, err, "invalid oauth token")
	})

	t.Run("non-bearer not applicable", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Basic dXNlcjpwYXNz",
		}))
		assert.ErrorIs(t, err, ErrNotApplicable)
	})
}

func TestOAuthProviderJWT(t *testing.T) {
	const secret = "hs256-secret"
	p, err := NewOAuthProvider(OAuthConfig{JWTSecret: secret})
	require.NoError(t, err)

	sign := func(t *testing.T, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	t.Run("valid token", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"email": "jwt@bar.com"})
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer " + token,
		}))
		require.NoError(t, err)
		assert.Equal(t, "jwt@bar.com", id.Email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "jwt@bar.com"}).
			SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer " + bad,
		}))
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("missing email claim", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"sub": "u-1"})
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer " + token,
		}))
		assert.EqualError(t, err, "email required in oauth token")
	})
}

func TestOAuthProviderIntrospection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("token") {
		case "active-token":
			_ = json.NewEncoder(w).Encode(map[string]any{"active": true, "email": "intro@bar.com"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"active": false})
		}
	}))
	defer srv.Close()

	p, err := NewOAuthProvider(OAuthConfig{
		IntrospectionURL: srv.URL,
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
	})
	require.NoError(t, err)

	t.Run("active token", func(t *testing.T) {
		id, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer active-token",
		}))
		require.NoError(t, err)
		assert.Equal(t, "intro@bar.com", id.Email)
	})

	t.Run("inactive token", func(t *testing.T) {
		_, err := p.Authenticate(context.Background(), conn(map[string]string{
			"Authorization": "Bearer revoked-token",
		}))
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}
