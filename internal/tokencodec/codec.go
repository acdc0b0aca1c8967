// Package tokencodec implements the wire-level codecs for North
// credential material: the legacy base64-JSON bearer payload, the
// Base64URL connector-token map, and best-effort JWT segment decoding.
//
// These functions are pure; no network I/O and no signature
// verification happens here.
package tokencodec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates structurally bad input: bad base64, bad JSON,
// or JSON that does not match the expected shape. Callers are expected
// to have checked for presence already; an empty header is the caller's
// condition, not a codec one.
var ErrMalformed = errors.New("malformed token")

// AuthHeaderTokens is the legacy bearer payload carried in the
// Authorization header as base64-encoded JSON.
type AuthHeaderTokens struct {
	ServerSecret          *string           `json:"server_secret"`
	UserIDToken           *string           `json:"user_id_token"`
	ConnectorAccessTokens map[string]string `json:"connector_access_tokens"`
}

// DecodeLegacyBearer strips an optional "Bearer " prefix, base64-decodes
// the remainder, and parses the result as an AuthHeaderTokens document.
// The server_secret and user_id_token keys must be present (null is
// allowed); connector_access_tokens defaults to an empty map.
func DecodeLegacyBearer(raw string) (*AuthHeaderTokens, error) {
	tok := strings.TrimPrefix(raw, "Bearer ")

	decoded, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid authorization header", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(decoded, &fields); err != nil {
		return nil, fmt.Errorf("%w: unable to decode bearer token", ErrMalformed)
	}
	for _, required := range []string{"server_secret", "user_id_token"} {
		if _, ok := fields[required]; !ok {
			return nil, fmt.Errorf("%w: unable to decode bearer token", ErrMalformed)
		}
	}

	var tokens AuthHeaderTokens
	if err := json.Unmarshal(decoded, &tokens); err != nil {
		return nil, fmt.Errorf("%w: unable to decode bearer token", ErrMalformed)
	}
	if tokens.ConnectorAccessTokens == nil {
		tokens.ConnectorAccessTokens = map[string]string{}
	}
	return &tokens, nil
}

// EncodeLegacyBearer produces the base64 payload accepted by
// DecodeLegacyBearer, without the "Bearer " prefix.
func EncodeLegacyBearer(tokens *AuthHeaderTokens) (string, error) {
	if tokens.ConnectorAccessTokens == nil {
		dup := *tokens
		dup.ConnectorAccessTokens = map[string]string{}
		tokens = &dup
	}
	b, err := json.Marshal(tokens)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeConnectorTokens decodes a Base64URL (unpadded tolerated) JSON
// object of connector name to delegated access token. In strict mode any
// decode error, non-object payload, or non-string value is an error; in
// lenient mode those conditions yield an empty map.
func DecodeConnectorTokens(raw string, strict bool) (map[string]string, error) {
	fail := func() (map[string]string, error) {
		if strict {
			return nil, fmt.Errorf("%w: invalid connector tokens format", ErrMalformed)
		}
		return map[string]string{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(repad(raw))
	if err != nil {
		return fail()
	}
	var parsed map[string]any
	if err := json.Unmarshal(decoded, &parsed); err != nil {
		return fail()
	}

	tokens := make(map[string]string, len(parsed))
	for k, v := range parsed {
		s, ok := v.(string)
		if !ok {
			return fail()
		}
		tokens[k] = s
	}
	return tokens, nil
}

// DecodeJWTPayload decodes the payload segment of a JWT without any
// signature verification. It is a best-effort peek: a structurally short
// token or a non-object payload yields nil, never an error.
func DecodeJWTPayload(raw string) map[string]any {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return nil
	}
	return decodeJSONSegment(parts[1])
}

// DecodeJWTHeader decodes the header segment of a JWT without any
// signature verification. Same best-effort semantics as
// DecodeJWTPayload.
func DecodeJWTHeader(raw string) map[string]any {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return nil
	}
	return decodeJSONSegment(parts[0])
}

func decodeJSONSegment(seg string) map[string]any {
	decoded, err := base64.URLEncoding.DecodeString(repad(seg))
	if err != nil {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(decoded, &obj); err != nil {
		return nil
	}
	return obj
}

// repad restores the base64 padding stripped by Base64URL producers.
func repad(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}

// LooksLikeBase64 reports whether s could plausibly be a standard
// base64 document: non-empty, length divisible by 4, and drawn entirely
// from the base64 alphabet. Used to recognize prefix-less legacy bearer
// headers.
func LooksLikeBase64(s string) bool {
	if s == "" || len(s)%4 != 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '=':
		default:
			return false
		}
	}
	return true
}
