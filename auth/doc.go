// Package auth implements the North authentication backend for MCP
// servers.
//
// Credentials arrive on one of several header shapes: the legacy
// base64-JSON bearer payload on Authorization, the dedicated X-North-*
// headers, an API key, or a plain OAuth bearer token. Each shape is
// handled by a Provider; a Chain tries the configured providers in
// order and stops at the first success.
//
// A Provider examines the connection and returns one of three outcomes:
//
//   - an *Identity when it recognized and validated its credentials,
//   - ErrNotApplicable when its expected credential shape is absent,
//   - any other error when the shape was present but invalid.
//
// The chain swallows non-final failures so that later providers can
// still win, and surfaces the last explicit failure when none succeed.
// A chain where every provider was not applicable fails with the
// generic ErrAuthenticationFailed.
//
// Construction-time misconfiguration (for example an OAuth provider
// with no validation strategy) is reported by the constructors and must
// prevent server startup; it is never a per-request condition.
package auth
