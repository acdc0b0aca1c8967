package auth

import "errors"

// Sentinel error classes. Provider failures wrap one of these so
// callers can classify without string matching, while the message
// itself stays terse enough to return to clients verbatim.
var (
	// ErrNotApplicable signals that a provider's expected credential
	// shape is absent from the connection; the chain moves on.
	ErrNotApplicable = errors.New("credentials not applicable")

	// ErrMalformedToken indicates structurally bad credential input.
	ErrMalformedToken = errors.New("malformed token")

	// ErrAccessDenied indicates a server secret mismatch.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidIdentityToken indicates an identity token that failed
	// decoding or issuer verification.
	ErrInvalidIdentityToken = errors.New("invalid identity token")

	// ErrAuthenticationFailed is the generic failure when no provider
	// produced an identity.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Error is an authentication failure with a client-safe message and a
// sentinel class reachable through errors.Is.
type Error struct {
	class error
	msg   string
}

func newError(class error, msg string) *Error {
	return &Error{class: class, msg: msg}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.class }
