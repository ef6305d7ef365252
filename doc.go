// Package clinauth provides the authentication and session core for a
// clinician-facing health record service: HMAC-signed access and refresh
// tokens, Redis-backed session lifecycle, double-submit CSRF protection,
// bcrypt password storage, and a single-use password-reset flow.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// clinauth is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (Credentials, AuthResult, SecurityReport).
// Token encoding, CSRF signing, password hashing, and session persistence
// live in the token, csrf, password, and session sub-packages and are
// coordinated only through Engine.
//
// # What this package must NOT do
//
//   - Store or transmit raw access tokens server-side; sessions hold a
//     SHA-256 digest only.
//   - Distinguish "session not found" from "refresh token mismatch" in
//     anything a client can observe.
//   - Reveal through the password-reset request path whether an email is
//     registered.
//
// # Error contract
//
// Engine methods return the sentinel errors in errors.go. Boundaries call
// [ExternalizeError] before serializing: everything except malformed
// input, an inactive account, and internal failures collapses to
// [ErrUnauthorized], and [HTTPStatus] maps the externalized error to its
// status code.
package clinauth
