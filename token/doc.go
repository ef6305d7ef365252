// Package token implements the compact signed-token codec used for access
// and refresh credentials.
//
// The wire format is three '.'-joined base64url segments (no padding):
// header, claims, signature. The header always declares HS256 and the JWT
// token type; the signature is an HMAC-SHA256 over the first two segments.
// The codec is implemented explicitly rather than through a JWT library so
// that the format, the verification order, and the constant-time signature
// comparison are directly testable (an interoperability suite under test/
// checks the output against golang-jwt).
//
// Decode callers must pass a pointer claim set, e.g.:
//
//	var claims token.RefreshClaims
//	err := codec.Decode(raw, secret, &claims)
package token
