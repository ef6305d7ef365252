package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrMalformed is returned when a token does not have three segments or a
// segment fails base64url/JSON decoding.
var ErrMalformed = errors.New("malformed token")

// ErrInvalidSignature is returned when the recomputed signature does not
// match the presented one.
var ErrInvalidSignature = errors.New("invalid token signature")

// ErrExpired is returned when the claims carry an expiry at or before the
// codec's current time.
var ErrExpired = errors.New("token expired")

const (
	headerAlg  = "HS256"
	headerType = "JWT"
)

// Claims is implemented by every claim set the codec can carry. IssuedAt
// and ExpiresAt are epoch seconds; ExpiresAt must be strictly greater than
// IssuedAt for every claim set the engine mints.
type Claims interface {
	ExpiresAt() int64
}

// AccessClaims is the short-lived request credential. It is minted on
// login and on every refresh, and consumed by request-authorization
// middleware outside this core.
type AccessClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Org   string `json:"org,omitempty"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// ExpiresAt returns the exp claim in epoch seconds.
func (c AccessClaims) ExpiresAt() int64 { return c.Exp }

// RefreshClaims is the long-lived credential used only to obtain new
// access tokens. Sid binds the token to exactly one session record.
type RefreshClaims struct {
	Sub string `json:"sub"`
	Sid string `json:"sid"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// ExpiresAt returns the exp claim in epoch seconds.
func (c RefreshClaims) ExpiresAt() int64 { return c.Exp }

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Codec signs and verifies compact three-segment tokens:
// base64url(header) "." base64url(claims) "." base64url(signature),
// signature = HMAC-SHA256 over the first two segments. Encode and Decode
// are pure functions of (input, secret, now) and are safe for concurrent
// use.
type Codec struct {
	now func() time.Time
}

// NewCodec creates a Codec. now supplies the current time for expiry
// checks and defaults to time.Now when nil.
func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{now: now}
}

// Encode serializes the header and claims, signs them with secret, and
// returns the joined token. Deterministic for identical claims and secret.
func (c *Codec) Encode(claims Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("token secret required")
	}

	headerJSON, err := json.Marshal(header{Alg: headerAlg, Typ: headerType})
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	sig := computeSignature(signingInput, secret)

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode splits, verifies, and unmarshals a token into dst. Verification
// order is fixed: segment structure, signature, then expiry. The signature
// comparison is constant-time after an equal-length check; a mismatch at
// any byte position costs the same as a mismatch at the last.
func (c *Codec) Decode(tokenStr string, secret []byte, dst Claims) error {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return ErrMalformed
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return ErrMalformed
	}
	var hdr header
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return ErrMalformed
	}
	if hdr.Alg != headerAlg || hdr.Typ != headerType {
		return ErrMalformed
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ErrMalformed
	}

	providedSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrMalformed
	}

	expectedSig := computeSignature(parts[0]+"."+parts[1], secret)
	if len(providedSig) != len(expectedSig) {
		return ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare(providedSig, expectedSig) != 1 {
		return ErrInvalidSignature
	}

	if err := json.Unmarshal(claimsJSON, dst); err != nil {
		return ErrMalformed
	}

	if dst.ExpiresAt() <= c.now().Unix() {
		return ErrExpired
	}

	return nil
}

func computeSignature(signingInput string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}
