package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

const tokenBytes = 32

// Pair is a freshly minted double-submit pair: Token travels to the
// client, Signature stays server-side keyed by the session id.
type Pair struct {
	Token     string
	Signature string
}

// Guard generates and verifies anti-forgery tokens bound to a session id.
//
// Guard instances are intended to be configured during initialization and
// then treated as immutable.
type Guard struct {
	secret []byte
}

// NewGuard creates a Guard. secret is the dedicated CSRF secret; when
// empty, fallback (normally the access-token secret) is used instead. A
// distinct CSRF secret is preferred in production.
func NewGuard(secret, fallback []byte) (*Guard, error) {
	key := secret
	if len(key) == 0 {
		key = fallback
	}
	if len(key) == 0 {
		return nil, errors.New("csrf secret required")
	}
	own := make([]byte, len(key))
	copy(own, key)
	return &Guard{secret: own}, nil
}

// Generate returns a 256-bit hex-encoded random token.
func (g *Guard) Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Sign computes the keyed signature over "token:sessionID".
func (g *Guard) Sign(token, sessionID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(token + ":" + sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it against the
// provided one. A length mismatch is rejected immediately (length is not
// secret-dependent here); the equal-length byte comparison accumulates
// across all bytes and never short-circuits on the first difference.
func (g *Guard) Verify(token, signature, sessionID string) bool {
	expected := g.Sign(token, sessionID)
	if len(signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// Issue mints a token and its signature for sessionID in one call.
func (g *Guard) Issue(sessionID string) (Pair, error) {
	token, err := g.Generate()
	if err != nil {
		return Pair{}, err
	}
	return Pair{Token: token, Signature: g.Sign(token, sessionID)}, nil
}

// Composite returns the wire form "token.signature" carried by the
// client-readable cookie.
func (p Pair) Composite() string {
	return p.Token + "." + p.Signature
}

// ParseComposite splits a "token.signature" wire value. ok is false when
// the value carries no signature segment.
func ParseComposite(v string) (token, signature string, ok bool) {
	i := strings.IndexByte(v, '.')
	if i <= 0 || i == len(v)-1 {
		return "", "", false
	}
	return v[:i], v[i+1:], true
}
