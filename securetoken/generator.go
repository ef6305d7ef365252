package securetoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

const tokenBytes = 32

// New returns a 256-bit hex-encoded opaque token suitable for
// bearer-once-by-link flows such as password-reset links.
func New() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Digest returns the hex-encoded SHA-256 of token for storage. A fast
// non-adaptive hash is sufficient here: the input already carries full
// entropy, unlike a password.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
