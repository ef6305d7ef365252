package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor used when none is configured.
	DefaultCost = 12

	minCost = bcrypt.MinCost
	maxCost = bcrypt.MaxCost

	minPassBytes = 8
)

// DiagnosticFunc receives verification failures that are not a plain
// password mismatch (a malformed or truncated stored digest). Verify
// swallows these rather than returning them, so the hook is the only
// place they surface.
type DiagnosticFunc func(err error)

// Hasher wraps bcrypt with a fixed cost factor.
//
// Hasher instances are intended to be configured during initialization and
// then treated as immutable.
type Hasher struct {
	cost int
	diag DiagnosticFunc
}

// NewHasher creates a Hasher with the given cost. diag may be nil.
func NewHasher(cost int, diag DiagnosticFunc) (*Hasher, error) {
	if cost < minCost || cost > maxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Hasher{cost: cost, diag: diag}, nil
}

// Hash derives a salted adaptive digest of password.
func (h *Hasher) Hash(password string) (string, error) {
	// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 8 bytes")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. It never returns an
// error: a malformed digest reads as a failed verification and is reported
// through the diagnostic hook, so a corrupted stored hash cannot become a
// crash-based side channel.
func (h *Hasher) Verify(password, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) && h.diag != nil {
		h.diag(err)
	}
	return false
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int { return h.cost }
