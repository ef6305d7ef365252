package session

import (
	"errors"
	"time"
)

// ErrIllegalTransition is returned when a terminal session status would be
// changed.
var ErrIllegalTransition = errors.New("illegal session status transition")

// Status is the lifecycle state of a session record.
type Status uint8

const (
	// StatusActive is the sole initial and sole non-terminal state.
	StatusActive Status = iota
	// StatusExpired marks a session whose refresh window elapsed. Terminal.
	StatusExpired
	// StatusRevoked marks a session ended by an explicit security event. Terminal.
	StatusRevoked
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// ParseStatus maps a wire name back to a Status.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "active":
		return StatusActive, nil
	case "expired":
		return StatusExpired, nil
	case "revoked":
		return StatusRevoked, nil
	default:
		return 0, errors.New("unknown session status")
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// CanTransition reports whether s → to is a legal lifecycle edge. The only
// legal edges are active→expired and active→revoked; terminal states are
// never re-activated.
func (s Status) CanTransition(to Status) bool {
	return s == StatusActive && to.Terminal()
}

// Record is the server-held state binding a refresh token to a subject and
// a lifecycle status. Exactly one Record exists per logical login session;
// its ID is embedded in the refresh token's sid claim and must match.
type Record struct {
	ID                string
	SubjectID         string
	AccessTokenDigest string
	RefreshToken      string
	Status            Status
	AccessExpiresAt   time.Time
	RefreshExpiresAt  time.Time
	LastActivityAt    time.Time
	CSRFSignature     string
}

// Transition moves the record to a new status, enforcing the lifecycle
// edges. Re-applying the current terminal status is a no-op.
func (r *Record) Transition(to Status) error {
	if r.Status == to {
		return nil
	}
	if !r.Status.CanTransition(to) {
		return ErrIllegalTransition
	}
	r.Status = to
	return nil
}
