package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("session not found")

// ErrRefreshMismatch is returned when the stored refresh-token value does
// not byte-equal the presented one.
var ErrRefreshMismatch = errors.New("session refresh token mismatch")

// ErrNotActive is returned when a refresh-time update targets a session in
// a terminal state.
var ErrNotActive = errors.New("session not active")

// ErrRefreshExpired is returned when the refresh window elapsed; the store
// persists the active→expired transition before returning it.
var ErrRefreshExpired = errors.New("session refresh window expired")

// ErrStoreUnavailable wraps backend failures. Callers must treat it as a
// generic internal error, never as a default-allow.
var ErrStoreUnavailable = errors.New("session store unavailable")

// RefreshUpdate carries the fields rewritten on a successful refresh. The
// refresh token itself is not part of the update: the current design does
// not rotate it.
type RefreshUpdate struct {
	AccessTokenDigest string
	AccessExpiresAt   time.Time
	LastActivityAt    time.Time
	CSRFSignature     string
}

// Store is the narrow persistence contract the engine coordinates against.
// Implementations must make ApplyRefresh a single atomic check-and-write:
// two concurrent refreshes against one session must not interleave their
// validation and their write.
type Store interface {
	// Save persists a new record. The record must be in StatusActive.
	Save(ctx context.Context, rec *Record) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// ApplyRefresh atomically validates and applies a refresh-time update:
	// the record must exist (ErrNotFound), its stored refresh token must
	// byte-equal presentedRefresh (ErrRefreshMismatch), it must be active
	// (ErrNotActive), and its refresh window must not have elapsed at now
	// (ErrRefreshExpired, after persisting the expired transition). On
	// success the record carries the applied update.
	ApplyRefresh(ctx context.Context, id, presentedRefresh string, now time.Time, upd RefreshUpdate) (*Record, error)

	// MarkExpired transitions an active session to expired. Idempotent on
	// terminal sessions, reporting applied=false for them so callers can
	// tell a real transition from a dropped repeat; ErrNotFound when
	// absent.
	MarkExpired(ctx context.Context, id string) (applied bool, err error)

	// MarkRevoked transitions an active session to revoked. Same applied
	// semantics as MarkExpired; ErrNotFound when absent.
	MarkRevoked(ctx context.Context, id string) (applied bool, err error)

	// RevokeAllForSubject revokes every active session of a subject and
	// returns how many transitions were applied.
	RevokeAllForSubject(ctx context.Context, subjectID string) (int, error)

	// Delete removes a record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error
}
