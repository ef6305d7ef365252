package clinauth

import (
	"errors"
	"net/http"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/session"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/token"
)

var (
	// ErrUnauthorized is the collapsed external outcome for every
	// credential-level failure. Internal distinctions exist for audit and
	// diagnostics only and must never reach the caller.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenMalformed is returned when a presented token is structurally invalid.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenSignature is returned when a token signature does not verify.
	ErrTokenSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned when a token or session refresh window has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionNotFound is returned when a refresh token resolves to no
	// matching session, including stored-refresh-value mismatches.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked is returned when the target session is in a terminal state.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrAccountInactive is returned when the owning account is not active.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountNotFound is returned by account providers for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrResetInvalid is returned when a password-reset ticket is unknown,
	// expired, or already consumed.
	ErrResetInvalid = errors.New("password reset ticket invalid")
	// ErrCSRFInvalid is returned when a double-submit check fails.
	ErrCSRFInvalid = errors.New("csrf verification failed")
	// ErrInternalFailure covers store outages and unexpected failures. It is
	// logged with full detail server-side and reported to callers with no
	// diagnostic payload.
	ErrInternalFailure = errors.New("internal failure")
	// ErrEngineNotReady is returned when an Engine method is called before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ExternalizeError collapses an internal error to what the boundary may
// reveal: malformed input stays malformed, every other credential-level
// distinction becomes ErrUnauthorized, account-status failures become
// ErrAccountInactive, and everything else becomes ErrInternalFailure.
// "session not found" and "signature invalid" are indistinguishable to the
// caller.
func ExternalizeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, ErrTokenSignature),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionRevoked),
		errors.Is(err, ErrResetInvalid),
		errors.Is(err, ErrCSRFInvalid),
		errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, ErrAccountInactive):
		return ErrAccountInactive
	default:
		return ErrInternalFailure
	}
}

// HTTPStatus maps an externalized error to the response status taxonomy:
// 200 success, 400 malformed input, 401 invalid credential, 403 account
// not permitted, 500 unexpected failure.
func HTTPStatus(err error) int {
	switch ExternalizeError(err) {
	case nil:
		return http.StatusOK
	case ErrTokenMalformed:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrAccountInactive:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// mapTokenError lifts token codec errors into the engine taxonomy.
func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrMalformed):
		return ErrTokenMalformed
	case errors.Is(err, token.ErrInvalidSignature):
		return ErrTokenSignature
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrInternalFailure
	}
}

// mapSessionError lifts session store errors into the engine taxonomy. A
// refresh-token mismatch deliberately reads as session-not-found: a forged
// sessionId paired with a stolen token from elsewhere must not be
// distinguishable from a missing session.
func mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrRefreshMismatch):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrNotActive):
		return ErrSessionRevoked
	case errors.Is(err, session.ErrRefreshExpired):
		return ErrTokenExpired
	default:
		return ErrInternalFailure
	}
}
