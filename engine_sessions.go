package clinauth

import (
	"context"
	"strconv"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/csrf"
)

// Revoke transitions a session to revoked. Revoking an already-terminal
// session is a no-op; an unknown session is an error.
func (e *Engine) Revoke(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	applied, err := e.sessions.MarkRevoked(ctx, sessionID)
	if err != nil {
		return mapSessionError(err)
	}
	if !applied {
		// Already terminal; nothing happened, so nothing to count.
		return nil
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, "", sessionID, nil, nil)
	return nil
}

// RevokeAllForSubject revokes every active session of one subject and
// returns how many were transitioned. Used after password changes and on
// administrative lockout.
func (e *Engine) RevokeAllForSubject(ctx context.Context, subjectID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	count, err := e.sessions.RevokeAllForSubject(ctx, subjectID)
	if err != nil {
		return count, mapSessionError(err)
	}

	for i := 0; i < count; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventRevokeAll, true, subjectID, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(count)}
	})
	return count, nil
}

// VerifyCSRF checks a presented anti-forgery value against the signature
// stored on the session. The wire form is the "token.signature" composite
// issued with the credentials; a bare token is also accepted and checked
// against the stored signature alone. Disabled protection verifies
// everything.
func (e *Engine) VerifyCSRF(ctx context.Context, sessionID, presented string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !e.config.Security.CSRFProtection {
		return nil
	}

	rec, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		mapped := mapSessionError(err)
		e.rejectCSRF(ctx, sessionID, mapped)
		return mapped
	}

	token, signature, composite := csrf.ParseComposite(presented)
	if !composite {
		token = presented
	}

	// The stored signature is authoritative: it binds the token to this
	// session AND pins the most recently issued pair. A composite whose
	// own signature segment disagrees is rejected outright.
	if composite && !e.csrf.Verify(token, signature, sessionID) {
		e.rejectCSRF(ctx, sessionID, ErrCSRFInvalid)
		return ErrCSRFInvalid
	}
	if !e.csrf.Verify(token, rec.CSRFSignature, sessionID) {
		e.rejectCSRF(ctx, sessionID, ErrCSRFInvalid)
		return ErrCSRFInvalid
	}
	return nil
}

func (e *Engine) rejectCSRF(ctx context.Context, sessionID string, err error) {
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, auditEventCSRFRejected, false, "", sessionID, err, nil)
}
