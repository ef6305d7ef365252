package clinauth

import (
	"context"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/csrf"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/password"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/session"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/token"
)

// Engine coordinates the token codec, CSRF guard, password hasher, and
// session store behind the refresh, revocation, and password-reset flows.
//
// Engine instances are configured through [Builder.Build] and treated as
// immutable afterwards; all methods are safe for concurrent use.
type Engine struct {
	config   Config
	codec    *token.Codec
	csrf     *csrf.Guard
	hasher   *password.Hasher
	sessions session.Store
	accounts AccountProvider
	audit    *auditDispatcher
	metrics  *Metrics
	now      func() time.Time
}

// Close stops the audit dispatcher, draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateAccess decodes and verifies an access token and returns the
// claims as an [AuthResult] for downstream request authorization. Pure:
// no store round-trip.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	var claims token.AccessClaims
	if err := e.codec.Decode(tokenStr, e.config.Token.AccessSecret, &claims); err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, mapTokenError(err)
	}

	e.metricInc(MetricValidateSuccess)
	return &AuthResult{
		SubjectID:      claims.Sub,
		Email:          claims.Email,
		Role:           claims.Role,
		OrganizationID: claims.Org,
	}, nil
}

// HashPassword derives a storage digest for a new password. Exposed for
// the external registration and login layers so every digest in the
// account store shares one work factor.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(plaintext)
}

// VerifyPassword reports whether plaintext matches digest. A malformed
// digest verifies false and raises a diagnostic audit event rather than
// an error.
func (e *Engine) VerifyPassword(plaintext, digest string) bool {
	if e == nil {
		return false
	}
	return e.hasher.Verify(plaintext, digest)
}

// SecurityReport returns a read-only snapshot of the engine's posture.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return SecurityReport{
		ProductionMode:     e.config.Security.ProductionMode,
		AccessTTL:          e.config.Token.AccessTTL,
		RefreshTTL:         e.config.Token.RefreshTTL,
		ResetTTL:           e.config.PasswordReset.TTL,
		BcryptCost:         e.hasher.Cost(),
		DistinctCSRFSecret: len(e.config.CSRF.Secret) > 0,
		CSRFProtection:     e.config.Security.CSRFProtection,
		SecureCookies:      e.config.Security.RequireSecureCookies,
		PasswordResetOpen:  e.config.PasswordReset.Enabled,
		AuditEnabled:       e.config.Audit.Enabled,
	}
}
