package clinauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSessionStarted       = "session_started"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventSessionExpired       = "session_expired"
	auditEventSessionRevoked       = "session_revoked"
	auditEventRevokeAll            = "revoke_all"
	auditEventCSRFRejected         = "csrf_rejected"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordDigestBroken = "password_digest_malformed"
)

type auditErrorCode string

const (
	auditErrUnauthorized    auditErrorCode = "unauthorized"
	auditErrMalformed       auditErrorCode = "malformed_token"
	auditErrBadSignature    auditErrorCode = "invalid_signature"
	auditErrExpired         auditErrorCode = "expired"
	auditErrSessionNotFound auditErrorCode = "session_not_found"
	auditErrSessionRevoked  auditErrorCode = "session_revoked"
	auditErrAccountInactive auditErrorCode = "account_inactive"
	auditErrAccountUnknown  auditErrorCode = "account_unknown"
	auditErrResetInvalid    auditErrorCode = "reset_invalid"
	auditErrCSRFInvalid     auditErrorCode = "csrf_invalid"
	auditErrInternal        auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := mapAuditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func mapAuditErrorCode(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenMalformed):
		return auditErrMalformed
	case errors.Is(err, ErrTokenSignature):
		return auditErrBadSignature
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpired
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountUnknown
	case errors.Is(err, ErrResetInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrCSRFInvalid):
		return auditErrCSRFInvalid
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
