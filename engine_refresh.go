package clinauth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/securetoken"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/session"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/token"
)

// StartSession mints a full credential set for an already-authenticated
// subject and persists the backing session record. Credential checks
// (password, MFA) happen in the caller before this point.
func (e *Engine) StartSession(ctx context.Context, input StartSessionInput) (*SessionCredentials, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if input.SubjectID == "" {
		return nil, ErrInternalFailure
	}

	now := e.now().UTC()
	sessionID := uuid.NewString()

	accessToken, err := e.codec.Encode(&token.AccessClaims{
		Sub:   input.SubjectID,
		Email: input.Email,
		Role:  input.Role,
		Org:   input.OrganizationID,
		Iat:   now.Unix(),
		Exp:   now.Add(e.config.Token.AccessTTL).Unix(),
	}, e.config.Token.AccessSecret)
	if err != nil {
		return nil, ErrInternalFailure
	}

	refreshToken, err := e.codec.Encode(&token.RefreshClaims{
		Sub: input.SubjectID,
		Sid: sessionID,
		Iat: now.Unix(),
		Exp: now.Add(e.config.Token.RefreshTTL).Unix(),
	}, e.config.Token.RefreshSecret)
	if err != nil {
		return nil, ErrInternalFailure
	}

	csrfPair, err := e.csrf.Issue(sessionID)
	if err != nil {
		return nil, ErrInternalFailure
	}

	rec := &session.Record{
		ID:                sessionID,
		SubjectID:         input.SubjectID,
		AccessTokenDigest: securetoken.Digest(accessToken),
		RefreshToken:      refreshToken,
		Status:            session.StatusActive,
		AccessExpiresAt:   now.Add(e.config.Token.AccessTTL),
		RefreshExpiresAt:  now.Add(e.config.Token.RefreshTTL),
		LastActivityAt:    now,
		CSRFSignature:     csrfPair.Signature,
	}
	if err := e.sessions.Save(ctx, rec); err != nil {
		return nil, ErrInternalFailure
	}

	e.metricInc(MetricSessionStarted)
	e.emitAudit(ctx, auditEventSessionStarted, true, input.SubjectID, sessionID, nil, nil)

	return &SessionCredentials{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfPair.Composite(),
	}, nil
}

// Refresh exchanges a still-valid refresh token for a new access token and
// CSRF token. The refresh token itself is not rotated: the same token
// remains valid until its own expiry or the session ends.
//
// The store applies the update as a single check-and-write, so two
// concurrent refreshes against one session cannot interleave validation
// and persistence; both succeed, and the later write wins.
func (e *Engine) Refresh(ctx context.Context, presentedRefresh string) (*Credentials, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	creds, err := e.refresh(ctx, presentedRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	return creds, nil
}

func (e *Engine) refresh(ctx context.Context, presentedRefresh string) (*Credentials, error) {
	var claims token.RefreshClaims
	if err := e.codec.Decode(presentedRefresh, e.config.Token.RefreshSecret, &claims); err != nil {
		mapped := mapTokenError(err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", mapped, nil)
		return nil, mapped
	}

	// Read for validation; the authoritative state check is repeated
	// inside ApplyRefresh.
	rec, err := e.sessions.Get(ctx, claims.Sid)
	if err != nil {
		mapped := mapSessionError(err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Sub, claims.Sid, mapped, nil)
		return nil, mapped
	}
	if rec.Status != session.StatusActive {
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Sub, claims.Sid, ErrSessionRevoked, nil)
		return nil, ErrSessionRevoked
	}

	account, err := e.accounts.GetAccountByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Sub, claims.Sid, ErrAccountNotFound, nil)
			return nil, ErrSessionNotFound
		}
		return nil, ErrInternalFailure
	}
	if statusErr := accountStatusToError(account.Status); statusErr != nil {
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Sub, claims.Sid, statusErr, nil)
		return nil, statusErr
	}

	now := e.now().UTC()
	accessToken, err := e.codec.Encode(&token.AccessClaims{
		Sub:   account.ID,
		Email: account.Email,
		Role:  account.Role,
		Org:   account.OrganizationID,
		Iat:   now.Unix(),
		Exp:   now.Add(e.config.Token.AccessTTL).Unix(),
	}, e.config.Token.AccessSecret)
	if err != nil {
		return nil, ErrInternalFailure
	}

	csrfPair, err := e.csrf.Issue(claims.Sid)
	if err != nil {
		return nil, ErrInternalFailure
	}

	if _, err := e.sessions.ApplyRefresh(ctx, claims.Sid, presentedRefresh, now, session.RefreshUpdate{
		AccessTokenDigest: securetoken.Digest(accessToken),
		AccessExpiresAt:   now.Add(e.config.Token.AccessTTL),
		LastActivityAt:    now,
		CSRFSignature:     csrfPair.Signature,
	}); err != nil {
		mapped := mapSessionError(err)
		if errors.Is(mapped, ErrTokenExpired) {
			e.metricInc(MetricSessionExpired)
			e.emitAudit(ctx, auditEventSessionExpired, false, claims.Sub, claims.Sid, mapped, nil)
		} else {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Sub, claims.Sid, mapped, nil)
		}
		return nil, mapped
	}

	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.Sub, claims.Sid, nil, nil)
	return &Credentials{
		AccessToken: accessToken,
		CSRFToken:   csrfPair.Composite(),
	}, nil
}
