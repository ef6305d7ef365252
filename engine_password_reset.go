package clinauth

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/securetoken"
)

// PasswordResetTicket is the outcome of a reset request for a known,
// active account. The raw Token goes to the account holder out of band;
// only its digest is stored.
type PasswordResetTicket struct {
	AccountID string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// RequestPasswordReset issues a reset ticket for the account behind
// email. For an unknown or inactive account it returns (nil, nil): the
// caller must answer the client identically in both cases so the
// endpoint cannot be used to discover which emails are registered. Issuing
// a new ticket overwrites any outstanding one.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetTicket, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return nil, ErrInternalFailure
	}

	// Jitter blunts timing differences across the known/unknown branches.
	defer resetJitter()

	account, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricResetRequested)
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
				return map[string]string{"known_account": "false"}
			})
			return nil, nil
		}
		return nil, ErrInternalFailure
	}
	if accountStatusToError(account.Status) != nil {
		e.metricInc(MetricResetRequested)
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.ID, "", nil, func() map[string]string {
			return map[string]string{"known_account": "false"}
		})
		return nil, nil
	}

	rawToken, err := securetoken.New()
	if err != nil {
		return nil, ErrInternalFailure
	}
	expiresAt := e.now().UTC().Add(e.config.PasswordReset.TTL)

	if err := e.accounts.SetPasswordResetTicket(ctx, account.ID, securetoken.Digest(rawToken), expiresAt); err != nil {
		return nil, ErrInternalFailure
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"known_account": "true"}
	})

	return &PasswordResetTicket{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     rawToken,
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmPasswordReset consumes a reset ticket, writes the new password
// digest, and revokes every session of the subject. A ticket verifies at
// most once; unknown and expired tickets fail identically.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, presentedToken, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrInternalFailure
	}

	account, err := e.accounts.GetAccountByResetDigest(ctx, securetoken.Digest(presentedToken))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return e.rejectReset(ctx, "", ErrResetInvalid)
		}
		return ErrInternalFailure
	}

	if !e.now().UTC().Before(account.ResetExpiresAt) {
		return e.rejectReset(ctx, account.ID, ErrResetInvalid)
	}
	if statusErr := accountStatusToError(account.Status); statusErr != nil {
		return e.rejectReset(ctx, account.ID, statusErr)
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrInternalFailure
	}

	// Consume before writing the new digest: if two confirmations race,
	// only the one that cleared the ticket proceeds.
	if err := e.accounts.ConsumePasswordResetTicket(ctx, account.ID); err != nil {
		return e.rejectReset(ctx, account.ID, ErrResetInvalid)
	}
	if err := e.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
		return ErrInternalFailure
	}

	// Every live session predates the new password.
	if _, err := e.sessions.RevokeAllForSubject(ctx, account.ID); err != nil {
		return ErrInternalFailure
	}

	e.metricInc(MetricResetConfirmed)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, account.ID, "", nil, nil)
	return nil
}

func (e *Engine) rejectReset(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricResetRejected)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, accountID, "", err, nil)
	return err
}

func resetJitter() {
	time.Sleep(time.Duration(rand.Int63n(int64(40 * time.Millisecond))))
}
