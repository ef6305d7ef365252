package clinauth

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a clinician account.
type AccountStatus uint8

const (
	// AccountActive is an account permitted to authenticate and refresh.
	AccountActive AccountStatus = iota
	// AccountDisabled is an account suspended by an administrator.
	AccountDisabled
	// AccountDeleted is a removed account.
	AccountDeleted
)

func accountStatusToError(status AccountStatus) error {
	if status == AccountActive {
		return nil
	}
	return ErrAccountInactive
}

// AccountRecord is the account snapshot returned by [AccountProvider].
// The reset-ticket fields live inline on the account: one outstanding
// ticket per account, and issuing a new one overwrites the prior one.
type AccountRecord struct {
	ID             string
	Email          string
	Role           string
	OrganizationID string
	PasswordHash   string
	Status         AccountStatus
	ResetDigest    string
	ResetExpiresAt time.Time
}

// AccountProvider is the interface callers implement to join the engine
// to their account store. Only its narrow contract is consumed here;
// registration and role management live outside this core.
type AccountProvider interface {
	GetAccountByID(ctx context.Context, id string) (AccountRecord, error)
	GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error)
	// GetAccountByResetDigest resolves an account by its outstanding
	// reset-ticket digest, or returns [ErrAccountNotFound].
	GetAccountByResetDigest(ctx context.Context, digest string) (AccountRecord, error)
	// SetPasswordResetTicket stores a new ticket digest and expiry,
	// overwriting any prior ticket.
	SetPasswordResetTicket(ctx context.Context, accountID, digest string, expiresAt time.Time) error
	// ConsumePasswordResetTicket clears the outstanding ticket. It must
	// fail for an already-cleared ticket so a ticket can be consumed at
	// most once.
	ConsumePasswordResetTicket(ctx context.Context, accountID string) error
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
}

// Credentials is returned by [Engine.Refresh]: the freshly minted access
// token and CSRF value. CSRFToken is the "token.signature" composite the
// client-readable cookie carries and [Engine.VerifyCSRF] accepts. The
// caller owns wire transport (cookies/headers).
type Credentials struct {
	AccessToken string
	CSRFToken   string
}

// SessionCredentials is returned by [Engine.StartSession]: everything the
// external login layer needs to set its cookies. CSRFToken is the
// "token.signature" composite.
type SessionCredentials struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	CSRFToken    string
}

// StartSessionInput identifies the authenticated subject a new session is
// minted for. Credential verification happens before this call.
type StartSessionInput struct {
	SubjectID      string
	Email          string
	Role           string
	OrganizationID string
}

// AuthResult is returned by [Engine.ValidateAccess] for downstream
// request-authorization middleware.
type AuthResult struct {
	SubjectID      string
	Email          string
	Role           string
	OrganizationID string
}

// SecurityReport is a read-only snapshot of the engine's security
// posture.
type SecurityReport struct {
	ProductionMode     bool
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	ResetTTL           time.Duration
	BcryptCost         int
	DistinctCSRFSecret bool
	CSRFProtection     bool
	SecureCookies      bool
	PasswordResetOpen  bool
	AuditEnabled       bool
}
