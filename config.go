package clinauth

import (
	"errors"
	"net/http"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/password"
)

// minSecretBytes is the production entropy floor: 256 bits.
const minSecretBytes = 32

// Config defines the engine's process-wide configuration. It is built
// once at startup, validated by [Builder.Build], and treated as immutable
// for the life of the process.
type Config struct {
	Token         TokenConfig
	CSRF          CSRFConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Session       SessionConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Security      SecurityConfig
}

// TokenConfig holds lifetimes and signing secrets for access and refresh
// tokens. Secrets are cloned on intake and never mutated.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
}

// CSRFConfig holds the dedicated anti-forgery secret. When empty, the
// access-token secret is used; a distinct secret is preferred.
type CSRFConfig struct {
	Secret []byte
}

// PasswordConfig holds the bcrypt work factor.
type PasswordConfig struct {
	Cost int
}

// PasswordResetConfig controls the reset-ticket flow.
type PasswordResetConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SessionConfig controls the Redis session store.
type SessionConfig struct {
	RedisPrefix string
	// Retention keeps terminal records readable past the refresh deadline
	// before Redis drops them.
	Retention time.Duration
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig holds deployment posture. ProductionMode turns weak or
// missing secrets into startup-time fatal conditions.
type SecurityConfig struct {
	ProductionMode       bool
	RequireSecureCookies bool
	SameSitePolicy       http.SameSite
	CSRFProtection       bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Cost: password.DefaultCost,
		},
		PasswordReset: PasswordResetConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "cas",
			Retention:   24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Security: SecurityConfig{
			ProductionMode:       false,
			RequireSecureCookies: true,
			SameSitePolicy:       http.SameSiteStrictMode,
			CSRFProtection:       true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	out.CSRF.Secret = cloneBytes(cfg.CSRF.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency. In
// ProductionMode it additionally enforces the secret entropy bar; a
// failure here is a startup-time fatal condition, not a runtime one.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be shorter than RefreshTTL")
	}
	if len(c.Token.AccessSecret) == 0 {
		return errors.New("Token AccessSecret is required")
	}
	if len(c.Token.RefreshSecret) == 0 {
		return errors.New("Token RefreshSecret is required")
	}

	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be within bcrypt range")
	}

	if c.PasswordReset.Enabled && c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}

	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if c.Session.Retention < 0 {
		return errors.New("Session Retention must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if len(c.Token.AccessSecret) < minSecretBytes {
			return errors.New("ProductionMode requires AccessSecret >= 256 bits")
		}
		if len(c.Token.RefreshSecret) < minSecretBytes {
			return errors.New("ProductionMode requires RefreshSecret >= 256 bits")
		}
		if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
			return errors.New("ProductionMode requires distinct access and refresh secrets")
		}
		if len(c.CSRF.Secret) > 0 && len(c.CSRF.Secret) < minSecretBytes {
			return errors.New("ProductionMode requires CSRF secret >= 256 bits when set")
		}
		if c.Password.Cost < 12 {
			return errors.New("ProductionMode requires Password Cost >= 12")
		}
		if !c.Security.RequireSecureCookies {
			return errors.New("ProductionMode requires secure cookies")
		}
	}

	return nil
}
