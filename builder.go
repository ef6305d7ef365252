package clinauth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/csrf"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/password"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/session"
	"github.com/CrisisCore-Systems/pain-tracker-sub021/token"
)

// Builder assembles an [Engine]. Construct with [New], chain the With*
// methods, then call [Builder.Build] once at startup.
type Builder struct {
	config    Config
	hasConfig bool
	redis     redis.UniversalClient
	sessions  session.Store
	accounts  AccountProvider
	auditSink AuditSink
	now       func() time.Time
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the entire configuration. Unset TTLs, costs, and
// session settings are backfilled from defaults; secrets are never
// backfilled.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	b.hasConfig = true
	return b
}

// WithRedis supplies the Redis client backing the session store. Ignored
// when WithSessionStore is also called.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore supplies a custom session store, overriding the
// built-in Redis store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

// WithAccountProvider joins the engine to the caller's account store.
// Required.
func (b *Builder) WithAccountProvider(provider AccountProvider) *Builder {
	b.accounts = provider
	return b
}

// WithAuditSink supplies the sink audit events are dispatched to. Only
// consulted when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. Tests use this to pin
// expiry boundaries; production code should not call it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) fillDefaults() {
	defaults := defaultConfig()

	if b.config.Token.AccessTTL <= 0 {
		b.config.Token.AccessTTL = defaults.Token.AccessTTL
	}
	if b.config.Token.RefreshTTL <= 0 {
		b.config.Token.RefreshTTL = defaults.Token.RefreshTTL
	}
	if b.config.Password.Cost == 0 {
		b.config.Password.Cost = defaults.Password.Cost
	}
	if b.config.PasswordReset.TTL <= 0 {
		b.config.PasswordReset.TTL = defaults.PasswordReset.TTL
	}
	if b.config.Session.RedisPrefix == "" {
		b.config.Session.RedisPrefix = defaults.Session.RedisPrefix
	}
	if b.config.Session.Retention <= 0 {
		b.config.Session.Retention = defaults.Session.Retention
	}
	if b.config.Audit.BufferSize <= 0 {
		b.config.Audit.BufferSize = defaults.Audit.BufferSize
	}
}

// Build validates the configuration and wires the engine. The returned
// Engine is immutable; the Builder must not be reused afterwards.
func (b *Builder) Build() (*Engine, error) {
	if b.hasConfig {
		b.fillDefaults()
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("Build requires an AccountProvider")
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("Build requires a Redis client or a session store")
		}
		sessions = session.NewRedisStore(b.redis, b.config.Session.RedisPrefix, b.config.Session.Retention)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// The anti-forgery secret falls back to the access secret when no
	// dedicated one is configured.
	guard, err := csrf.NewGuard(b.config.CSRF.Secret, b.config.Token.AccessSecret)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   b.config,
		codec:    token.NewCodec(now),
		csrf:     guard,
		sessions: sessions,
		accounts: b.accounts,
		metrics:  NewMetrics(b.config.Metrics),
		now:      now,
	}

	// A storage digest that bcrypt cannot parse is a data-integrity
	// problem worth surfacing, not just a failed login.
	hasher, err := password.NewHasher(b.config.Password.Cost, func(hashErr error) {
		engine.metricInc(MetricPasswordDigestMalformed)
		engine.emitAudit(context.Background(), auditEventPasswordDigestBroken, false, "", "", ErrInternalFailure, func() map[string]string {
			return map[string]string{"detail": hashErr.Error()}
		})
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	if b.config.Audit.Enabled {
		engine.audit = newAuditDispatcher(b.config.Audit, b.auditSink)
	}

	return engine, nil
}
