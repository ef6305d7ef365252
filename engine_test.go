package clinauth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/CrisisCore-Systems/pain-tracker-sub021/token"
)

var (
	testAccessSecret  = []byte("test-access-secret-test-access-secret")
	testRefreshSecret = []byte("test-refresh-secret-test-refresh-sec")
)

// testClock is a mutable clock the tests advance by hand.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAccounts is an in-memory AccountProvider.
type fakeAccounts struct {
	mu       sync.Mutex
	byID     map[string]AccountRecord
	byEmail  map[string]string
	byDigest map[string]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:     map[string]AccountRecord{},
		byEmail:  map[string]string{},
		byDigest: map[string]string{},
	}
}

func (f *fakeAccounts) put(rec AccountRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[rec.ID] = rec
	f.byEmail[rec.Email] = rec.ID
	if rec.ResetDigest != "" {
		f.byDigest[rec.ResetDigest] = rec.ID
	}
}

func (f *fakeAccounts) get(id string) AccountRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeAccounts) setStatus(id string, status AccountStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.byID[id]
	rec.Status = status
	f.byID[id] = rec
}

func (f *fakeAccounts) GetAccountByID(_ context.Context, id string) (AccountRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return rec, nil
}

func (f *fakeAccounts) GetAccountByEmail(_ context.Context, email string) (AccountRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return f.byID[id], nil
}

func (f *fakeAccounts) GetAccountByResetDigest(_ context.Context, digest string) (AccountRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byDigest[digest]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return f.byID[id], nil
}

func (f *fakeAccounts) SetPasswordResetTicket(_ context.Context, accountID, digest string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if rec.ResetDigest != "" {
		delete(f.byDigest, rec.ResetDigest)
	}
	rec.ResetDigest = digest
	rec.ResetExpiresAt = expiresAt
	f.byID[accountID] = rec
	f.byDigest[digest] = accountID
	return nil
}

func (f *fakeAccounts) ConsumePasswordResetTicket(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[accountID]
	if !ok || rec.ResetDigest == "" {
		return ErrResetInvalid
	}
	delete(f.byDigest, rec.ResetDigest)
	rec.ResetDigest = ""
	rec.ResetExpiresAt = time.Time{}
	f.byID[accountID] = rec
	return nil
}

func (f *fakeAccounts) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	rec.PasswordHash = newHash
	f.byID[accountID] = rec
	return nil
}

func testConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			AccessSecret:  testAccessSecret,
			RefreshSecret: testRefreshSecret,
		},
		Password:      PasswordConfig{Cost: 4}, // fast hashing in tests
		PasswordReset: PasswordResetConfig{Enabled: true, TTL: time.Hour},
		Session:       SessionConfig{RedisPrefix: "cas", Retention: 24 * time.Hour},
		Metrics:       MetricsConfig{Enabled: true},
		Security: SecurityConfig{
			RequireSecureCookies: true,
			SameSitePolicy:       http.SameSiteStrictMode,
			CSRFProtection:       true,
		},
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *fakeAccounts, *testClock) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	accounts := newFakeAccounts()
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithAccountProvider(accounts).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	accounts.put(AccountRecord{
		ID:             "clin-1",
		Email:          "reese@clinic.example",
		Role:           "clinician",
		OrganizationID: "org-1",
		Status:         AccountActive,
	})

	return engine, accounts, clock
}

func mintRefreshToken(t *testing.T, engine *Engine, subjectID, sessionID string) string {
	t.Helper()

	now := engine.now()
	raw, err := engine.codec.Encode(&token.RefreshClaims{
		Sub: subjectID,
		Sid: sessionID,
		Iat: now.Unix(),
		Exp: now.Add(engine.config.Token.RefreshTTL).Unix(),
	}, engine.config.Token.RefreshSecret)
	if err != nil {
		t.Fatalf("Encode refresh claims failed: %v", err)
	}
	return raw
}

func startTestSession(t *testing.T, engine *Engine) *SessionCredentials {
	t.Helper()

	creds, err := engine.StartSession(context.Background(), StartSessionInput{
		SubjectID:      "clin-1",
		Email:          "reese@clinic.example",
		Role:           "clinician",
		OrganizationID: "org-1",
	})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return creds
}
