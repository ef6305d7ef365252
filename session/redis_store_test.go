package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewRedisStore(rdb, "cas", 24*time.Hour)
}

func testRecord(id, subject string, now time.Time) *Record {
	return &Record{
		ID:                id,
		SubjectID:         subject,
		AccessTokenDigest: "access-digest-" + id,
		RefreshToken:      "refresh-" + id,
		Status:            StatusActive,
		AccessExpiresAt:   now.Add(15 * time.Minute),
		RefreshExpiresAt:  now.Add(7 * 24 * time.Hour),
		LastActivityAt:    now,
		CSRFSignature:     "csrf-sig-" + id,
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	in := testRecord("s1", "clin-1", now)
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.SubjectID != in.SubjectID || out.RefreshToken != in.RefreshToken ||
		out.AccessTokenDigest != in.AccessTokenDigest || out.CSRFSignature != in.CSRFSignature {
		t.Fatalf("record mismatch: got %+v want %+v", out, in)
	}
	if out.Status != StatusActive {
		t.Fatalf("status = %v, want active", out.Status)
	}
	if !out.RefreshExpiresAt.Equal(in.RefreshExpiresAt) {
		t.Fatalf("refresh expiry = %v, want %v", out.RefreshExpiresAt, in.RefreshExpiresAt)
	}
}

func TestGetUnknown(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestApplyRefreshSuccess(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	if err := store.Save(ctx, testRecord("s1", "clin-1", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	later := now.Add(10 * time.Minute)
	out, err := store.ApplyRefresh(ctx, "s1", "refresh-s1", later, RefreshUpdate{
		AccessTokenDigest: "new-digest",
		AccessExpiresAt:   later.Add(15 * time.Minute),
		LastActivityAt:    later,
		CSRFSignature:     "new-csrf-sig",
	})
	if err != nil {
		t.Fatalf("ApplyRefresh failed: %v", err)
	}

	if out.AccessTokenDigest != "new-digest" {
		t.Fatalf("access digest = %q, want rewritten value", out.AccessTokenDigest)
	}
	if out.CSRFSignature != "new-csrf-sig" {
		t.Fatalf("csrf signature = %q, want rewritten value", out.CSRFSignature)
	}
	if !out.LastActivityAt.Equal(later) {
		t.Fatalf("last activity = %v, want %v", out.LastActivityAt, later)
	}
	// The refresh token itself is untouched.
	if out.RefreshToken != "refresh-s1" {
		t.Fatalf("refresh token = %q, want unchanged", out.RefreshToken)
	}
}

func TestApplyRefreshUnknownSession(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.ApplyRefresh(context.Background(), "ghost", "refresh-x", time.Now(), RefreshUpdate{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestApplyRefreshTokenMismatch(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	if err := store.Save(ctx, testRecord("s1", "clin-1", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.ApplyRefresh(ctx, "s1", "some-other-refresh", now, RefreshUpdate{})
	if !errors.Is(err, ErrRefreshMismatch) {
		t.Fatalf("got %v, want ErrRefreshMismatch", err)
	}

	// Failed refresh must not mutate the record.
	out, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.AccessTokenDigest != "access-digest-s1" || out.Status != StatusActive {
		t.Fatalf("record mutated by failed refresh: %+v", out)
	}
}

func TestApplyRefreshNotActive(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	if err := store.Save(ctx, testRecord("s1", "clin-1", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.MarkRevoked(ctx, "s1"); err != nil {
		t.Fatalf("MarkRevoked failed: %v", err)
	}

	_, err := store.ApplyRefresh(ctx, "s1", "refresh-s1", now, RefreshUpdate{})
	if !errors.Is(err, ErrNotActive) {
		t.Fatalf("got %v, want ErrNotActive", err)
	}
}

func TestApplyRefreshPastDeadlinePersistsExpired(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	rec := testRecord("s1", "clin-1", now)
	rec.RefreshExpiresAt = now.Add(-time.Minute)
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.ApplyRefresh(ctx, "s1", "refresh-s1", now, RefreshUpdate{})
	if !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("got %v, want ErrRefreshExpired", err)
	}

	// The expired status must have been written, not just reported.
	out, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Status != StatusExpired {
		t.Fatalf("status = %v, want expired persisted by the script", out.Status)
	}
}

func TestMarkRevokedIdempotent(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	if err := store.Save(ctx, testRecord("s1", "clin-1", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	applied, err := store.MarkRevoked(ctx, "s1")
	if err != nil {
		t.Fatalf("MarkRevoked failed: %v", err)
	}
	if !applied {
		t.Fatal("first revoke reported not applied")
	}
	// Second revoke of a terminal session is a no-op and says so.
	applied, err = store.MarkRevoked(ctx, "s1")
	if err != nil {
		t.Fatalf("second MarkRevoked should be a no-op, got %v", err)
	}
	if applied {
		t.Fatal("repeat revoke reported applied")
	}
	// Expiring a revoked session must not overwrite the terminal state.
	applied, err = store.MarkExpired(ctx, "s1")
	if err != nil {
		t.Fatalf("MarkExpired on revoked should be a no-op, got %v", err)
	}
	if applied {
		t.Fatal("expire of a revoked session reported applied")
	}

	out, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Status != StatusRevoked {
		t.Fatalf("status = %v, want revoked to stick", out.Status)
	}
}

func TestMarkRevokedUnknown(t *testing.T) {
	_, store := newTestStore(t)

	if _, err := store.MarkRevoked(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRevokeAllForSubject(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.Save(ctx, testRecord(id, "clin-1", now)); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}
	if err := store.Save(ctx, testRecord("other", "clin-2", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// One of the subject's sessions is already terminal.
	if _, err := store.MarkExpired(ctx, "s2"); err != nil {
		t.Fatalf("MarkExpired failed: %v", err)
	}

	count, err := store.RevokeAllForSubject(ctx, "clin-1")
	if err != nil {
		t.Fatalf("RevokeAllForSubject failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("revoked %d sessions, want 2 (s2 was already terminal)", count)
	}

	for id, want := range map[string]Status{"s1": StatusRevoked, "s2": StatusExpired, "s3": StatusRevoked} {
		out, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s failed: %v", id, err)
		}
		if out.Status != want {
			t.Fatalf("session %s status = %v, want %v", id, out.Status, want)
		}
	}

	// The other subject is untouched.
	out, err := store.Get(ctx, "other")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Status != StatusActive {
		t.Fatalf("unrelated subject's session was revoked")
	}
}

func TestRevokeAllForUnknownSubject(t *testing.T) {
	_, store := newTestStore(t)

	count, err := store.RevokeAllForSubject(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("RevokeAllForSubject failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("revoked %d sessions for unknown subject, want 0", count)
	}
}

func TestDelete(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	if err := store.Save(ctx, testRecord("s1", "clin-1", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v after delete, want ErrNotFound", err)
	}
	// Deleting an absent record is not an error.
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
}

func TestRecordExpiresAfterRetention(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	rec := testRecord("s1", "clin-1", now)
	rec.RefreshExpiresAt = now.Add(time.Hour)
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Inside refresh window + retention: still readable.
	mr.FastForward(time.Hour + 23*time.Hour)
	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("Get before retention deadline failed: %v", err)
	}

	// Past it: gone.
	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v past retention, want ErrNotFound", err)
	}
}
