package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshStatusNotFound int64 = 0
	refreshStatusMismatch int64 = 1
	refreshStatusInactive int64 = 2
	refreshStatusExpired  int64 = 3
	refreshStatusApplied  int64 = 4
)

const applyRefreshScript = `
local status = redis.call("HGET", KEYS[1], "status")
if not status then
  return 0
end
if redis.call("HGET", KEYS[1], "refresh") ~= ARGV[1] then
  return 1
end
if status ~= "active" then
  return 2
end
local refresh_exp = tonumber(redis.call("HGET", KEYS[1], "refresh_exp") or "0")
if refresh_exp <= tonumber(ARGV[2]) then
  redis.call("HSET", KEYS[1], "status", "expired")
  return 3
end
redis.call("HSET", KEYS[1],
  "access_digest", ARGV[3],
  "access_exp", ARGV[4],
  "last_activity", ARGV[5],
  "csrf_sig", ARGV[6])
return 4
`

var applyRefreshLua = redis.NewScript(applyRefreshScript)

const markStatusScript = `
local status = redis.call("HGET", KEYS[1], "status")
if not status then
  return 0
end
if status ~= "active" then
  return 1
end
redis.call("HSET", KEYS[1], "status", ARGV[1])
return 2
`

var markStatusLua = redis.NewScript(markStatusScript)

// RedisStore is the Redis-backed [Store] implementation. Records live in a
// hash per session; a set per subject indexes that subject's session ids
// for revoke-everywhere. Refresh-time updates and status transitions run
// as Lua scripts so validation and write are one atomic step.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a RedisStore. prefix namespaces all keys;
// retention is how long terminal records stay readable past their refresh
// expiry before Redis drops them.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cas"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) subjectKey(subjectID string) string {
	return s.prefix + ":sub:" + subjectID
}

// Save persists rec and indexes it under its subject. The key expires at
// the refresh deadline plus the retention window.
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" || rec.SubjectID == "" {
		return errors.New("session record requires id and subject")
	}

	deadline := rec.RefreshExpiresAt.Add(s.retention)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(rec.ID), recordFields(rec))
		pipe.PExpireAt(ctx, s.key(rec.ID), deadline)
		pipe.SAdd(ctx, s.subjectKey(rec.SubjectID), rec.ID)
		pipe.PExpireAt(ctx, s.subjectKey(rec.SubjectID), deadline)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(id, fields)
}

// ApplyRefresh implements [Store.ApplyRefresh] via a single Lua script.
func (s *RedisStore) ApplyRefresh(ctx context.Context, id, presentedRefresh string, now time.Time, upd RefreshUpdate) (*Record, error) {
	res, err := applyRefreshLua.Run(ctx, s.redis, []string{s.key(id)},
		presentedRefresh,
		now.Unix(),
		upd.AccessTokenDigest,
		upd.AccessExpiresAt.Unix(),
		upd.LastActivityAt.Unix(),
		upd.CSRFSignature,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res {
	case refreshStatusNotFound:
		return nil, ErrNotFound
	case refreshStatusMismatch:
		return nil, ErrRefreshMismatch
	case refreshStatusInactive:
		return nil, ErrNotActive
	case refreshStatusExpired:
		return nil, ErrRefreshExpired
	case refreshStatusApplied:
		return s.Get(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unexpected refresh script result %d", ErrStoreUnavailable, res)
	}
}

// MarkExpired transitions an active session to expired.
func (s *RedisStore) MarkExpired(ctx context.Context, id string) (bool, error) {
	return s.markStatus(ctx, id, StatusExpired)
}

// MarkRevoked transitions an active session to revoked.
func (s *RedisStore) MarkRevoked(ctx context.Context, id string) (bool, error) {
	return s.markStatus(ctx, id, StatusRevoked)
}

func (s *RedisStore) markStatus(ctx context.Context, id string, to Status) (bool, error) {
	res, err := markStatusLua.Run(ctx, s.redis, []string{s.key(id)}, to.String()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res == 0 {
		return false, ErrNotFound
	}
	// res == 1 means the session is already terminal; the transition is
	// dropped rather than applied, terminal states are final.
	return res == 2, nil
}

// RevokeAllForSubject revokes every indexed session of subjectID.
//
// ATOMICITY NOTE: this operation is not fully atomic. It reads the subject
// index, then revokes each session individually. A session created between
// the read and the per-session writes is not captured; it will be caught
// by the next call or expire naturally.
func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subjectID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked := 0
	for _, id := range ids {
		res, err := markStatusLua.Run(ctx, s.redis, []string{s.key(id)}, StatusRevoked.String()).Int64()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if res == 2 {
			revoked++
		}
	}
	return revoked, nil
}

// Delete removes the record and its subject-index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.subjectKey(rec.SubjectID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func recordFields(rec *Record) map[string]any {
	return map[string]any{
		"subject":       rec.SubjectID,
		"access_digest": rec.AccessTokenDigest,
		"refresh":       rec.RefreshToken,
		"status":        rec.Status.String(),
		"access_exp":    strconv.FormatInt(rec.AccessExpiresAt.Unix(), 10),
		"refresh_exp":   strconv.FormatInt(rec.RefreshExpiresAt.Unix(), 10),
		"last_activity": strconv.FormatInt(rec.LastActivityAt.Unix(), 10),
		"csrf_sig":      rec.CSRFSignature,
	}
}

func recordFromFields(id string, fields map[string]string) (*Record, error) {
	status, err := ParseStatus(fields["status"])
	if err != nil {
		return nil, fmt.Errorf("session record %s: %w", id, err)
	}

	accessExp, err := parseUnixField(fields, "access_exp")
	if err != nil {
		return nil, fmt.Errorf("session record %s: %w", id, err)
	}
	refreshExp, err := parseUnixField(fields, "refresh_exp")
	if err != nil {
		return nil, fmt.Errorf("session record %s: %w", id, err)
	}
	lastActivity, err := parseUnixField(fields, "last_activity")
	if err != nil {
		return nil, fmt.Errorf("session record %s: %w", id, err)
	}

	return &Record{
		ID:                id,
		SubjectID:         fields["subject"],
		AccessTokenDigest: fields["access_digest"],
		RefreshToken:      fields["refresh"],
		Status:            status,
		AccessExpiresAt:   accessExp,
		RefreshExpiresAt:  refreshExp,
		LastActivityAt:    lastActivity,
		CSRFSignature:     fields["csrf_sig"],
	}, nil
}

func parseUnixField(fields map[string]string, name string) (time.Time, error) {
	raw, ok := fields[name]
	if !ok {
		return time.Time{}, fmt.Errorf("missing field %s", name)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid field %s", name)
	}
	return time.Unix(sec, 0), nil
}
