package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces every key written by RedisStore.
	DefaultRedisPrefix = "cs"
	// DefaultNullRetention bounds how long a session without forced expiry stays in Redis.
	DefaultNullRetention = 30 * 24 * time.Hour

	// expiredGrace is the shortest key TTL Save ever writes.
	expiredGrace = time.Second
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// RedisConfig tunes a RedisStore.
type RedisConfig struct {
	// Prefix is the key namespace. Empty means DefaultRedisPrefix.
	Prefix string
	// TTL is the forced lifetime applied by Create. Zero creates sessions without expiry.
	TTL time.Duration
	// NullRetention is the Redis key TTL for sessions without forced expiry.
	// Zero keeps them until deleted.
	NullRetention time.Duration
	// ExpiredRetention keeps a record readable for this long after its ExpiresAt,
	// so lookups report an expired session rather than a missing one. Set it to at
	// least the access token TTL.
	ExpiredRetention time.Duration
	Now              func() time.Time
}

// RedisStore is a Redis-backed session store. Each session lives under its own key with a
// TTL matching its expiry, and a per-user set indexes the ids owned by each user.
type RedisStore struct {
	redis            redis.UniversalClient
	prefix           string
	ttl              time.Duration
	nullRetention    time.Duration
	expiredRetention time.Duration
	now              func() time.Time
}

// NewRedisStore creates a [RedisStore] backed by client.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RedisStore{
		redis:            client,
		prefix:           cfg.Prefix,
		ttl:              cfg.TTL,
		nullRetention:    cfg.NullRetention,
		expiredRetention: cfg.ExpiredRetention,
		now:              cfg.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Create allocates and persists a new session for userID.
//
//	Performance: 1 MULTI/EXEC (SET + SADD).
func (s *RedisStore) Create(ctx context.Context, userID, ipAddress string) (*Session, error) {
	sess, err := New(userID, ipAddress, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes sess and indexes it under its user. The key TTL runs until ExpiresAt
// plus the expired retention.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session requires an id")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := s.nullRetention
	if sess.HasExpiry() {
		ttl = sess.ExpiresAt.Sub(s.now()) + s.expiredRetention
		if ttl < expiredGrace {
			ttl = expiredGrace
		}
	}

	sessionKey := s.key(sess.ID)
	userKey := s.userKey(sess.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, userKey, sess.ID)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

// Get fetches a session without touching its TTL or index. Stored sessions are
// returned even when past ExpiresAt; freshness is the caller's decision.
//
//	Performance: 1 Redis GET.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID
	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing session is a no-op.
//
//	Performance: 1 GET + 1 Lua EVALSHA.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if errors.Is(err, ErrCorrupt) {
			if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
				return unavailable(err)
			}
			return nil
		}
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

func (s *RedisStore) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.userKey(userID)},
		sessionID,
	).Err()
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteAllForUser removes every session indexed under userID.
//
// A session created between the SMEMBERS read and the delete survives this call.
func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return unavailable(err)
	}

	if len(sessionIDs) == 0 {
		return nil
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeys...)
		pipe.SRem(ctx, userKey, toInterfaces(sessionIDs)...)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

// ListForUser returns the stored sessions of userID. Index entries whose key has
// already expired are skipped.
func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	sessions, _, err := s.loadIndexed(ctx, userID)
	return sessions, err
}

// loadIndexed reads the index of userID once and fetches every record it names.
// gone holds the indexed ids whose key is missing or undecodable.
func (s *RedisStore) loadIndexed(ctx context.Context, userID string) (sessions []*Session, gone []string, err error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil, nil
		}
		return nil, nil, unavailable(err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, unavailable(err)
	}

	sessions = make([]*Session, 0, len(sessionIDs))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				gone = append(gone, sessionIDs[i])
				continue
			}
			return nil, nil, unavailable(cmdErr)
		}
		sess, decErr := Decode(data)
		if decErr != nil {
			gone = append(gone, sessionIDs[i])
			continue
		}
		sess.ID = sessionIDs[i]
		sessions = append(sessions, sess)
	}

	return sessions, gone, nil
}

// DeleteExpired prunes the per-user index sets. Redis expires the session keys
// themselves; this removes the ids they leave behind and deletes any record already
// past its expiry. It returns the number of index entries removed.
//
// This is an O(n) SCAN and belongs in a background sweep, never a request path.
func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	pattern := s.prefix + ":u:*"
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return removed, unavailable(err)
		}
		for _, userKey := range keys {
			n, err := s.pruneIndex(ctx, userKey, now)
			removed += n
			if err != nil {
				return removed, err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

// pruneIndex only considers ids from a single index read. Sessions created after
// that read are left for the next sweep.
func (s *RedisStore) pruneIndex(ctx context.Context, userKey string, now time.Time) (int, error) {
	userID := strings.TrimPrefix(userKey, s.prefix+":u:")
	sessions, stale, err := s.loadIndexed(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, sess := range sessions {
		if !sess.Valid(now) {
			stale = append(stale, sess.ID)
		}
	}

	removed := 0
	for _, id := range stale {
		if err := s.deleteSessionAndIndex(ctx, userID, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Ping checks Redis availability.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func toInterfaces(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
