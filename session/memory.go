package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It is safe for concurrent use and
// takes no global lock.
type MemoryStore struct {
	sessions sync.Map // id -> Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty store. ttl is the forced lifetime applied by Create;
// zero creates sessions without expiry. A nil now uses time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{ttl: ttl, now: now}
}

func (m *MemoryStore) Create(ctx context.Context, userID, ipAddress string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	sess, err := New(userID, ipAddress, m.now(), m.ttl)
	if err != nil {
		return nil, err
	}
	m.sessions.Store(sess.ID, *sess)
	return sess, nil
}

// Save stores a copy of sess, replacing any session with the same id.
func (m *MemoryStore) Save(ctx context.Context, sess *Session) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	if sess == nil || sess.ID == "" {
		return errors.New("session requires an id")
	}
	m.sessions.Store(sess.ID, *sess)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	sess := v.(Session)
	return &sess, nil
}

// Delete is idempotent.
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	m.sessions.Delete(sessionID)
	return nil
}

func (m *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	m.sessions.Range(func(key, value any) bool {
		if value.(Session).UserID == userID {
			m.sessions.Delete(key)
		}
		return true
	})
	return nil
}

func (m *MemoryStore) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	out := []*Session{}
	m.sessions.Range(func(_, value any) bool {
		sess := value.(Session)
		if sess.UserID == userID {
			out = append(out, &sess)
		}
		return true
	})
	return out, nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var err error
	m.sessions.Range(func(key, value any) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		sess := value.(Session)
		if !sess.Valid(now) {
			m.sessions.Delete(key)
			removed++
		}
		return true
	})
	if err != nil {
		return removed, unavailable(err)
	}
	return removed, nil
}

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Ping always succeeds unless ctx is done.
func (m *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
