package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultIPAddress is recorded when the caller has no remote address.
const DefaultIPAddress = "127.0.0.1"

var (
	// ErrNotFound is returned when no session is stored under the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps backend failures (network, timeouts, cancelled contexts).
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Session is a server-side record of an authenticated login.
//
// A zero ExpiresAt means the session has no forced expiry and stays valid until it is
// deleted.
type Session struct {
	ID        string
	UserID    string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// New allocates a session with a random UUIDv4 id. A ttl of zero or less yields a
// session without forced expiry.
func New(userID, ipAddress string, now time.Time, ttl time.Duration) (*Session, error) {
	if userID == "" {
		return nil, errors.New("session requires a user id")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	if ipAddress == "" {
		ipAddress = DefaultIPAddress
	}

	now = now.UTC()
	sess := &Session{
		ID:        id.String(),
		UserID:    userID,
		IPAddress: ipAddress,
		CreatedAt: now,
	}
	if ttl > 0 {
		sess.ExpiresAt = now.Add(ttl)
	}
	return sess, nil
}

// HasExpiry reports whether the session carries a forced expiry.
func (s *Session) HasExpiry() bool {
	return !s.ExpiresAt.IsZero()
}

// Valid reports whether the session is usable at now.
func (s *Session) Valid(now time.Time) bool {
	return !s.HasExpiry() || s.ExpiresAt.After(now)
}

// IsValid is the nil-safe form of Valid: a missing session is never valid.
func IsValid(sess *Session, now time.Time) bool {
	return sess != nil && sess.Valid(now)
}
