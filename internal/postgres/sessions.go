package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-realworld/conduitauth/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, user_id, ip_address, created_at, expires_at`

// SessionStore keeps sessions in the sessions table.
type SessionStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionStore returns a store over pool. ttl is the forced lifetime applied by
// Create; zero stores sessions without expiry.
func NewSessionStore(pool *pgxpool.Pool, ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{pool: pool, ttl: ttl, now: now}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}

func (s *SessionStore) Create(ctx context.Context, userID, ipAddress string) (*session.Session, error) {
	uid, ok := parseUserID(userID)
	if !ok {
		return nil, fmt.Errorf("invalid user id %q", userID)
	}
	sess, err := session.New(userID, ipAddress, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(sess.ID)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		id, uid, sess.IPAddress, sess.CreatedAt, nullTime(sess.ExpiresAt))
	if err != nil {
		return nil, unavailable(err)
	}
	return sess, nil
}

// Get never modifies the row.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, session.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return sess, nil
}

// Delete is idempotent.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	uid, ok := parseUserID(userID)
	if !ok {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, uid); err != nil {
		return unavailable(err)
	}
	return nil
}

// ListForUser returns the sessions of userID, newest first.
func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]*session.Session, error) {
	uid, ok := parseUserID(userID)
	if !ok {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// DeleteExpired removes every session whose expiry is at or before now in a single
// statement.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, unavailable(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		id        uuid.UUID
		userID    int64
		sess      session.Session
		expiresAt *time.Time
	)
	if err := row.Scan(&id, &userID, &sess.IPAddress, &sess.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	sess.ID = id.String()
	sess.UserID = formatUserID(userID)
	sess.CreatedAt = sess.CreatedAt.UTC()
	if expiresAt != nil {
		sess.ExpiresAt = expiresAt.UTC()
	}
	return &sess, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
