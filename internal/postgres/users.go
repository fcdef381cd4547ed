package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-realworld/conduitauth"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, bio, image, is_active, password_hash`

// UserStore is a CredentialStore over the users table. Emails compare
// case-insensitively.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ conduitauth.CredentialStore = (*UserStore)(nil)

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (u *UserStore) GetUserByID(ctx context.Context, userID string) (conduitauth.User, error) {
	id, ok := parseUserID(userID)
	if !ok {
		return conduitauth.User{}, conduitauth.ErrUserNotFound
	}
	rec, err := u.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return conduitauth.User{}, err
	}
	return rec.User, nil
}

func (u *UserStore) GetUserByEmail(ctx context.Context, email string) (conduitauth.UserRecord, error) {
	return u.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
}

func (u *UserStore) GetUserByUsername(ctx context.Context, username string) (conduitauth.User, error) {
	rec, err := u.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		return conduitauth.User{}, err
	}
	return rec.User, nil
}

// CreateUser fails with ErrUserExists when the email or username is taken.
func (u *UserStore) CreateUser(ctx context.Context, in conduitauth.CreateUserInput) (conduitauth.UserRecord, error) {
	return u.queryOne(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING `+userColumns,
		in.Username, in.Email, in.PasswordHash)
}

// UpdateUser applies the non-nil fields of in.
func (u *UserStore) UpdateUser(ctx context.Context, userID string, in conduitauth.UpdateUserInput) (conduitauth.UserRecord, error) {
	id, ok := parseUserID(userID)
	if !ok {
		return conduitauth.UserRecord{}, conduitauth.ErrUserNotFound
	}
	return u.queryOne(ctx,
		`UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email),
			bio = COALESCE($4, bio),
			image = COALESCE($5, image),
			password_hash = COALESCE($6, password_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, in.Username, in.Email, in.Bio, in.Image, in.PasswordHash)
}

// SetActive flips is_active. Deactivated users no longer authenticate.
func (u *UserStore) SetActive(ctx context.Context, userID string, active bool) error {
	id, ok := parseUserID(userID)
	if !ok {
		return conduitauth.ErrUserNotFound
	}
	tag, err := u.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conduitauth.ErrUserNotFound
	}
	return nil
}

func (u *UserStore) queryOne(ctx context.Context, query string, args ...any) (conduitauth.UserRecord, error) {
	var (
		rec conduitauth.UserRecord
		id  int64
	)
	err := u.pool.QueryRow(ctx, query, args...).Scan(
		&id, &rec.Username, &rec.Email, &rec.Bio, &rec.Image, &rec.Active, &rec.PasswordHash)
	if err != nil {
		return conduitauth.UserRecord{}, mapUserError(err)
	}
	rec.ID = formatUserID(id)
	return rec, nil
}

func mapUserError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return conduitauth.ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return conduitauth.ErrUserExists
	}
	return fmt.Errorf("user store: %w", err)
}
