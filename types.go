package conduitauth

import (
	"context"
	"time"

	"github.com/conduit-realworld/conduitauth/session"
)

// User is the public view of an account.
type User struct {
	ID       string
	Username string
	Email    string
	Bio      string
	Image    string
	Active   bool
}

// UserRecord is a User plus its stored credential hash.
type UserRecord struct {
	User
	PasswordHash string
}

// CreateUserInput carries a new account. PasswordHash is already hashed.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username     *string
	Email        *string
	Bio          *string
	Image        *string
	PasswordHash *string
}

// RegisterInput is the plaintext registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UserChanges is the plaintext form of a profile update accepted by Engine.UpdateUser.
type UserChanges struct {
	Username *string
	Email    *string
	Bio      *string
	Image    *string
	Password *string
}

// Identity is the authenticated principal of a request. It is built per request and
// never persisted.
type Identity struct {
	User    User
	Session session.Session
}

// TokenResult is a freshly issued access token.
type TokenResult struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// SessionInfo is the introspection view of a session.
type SessionInfo struct {
	ID        string
	IPAddress string
	CreatedAt time.Time
	// ExpiresAt is zero for sessions without forced expiry.
	ExpiresAt time.Time
}

// UserProvider resolves the user behind a session.
type UserProvider interface {
	// GetUserByID returns ErrUserNotFound when no user has the id.
	GetUserByID(ctx context.Context, userID string) (User, error)
}

// CredentialStore is a UserProvider that also owns credentials. Register, Login, and
// UpdateUser require one.
type CredentialStore interface {
	UserProvider
	// GetUserByEmail returns ErrUserNotFound when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	// CreateUser returns ErrUserExists on an email or username collision.
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	// UpdateUser returns ErrUserNotFound or ErrUserExists.
	UpdateUser(ctx context.Context, userID string, input UpdateUserInput) (UserRecord, error)
}

// SessionStore persists sessions. Get returns session.ErrNotFound for unknown ids and
// must not write. Delete is idempotent.
type SessionStore interface {
	Create(ctx context.Context, userID, ipAddress string) (*session.Session, error)
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// UserSessionDeleter is implemented by stores that can revoke all sessions of a user.
type UserSessionDeleter interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

// UserSessionLister is implemented by stores that can enumerate sessions of a user.
type UserSessionLister interface {
	ListForUser(ctx context.Context, userID string) ([]*session.Session, error)
}

// Pinger is implemented by stores with a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PasswordHasher hashes and verifies passwords. password.Argon2 satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}
