package conduitauth

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conduit-realworld/conduitauth/jwt"
	"github.com/conduit-realworld/conduitauth/session"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUsers is a minimal CredentialStore keyed by id.
type fakeUsers struct {
	mu      sync.Mutex
	records map[string]UserRecord
	nextID  int
	err     error
	lookups atomic.Int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{records: make(map[string]UserRecord)}
}

func (f *fakeUsers) add(username string, active bool) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := User{
		ID:       strconv.Itoa(f.nextID),
		Username: username,
		Email:    username + "@example.com",
		Active:   active,
	}
	f.records[u.ID] = UserRecord{User: u}
	return u
}

func (f *fakeUsers) setActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[id]
	rec.Active = active
	f.records[id] = rec
}

func (f *fakeUsers) GetUserByID(ctx context.Context, userID string) (User, error) {
	f.lookups.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return User{}, f.err
	}
	rec, ok := f.records[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return rec.User, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Email == email {
			return rec, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (f *fakeUsers) CreateUser(ctx context.Context, in CreateUserInput) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Email == in.Email || rec.Username == in.Username {
			return UserRecord{}, ErrUserExists
		}
	}
	f.nextID++
	rec := UserRecord{
		User:         User{ID: strconv.Itoa(f.nextID), Username: in.Username, Email: in.Email, Active: true},
		PasswordHash: in.PasswordHash,
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeUsers) UpdateUser(ctx context.Context, userID string, in UpdateUserInput) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	if in.Username != nil {
		for id, other := range f.records {
			if id != userID && other.Username == *in.Username {
				return UserRecord{}, ErrUserExists
			}
		}
		rec.Username = *in.Username
	}
	if in.Email != nil {
		rec.Email = *in.Email
	}
	if in.Bio != nil {
		rec.Bio = *in.Bio
	}
	if in.Image != nil {
		rec.Image = *in.Image
	}
	if in.PasswordHash != nil {
		rec.PasswordHash = *in.PasswordHash
	}
	f.records[userID] = rec
	return rec, nil
}

// countingStore wraps a MemoryStore and counts mutating calls.
type countingStore struct {
	*session.MemoryStore
	writes atomic.Int64
	getErr error
}

func (c *countingStore) Create(ctx context.Context, userID, ip string) (*session.Session, error) {
	c.writes.Add(1)
	return c.MemoryStore.Create(ctx, userID, ip)
}

func (c *countingStore) Save(ctx context.Context, sess *session.Session) error {
	c.writes.Add(1)
	return c.MemoryStore.Save(ctx, sess)
}

func (c *countingStore) Delete(ctx context.Context, sessionID string) error {
	c.writes.Add(1)
	return c.MemoryStore.Delete(ctx, sessionID)
}

func (c *countingStore) DeleteAllForUser(ctx context.Context, userID string) error {
	c.writes.Add(1)
	return c.MemoryStore.DeleteAllForUser(ctx, userID)
}

func (c *countingStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.MemoryStore.Get(ctx, sessionID)
}

type authFixture struct {
	clock   *testClock
	codec   *jwt.Codec
	store   *countingStore
	users   *fakeUsers
	metrics *Metrics
	auth    *Authenticator
}

func newAuthFixture(t *testing.T, sessionTTL time.Duration) *authFixture {
	t.Helper()
	clock := newTestClock()
	codec, err := jwt.NewCodec(jwt.Config{
		AccessTTL:  time.Hour,
		PrivateKey: testSecret,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	f := &authFixture{
		clock:   clock,
		codec:   codec,
		store:   &countingStore{MemoryStore: session.NewMemoryStore(sessionTTL, clock.Now)},
		users:   newFakeUsers(),
		metrics: NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true}),
	}
	f.auth, err = NewAuthenticator(AuthenticatorDeps{
		Codec:    codec,
		Sessions: f.store,
		Users:    f.users,
		Now:      clock.Now,
		Logger:   quietLogger(),
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	return f
}

// login creates a session for user through the raw store and signs a token for it.
func (f *authFixture) login(t *testing.T, user User) (string, *session.Session) {
	t.Helper()
	sess, err := f.store.MemoryStore.Create(context.Background(), user.ID, "10.0.0.1")
	require.NoError(t, err)
	token, _, err := f.codec.Issue(user.ID, sess.ID)
	require.NoError(t, err)
	return token, sess
}
