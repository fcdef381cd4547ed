package userstore

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/conduit-realworld/conduitauth"
)

// Memory is an in-process CredentialStore. Ids are decimal strings assigned in
// creation order. Emails compare case-insensitively.
type Memory struct {
	mu         sync.RWMutex
	nextID     uint64
	byID       map[string]conduitauth.UserRecord
	byEmail    map[string]string
	byUsername map[string]string
}

var _ conduitauth.CredentialStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[string]conduitauth.UserRecord),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Memory) GetUserByID(ctx context.Context, userID string) (conduitauth.User, error) {
	if err := ctx.Err(); err != nil {
		return conduitauth.User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[userID]
	if !ok {
		return conduitauth.User{}, conduitauth.ErrUserNotFound
	}
	return rec.User, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (conduitauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return conduitauth.UserRecord{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[emailKey(email)]
	if !ok {
		return conduitauth.UserRecord{}, conduitauth.ErrUserNotFound
	}
	return m.byID[id], nil
}

// GetUserByUsername resolves a public profile.
func (m *Memory) GetUserByUsername(ctx context.Context, username string) (conduitauth.User, error) {
	if err := ctx.Err(); err != nil {
		return conduitauth.User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return conduitauth.User{}, conduitauth.ErrUserNotFound
	}
	return m.byID[id].User, nil
}

func (m *Memory) CreateUser(ctx context.Context, in conduitauth.CreateUserInput) (conduitauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return conduitauth.UserRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := emailKey(in.Email)
	if _, taken := m.byEmail[key]; taken {
		return conduitauth.UserRecord{}, conduitauth.ErrUserExists
	}
	if _, taken := m.byUsername[in.Username]; taken {
		return conduitauth.UserRecord{}, conduitauth.ErrUserExists
	}

	m.nextID++
	rec := conduitauth.UserRecord{
		User: conduitauth.User{
			ID:       strconv.FormatUint(m.nextID, 10),
			Username: in.Username,
			Email:    strings.TrimSpace(in.Email),
			Active:   true,
		},
		PasswordHash: in.PasswordHash,
	}
	m.byID[rec.ID] = rec
	m.byEmail[key] = rec.ID
	m.byUsername[rec.Username] = rec.ID
	return rec, nil
}

func (m *Memory) UpdateUser(ctx context.Context, userID string, in conduitauth.UpdateUserInput) (conduitauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return conduitauth.UserRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[userID]
	if !ok {
		return conduitauth.UserRecord{}, conduitauth.ErrUserNotFound
	}

	oldEmail, oldUsername := emailKey(rec.Email), rec.Username
	if in.Email != nil {
		key := emailKey(*in.Email)
		if owner, taken := m.byEmail[key]; taken && owner != userID {
			return conduitauth.UserRecord{}, conduitauth.ErrUserExists
		}
		rec.Email = strings.TrimSpace(*in.Email)
	}
	if in.Username != nil {
		if owner, taken := m.byUsername[*in.Username]; taken && owner != userID {
			return conduitauth.UserRecord{}, conduitauth.ErrUserExists
		}
		rec.Username = *in.Username
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

	delete(m.byEmail, oldEmail)
	delete(m.byUsername, oldUsername)
	m.byEmail[emailKey(rec.Email)] = userID
	m.byUsername[rec.Username] = userID
	m.byID[userID] = rec
	return rec, nil
}

// SetActive flips the account flag. Deactivated users fail authentication with
// invalid_user; callers usually also revoke their sessions with Engine.LogoutAll.
func (m *Memory) SetActive(ctx context.Context, userID string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[userID]
	if !ok {
		return conduitauth.ErrUserNotFound
	}
	rec.Active = active
	m.byID[userID] = rec
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
