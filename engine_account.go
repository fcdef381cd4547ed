package conduitauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-realworld/conduitauth/password"
)

type upgradeChecker interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Register creates an account and signs it in. Blank fields fail with
// ErrInvalidInput; an email or username collision fails with ErrUserExists.
func (e *Engine) Register(ctx context.Context, in RegisterInput, ipAddress string) (User, TokenResult, error) {
	if e == nil || e.hasher == nil {
		return User{}, TokenResult{}, ErrEngineNotReady
	}
	if e.credentials == nil {
		return User{}, TokenResult{}, ErrCredentialStoreRequired
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := (accountFields{Username: &username, Email: &email, Password: &in.Password}).Validate(); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return User{}, TokenResult{}, err
	}

	hash, err := e.hashPassword(in.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return User{}, TokenResult{}, err
	}

	rec, err := e.credentials.CreateUser(ctx, CreateUserInput{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", err, nil)
			return User{}, TokenResult{}, err
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return User{}, TokenResult{}, err
	}

	token, err := e.IssueToken(ctx, rec.ID, ipAddress)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, rec.ID, "", err, nil)
		return User{}, TokenResult{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, token.SessionID, nil, nil)
	return rec.User, token, nil
}

// Login verifies credentials and opens a new session. Unknown email, wrong password
// and inactive accounts all fail with ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, plaintext, ipAddress string) (User, TokenResult, error) {
	if e == nil || e.hasher == nil {
		return User{}, TokenResult{}, ErrEngineNotReady
	}
	if e.credentials == nil {
		return User{}, TokenResult{}, ErrCredentialStoreRequired
	}

	email = strings.TrimSpace(email)
	if email == "" || plaintext == "" {
		return User{}, TokenResult{}, e.loginFailed(ctx, "", "missing_field")
	}

	rec, err := e.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, TokenResult{}, e.loginFailed(ctx, "", "unknown_user")
		}
		e.logger.WarnContext(ctx, "credential lookup failed", "error", err)
		return User{}, TokenResult{}, err
	}

	ok, err := e.hasher.Verify(plaintext, rec.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrMalformedHash) {
			e.logger.WarnContext(ctx, "stored password hash is malformed", "user_id", rec.ID)
		}
		return User{}, TokenResult{}, e.loginFailed(ctx, rec.ID, "verify_error")
	}
	if !ok {
		return User{}, TokenResult{}, e.loginFailed(ctx, rec.ID, "wrong_password")
	}
	if !rec.Active {
		return User{}, TokenResult{}, e.loginFailed(ctx, rec.ID, "inactive")
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeRehash(ctx, rec, plaintext)
	}

	token, err := e.IssueToken(ctx, rec.ID, ipAddress)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, "", err, nil)
		return User{}, TokenResult{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, token.SessionID, nil, nil)
	return rec.User, token, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID, cause string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"cause": cause}
	})
	return ErrInvalidCredentials
}

// maybeRehash replaces a hash produced with weaker parameters. Failures are logged
// and never fail the login.
func (e *Engine) maybeRehash(ctx context.Context, rec UserRecord, plaintext string) {
	checker, ok := e.hasher.(upgradeChecker)
	if !ok {
		return
	}
	needs, err := checker.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", "user_id", rec.ID, "error", err)
		return
	}
	if _, err := e.credentials.UpdateUser(ctx, rec.ID, UpdateUserInput{PasswordHash: &hash}); err != nil {
		e.logger.WarnContext(ctx, "password rehash not stored", "user_id", rec.ID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
	e.emitAudit(ctx, auditEventPasswordRehashed, true, rec.ID, "", nil, nil)
}

// UpdateUser applies a partial profile update for the authenticated user and returns
// a fresh token for the same session. Nil fields are left unchanged.
func (e *Engine) UpdateUser(ctx context.Context, identity Identity, changes UserChanges) (User, TokenResult, error) {
	if e == nil || e.hasher == nil {
		return User{}, TokenResult{}, ErrEngineNotReady
	}
	if e.credentials == nil {
		return User{}, TokenResult{}, ErrCredentialStoreRequired
	}
	userID := identity.User.ID

	input := UpdateUserInput{
		Username: trimmed(changes.Username),
		Email:    trimmed(changes.Email),
		Bio:      changes.Bio,
		Image:    changes.Image,
	}
	fields := accountFields{Username: input.Username, Email: input.Email, Password: changes.Password}
	if err := fields.Validate(); err != nil {
		return e.updateFailed(ctx, identity, err)
	}
	if changes.Password != nil {
		hash, err := e.hashPassword(*changes.Password)
		if err != nil {
			return e.updateFailed(ctx, identity, err)
		}
		input.PasswordHash = &hash
	}

	rec, err := e.credentials.UpdateUser(ctx, userID, input)
	if err != nil {
		return e.updateFailed(ctx, identity, err)
	}

	token, err := e.Reissue(ctx, Identity{User: rec.User, Session: identity.Session})
	if err != nil {
		return User{}, TokenResult{}, err
	}

	e.metricInc(MetricUserUpdated)
	e.emitAudit(ctx, auditEventUserUpdated, true, userID, identity.Session.ID, nil, func() map[string]string {
		return map[string]string{"fields": changedFields(changes)}
	})
	return rec.User, token, nil
}

func (e *Engine) updateFailed(ctx context.Context, identity Identity, err error) (User, TokenResult, error) {
	e.emitAudit(ctx, auditEventUserUpdateFailure, false, identity.User.ID, identity.Session.ID, err, nil)
	return User{}, TokenResult{}, err
}

func (e *Engine) hashPassword(plaintext string) (string, error) {
	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", err
	}
	return hash, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func changedFields(c UserChanges) string {
	fields := make([]string, 0, 5)
	if c.Username != nil {
		fields = append(fields, "username")
	}
	if c.Email != nil {
		fields = append(fields, "email")
	}
	if c.Bio != nil {
		fields = append(fields, "bio")
	}
	if c.Image != nil {
		fields = append(fields, "image")
	}
	if c.Password != nil {
		fields = append(fields, "password")
	}
	return strings.Join(fields, ",")
}
