package conduitauth

import (
	"context"
	"errors"

	"github.com/conduit-realworld/conduitauth/password"
	"github.com/conduit-realworld/conduitauth/session"
)

const (
	auditEventAuthRejected      = "auth_rejected"
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventRegisterSuccess   = "register_success"
	auditEventRegisterFailure   = "register_failure"
	auditEventRegisterDuplicate = "register_duplicate"
	auditEventUserUpdated       = "user_updated"
	auditEventUserUpdateFailure = "user_update_failure"
	auditEventTokenReissued     = "token_reissued"
	auditEventPasswordRehashed  = "password_rehashed"
	auditEventLogoutSession     = "logout_session"
	auditEventLogoutAll         = "logout_all"
)

// AuditErrorCode is the coarse error class recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrInvalidInput          AuditErrorCode = "invalid_input"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrDuplicate             AuditErrorCode = "duplicate"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrSessionNotFound       AuditErrorCode = "session_not_found"
	auditErrUnsupported           AuditErrorCode = "unsupported"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitRejection records a Required-mode authentication failure. The token is never
// included.
func (e *Engine) emitRejection(ctx context.Context, reason Reason) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: auditEventAuthRejected,
		IP:        clientIPFromContext(ctx),
		Reason:    string(reason),
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, password.ErrTooShort),
		errors.Is(err, password.ErrTooLong):
		return auditErrInvalidInput
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserExists):
		return auditErrDuplicate
	case errors.Is(err, session.ErrNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrUnavailable
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrSessionStoreUnsupported),
		errors.Is(err, ErrCredentialStoreRequired):
		return auditErrUnsupported
	default:
		return auditErrInternal
	}
}
