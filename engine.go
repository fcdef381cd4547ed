package conduitauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conduit-realworld/conduitauth/internal/audit"
	"github.com/conduit-realworld/conduitauth/jwt"
	"github.com/conduit-realworld/conduitauth/session"
)

// Engine issues tokens, manages sessions and authenticates requests. Construct it
// with New().…Build(). It is safe for concurrent use.
type Engine struct {
	config        Config
	codec         *jwt.Codec
	sessions      SessionStore
	users         UserProvider
	credentials   CredentialStore
	hasher        PasswordHasher
	authenticator *Authenticator
	audit         *audit.Dispatcher
	metrics       *Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// Close flushes pending audit events. It waits at most five seconds.
func (e *Engine) Close() {
	if e == nil || e.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.audit.Close(ctx); err != nil {
		e.logger.Warn("audit flush incomplete", "error", err, "dropped", e.audit.Dropped())
	}
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Config returns a copy of the Engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Authenticator exposes the request authenticator for middleware.
func (e *Engine) Authenticator() *Authenticator {
	if e == nil {
		return nil
	}
	return e.authenticator
}

// Authenticate resolves an Authorization header. See Authenticator.Authenticate.
// Rejections are also sent to the audit sink.
func (e *Engine) Authenticate(ctx context.Context, header string, mode Mode) Result {
	if e == nil || e.authenticator == nil {
		if mode == ModeOptional {
			return Anonymous{}
		}
		return Rejected{Reason: ReasonUnavailable}
	}

	result := e.authenticator.Authenticate(ctx, header, mode)
	if rejected, ok := result.(Rejected); ok && rejected.Reason != ReasonMissingToken {
		e.emitRejection(ctx, rejected.Reason)
	}
	return result
}

// IssueToken creates a session for userID and returns an access token bound to it.
// An empty ipAddress falls back to the client IP in ctx, then to 127.0.0.1.
func (e *Engine) IssueToken(ctx context.Context, userID, ipAddress string) (TokenResult, error) {
	if e == nil || e.codec == nil || e.sessions == nil {
		return TokenResult{}, ErrEngineNotReady
	}
	if userID == "" {
		return TokenResult{}, ErrUserNotFound
	}
	if ipAddress == "" {
		ipAddress = clientIPFromContext(ctx)
	}
	if ipAddress == "" {
		ipAddress = session.DefaultIPAddress
	}

	sess, err := e.sessions.Create(ctx, userID, ipAddress)
	if err != nil {
		e.logger.WarnContext(ctx, "session create failed", "user_id", userID, "error", err)
		return TokenResult{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	e.metricInc(MetricSessionCreated)

	result, err := e.issueForSession(sess)
	if err != nil {
		// Best effort: a session without a token is unreachable but still listed.
		if delErr := e.sessions.Delete(ctx, sess.ID); delErr != nil {
			e.logger.WarnContext(ctx, "orphan session cleanup failed", "session_id", sess.ID, "error", delErr)
		}
		return TokenResult{}, err
	}

	e.logger.InfoContext(ctx, "session created", "user_id", userID, "session_id", sess.ID)
	return result, nil
}

// Reissue signs a fresh access token for the session in identity. Earlier tokens for
// the session stay valid until they expire or the session is deleted.
func (e *Engine) Reissue(ctx context.Context, identity Identity) (TokenResult, error) {
	if e == nil || e.codec == nil {
		return TokenResult{}, ErrEngineNotReady
	}
	if identity.Session.ID == "" || identity.User.ID == "" {
		return TokenResult{}, ErrSessionCreationFailed
	}

	result, err := e.issueForSession(&identity.Session)
	if err != nil {
		return TokenResult{}, err
	}
	e.metricInc(MetricTokenReissued)
	e.emitAudit(ctx, auditEventTokenReissued, true, identity.User.ID, identity.Session.ID, nil, nil)
	return result, nil
}

func (e *Engine) issueForSession(sess *session.Session) (TokenResult, error) {
	token, claims, err := e.codec.Issue(sess.UserID, sess.ID)
	if err != nil {
		return TokenResult{}, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	e.metricInc(MetricTokenIssued)
	return TokenResult{
		Token:     token,
		SessionID: sess.ID,
		ExpiresAt: claims.Expiry(),
	}, nil
}

// Logout deletes one session. Deleting an unknown session succeeds.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	err := e.sessions.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.logger.InfoContext(ctx, "session deleted", "session_id", sessionID)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionID, err, nil)
	return err
}

// LogoutAll deletes every session of userID, revoking all of its tokens.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	deleter, ok := e.sessions.(UserSessionDeleter)
	if !ok {
		return ErrSessionStoreUnsupported
	}

	err := deleter.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.logger.InfoContext(ctx, "all sessions deleted", "user_id", userID)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}
