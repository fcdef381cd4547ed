package conduitauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/conduit-realworld/conduitauth/jwt"
	"github.com/conduit-realworld/conduitauth/session"
)

// Accepted Authorization schemes, checked in order. Matching is case-sensitive.
var authSchemes = [...]string{"Token ", "Bearer "}

// TokenDecoder verifies an access token. *jwt.Codec satisfies it.
type TokenDecoder interface {
	Decode(token string) (jwt.Claims, error)
}

// AuthenticatorDeps are the collaborators of an Authenticator. Codec, Sessions and
// Users are required.
type AuthenticatorDeps struct {
	Codec    TokenDecoder
	Sessions SessionStore
	Users    UserProvider
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Authenticator resolves an Authorization header to a Result. It holds no mutable
// state and is safe for concurrent use.
type Authenticator struct {
	codec    TokenDecoder
	sessions SessionStore
	users    UserProvider
	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics
}

func NewAuthenticator(deps AuthenticatorDeps) (*Authenticator, error) {
	if deps.Codec == nil || deps.Sessions == nil || deps.Users == nil {
		return nil, errors.New("authenticator requires codec, session store and user provider")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Authenticator{
		codec:    deps.Codec,
		sessions: deps.Sessions,
		users:    deps.Users,
		now:      deps.Now,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}, nil
}

// Authenticate runs header through scheme check, token decode, session lookup,
// session freshness and user lookup. The first failing step decides the Reason.
// In ModeOptional every failure yields Anonymous instead of Rejected.
//
// Authenticate never writes to the session or user store.
func (a *Authenticator) Authenticate(ctx context.Context, header string, mode Mode) Result {
	if a.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { a.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	identity, reason, sessionID := a.resolve(ctx, header)
	if reason == "" {
		a.metrics.Inc(MetricAuthAuthenticated)
		return Authenticated{Identity: identity}
	}

	a.metrics.Inc(reasonMetric(reason))
	attrs := []slog.Attr{
		slog.String("reason", string(reason)),
		slog.String("mode", mode.String()),
	}
	if sessionID != "" {
		attrs = append(attrs, slog.String("session_id", sessionID))
	}
	a.logger.LogAttrs(ctx, slog.LevelDebug, "authentication rejected", attrs...)

	if mode == ModeOptional {
		a.metrics.Inc(MetricAuthAnonymous)
		return Anonymous{}
	}
	return Rejected{Reason: reason}
}

// resolve returns the identity or the first failing reason. sessionID is set once
// the token has been decoded.
func (a *Authenticator) resolve(ctx context.Context, header string) (Identity, Reason, string) {
	token, ok := extractToken(header)
	if !ok {
		return Identity{}, ReasonMissingToken, ""
	}

	claims, err := a.codec.Decode(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return Identity{}, ReasonExpiredToken, ""
		}
		return Identity{}, ReasonInvalidToken, ""
	}
	sid := claims.SessionID

	if ctx.Err() != nil {
		return Identity{}, ReasonUnavailable, sid
	}

	sess, err := a.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Identity{}, ReasonSessionNotFound, sid
		}
		a.logger.WarnContext(ctx, "session lookup failed", "session_id", sid, "error", err)
		return Identity{}, ReasonUnavailable, sid
	}
	if sess == nil || sess.UserID != claims.UserID {
		return Identity{}, ReasonSessionNotFound, sid
	}
	if !sess.Valid(a.now()) {
		return Identity{}, ReasonSessionExpired, sid
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ReasonInvalidUser, sid
		}
		a.logger.WarnContext(ctx, "user lookup failed", "session_id", sid, "error", err)
		return Identity{}, ReasonUnavailable, sid
	}
	if !user.Active {
		return Identity{}, ReasonInvalidUser, sid
	}

	// A lookup that ignored cancellation must still not authenticate.
	if ctx.Err() != nil {
		return Identity{}, ReasonUnavailable, sid
	}

	return Identity{User: user, Session: *sess}, "", sid
}

// ExtractToken returns the credential of an Authorization header value using the
// same scheme rules as Authenticate. It does not verify the token.
func ExtractToken(header string) (string, bool) {
	return extractToken(header)
}

// extractToken strips the first matching scheme. An empty header, an unknown
// scheme, or an empty credential all report !ok.
func extractToken(header string) (string, bool) {
	for _, scheme := range authSchemes {
		if strings.HasPrefix(header, scheme) {
			token := header[len(scheme):]
			return token, token != ""
		}
	}
	return "", false
}
