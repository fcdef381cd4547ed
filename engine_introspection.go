package conduitauth

import (
	"context"
	"sort"
	"time"

	"github.com/conduit-realworld/conduitauth/session"
)

// HealthStatus is an on-demand session backend health result.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
}

// ListSessions returns the sessions of userID that are still valid, newest first.
// Token material is never part of the view.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}
	lister, ok := e.sessions.(UserSessionLister)
	if !ok {
		return nil, ErrSessionStoreUnsupported
	}

	sessions, err := lister.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		if !session.IsValid(sess, now) {
			continue
		}
		out = append(out, toSessionInfo(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// Health pings the session store. Stores without a Ping method report available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}
	pinger, ok := e.sessions.(Pinger)
	if !ok {
		return HealthStatus{StoreAvailable: true}
	}

	start := time.Now()
	err := pinger.Ping(ctx)
	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   time.Since(start),
	}
}

func toSessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		ID:        sess.ID,
		IPAddress: sess.IPAddress,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}
}
