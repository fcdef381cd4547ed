package conduitauth

import (
	"context"
	"testing"
	"time"

	"github.com/conduit-realworld/conduitauth/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rejectedReason(t *testing.T, r Result) Reason {
	t.Helper()
	rejected, ok := r.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", r)
	return rejected.Reason
}

func TestSecurityInvariantLogoutRevokesImmediately(t *testing.T) {
	f := newRedisEngine(t, 0)
	_, token := f.register(t, "jake")
	header := "Token " + token.Token

	_, ok := f.engine.Authenticate(context.Background(), header, ModeRequired).(Authenticated)
	require.True(t, ok)

	require.NoError(t, f.engine.Logout(context.Background(), token.SessionID))
	assert.Equal(t, ReasonSessionNotFound, rejectedReason(t, f.engine.Authenticate(context.Background(), header, ModeRequired)))
	assert.False(t, f.mr.Exists("cs:s:"+token.SessionID))
}

func TestSecurityInvariantTokenBoundToSessionOwner(t *testing.T) {
	f := newRedisEngine(t, 0)
	jake, _ := f.register(t, "jake")
	_, celeb := f.register(t, "celeb")

	// A validly signed token pairing jake with celeb's session.
	forged, _, err := f.engine.codec.Issue(jake.ID, celeb.SessionID)
	require.NoError(t, err)

	r := f.engine.Authenticate(context.Background(), "Token "+forged, ModeRequired)
	assert.Equal(t, ReasonSessionNotFound, rejectedReason(t, r))
}

func TestSecurityInvariantForeignSignatureRejected(t *testing.T) {
	f := newRedisEngine(t, 0)
	jake, token := f.register(t, "jake")

	other, err := jwt.NewCodec(jwt.Config{
		AccessTTL:  time.Hour,
		PrivateKey: []byte("another-secret-another-secret-xx"),
		Now:        f.clock.Now,
	})
	require.NoError(t, err)
	forged, _, err := other.Issue(jake.ID, token.SessionID)
	require.NoError(t, err)

	r := f.engine.Authenticate(context.Background(), "Token "+forged, ModeRequired)
	assert.Equal(t, ReasonInvalidToken, rejectedReason(t, r))
}

func TestSecurityInvariantExpiredTokenRejectedWhileSessionLives(t *testing.T) {
	f := newRedisEngine(t, 0)
	_, token := f.register(t, "jake")

	f.clock.Advance(time.Hour + time.Second)
	r := f.engine.Authenticate(context.Background(), "Token "+token.Token, ModeRequired)
	assert.Equal(t, ReasonExpiredToken, rejectedReason(t, r))
}

func TestSecurityInvariantDeactivatedUserRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	user, token := f.register(t, "jake")
	f.users.setActive(user.ID, false)

	assert.Equal(t, ReasonInvalidUser, rejectedReason(t, f.authenticate(token.Token)))
	_, _, err := f.engine.Login(context.Background(), "jake@example.com", "correct horse battery", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSecurityInvariantReissueKeepsSessionRevocable(t *testing.T) {
	f := newEngineFixture(t, nil)
	_, token := f.register(t, "jake")

	res, ok := f.authenticate(token.Token).(Authenticated)
	require.True(t, ok)
	f.clock.Advance(time.Second)
	reissued, err := f.engine.Reissue(context.Background(), res.Identity)
	require.NoError(t, err)
	assert.Equal(t, token.SessionID, reissued.SessionID)

	require.NoError(t, f.engine.Logout(context.Background(), token.SessionID))
	assert.Equal(t, ReasonSessionNotFound, rejectedReason(t, f.authenticate(token.Token)))
	assert.Equal(t, ReasonSessionNotFound, rejectedReason(t, f.authenticate(reissued.Token)))
}

func TestSecurityInvariantRedisReportsExpiredSession(t *testing.T) {
	f := newRedisEngine(t, time.Minute)
	_, token := f.register(t, "jake")

	f.clock.Advance(2 * time.Minute)
	f.mr.FastForward(2 * time.Minute)

	r := f.engine.Authenticate(context.Background(), "Token "+token.Token, ModeRequired)
	assert.Equal(t, ReasonSessionExpired, rejectedReason(t, r))
}
