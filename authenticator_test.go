package conduitauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conduit-realworld/conduitauth/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRejected(t *testing.T, result Result, want Reason) {
	t.Helper()
	rejected, ok := result.(Rejected)
	require.Truef(t, ok, "expected Rejected(%s), got %#v", want, result)
	assert.Equal(t, want, rejected.Reason)
}

func TestAuthenticateHappyPath(t *testing.T) {
	f := newAuthFixture(t, 0)
	jake := f.users.add("jake", true)
	token, sess := f.login(t, jake)

	for _, mode := range []Mode{ModeRequired, ModeOptional} {
		result := f.auth.Authenticate(context.Background(), "Token "+token, mode)
		identity, ok := IdentityOf(result)
		require.True(t, ok, "mode %s: %#v", mode, result)
		assert.Equal(t, jake.ID, identity.User.ID)
		assert.Equal(t, "jake", identity.User.Username)
		assert.Equal(t, sess.ID, identity.Session.ID)
		assert.Equal(t, "10.0.0.1", identity.Session.IPAddress)
	}
	assert.EqualValues(t, 2, f.metrics.Value(MetricAuthAuthenticated))
}

func TestAuthenticateSchemes(t *testing.T) {
	f := newAuthFixture(t, 0)
	jake := f.users.add("jake", true)
	token, _ := f.login(t, jake)

	cases := []struct {
		name     string
		header   string
		required Reason
	}{
		{name: "token scheme", header: "Token " + token},
		{name: "bearer scheme", header: "Bearer " + token},
		{name: "empty header", header: "", required: ReasonMissingToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", required: ReasonMissingToken},
		{name: "lowercase scheme", header: "token " + token, required: ReasonMissingToken},
		{name: "no space", header: "Token" + token, required: ReasonMissingToken},
		{name: "bare token", header: token, required: ReasonMissingToken},
		{name: "empty credential", header: "Bearer ", required: ReasonMissingToken},
		{name: "double space", header: "Token  " + token, required: ReasonInvalidToken},
		{name: "only first prefix stripped", header: "Token Bearer " + token, required: ReasonInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			required := f.auth.Authenticate(context.Background(), tc.header, ModeRequired)
			optional := f.auth.Authenticate(context.Background(), tc.header, ModeOptional)
			if tc.required == "" {
				_, ok := required.(Authenticated)
				assert.True(t, ok, "%#v", required)
				_, ok = optional.(Authenticated)
				assert.True(t, ok, "%#v", optional)
				return
			}
			requireRejected(t, required, tc.required)
			assert.Equal(t, Anonymous{}, optional)
		})
	}
}

func TestAuthenticateTokenFailures(t *testing.T) {
	f := newAuthFixture(t, 0)
	jake := f.users.add("jake", true)
	token, _ := f.login(t, jake)

	t.Run("flipped signature byte", func(t *testing.T) {
		// The final base64 character carries padding bits; flip one in the middle.
		i := len(token) - 10
		flipped := byte('A')
		if token[i] == 'A' {
			flipped = 'Q'
		}
		tampered := token[:i] + string(flipped) + token[i+1:]
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+tampered, ModeRequired), ReasonInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token not.a.jwt", ModeRequired), ReasonInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(time.Hour)
		defer f.clock.Advance(-time.Hour)
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonExpiredToken)
		assert.Equal(t, Anonymous{}, f.auth.Authenticate(context.Background(), "Token "+token, ModeOptional))
	})

	t.Run("forged and expired is invalid", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
		f.clock.Advance(2 * time.Hour)
		defer f.clock.Advance(-2 * time.Hour)
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+forged, ModeRequired), ReasonInvalidToken)
	})
}

func TestAuthenticateSessionStates(t *testing.T) {
	f := newAuthFixture(t, 30*time.Minute)
	jake := f.users.add("jake", true)

	t.Run("deleted session revokes token", func(t *testing.T) {
		token, sess := f.login(t, jake)
		require.NoError(t, f.store.MemoryStore.Delete(context.Background(), sess.ID))
		requireRejected(t, f.auth.Authenticate(context.Background(), "Bearer "+token, ModeRequired), ReasonSessionNotFound)
		assert.Equal(t, Anonymous{}, f.auth.Authenticate(context.Background(), "Bearer "+token, ModeOptional))
	})

	t.Run("unknown session id", func(t *testing.T) {
		token, _, err := f.codec.Issue(jake.ID, "00000000-0000-4000-8000-000000000000")
		require.NoError(t, err)
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonSessionNotFound)
	})

	t.Run("session of another user", func(t *testing.T) {
		anna := f.users.add("anna", true)
		_, annaSession := f.login(t, anna)
		token, _, err := f.codec.Issue(jake.ID, annaSession.ID)
		require.NoError(t, err)
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonSessionNotFound)
	})

	t.Run("stored but expired session", func(t *testing.T) {
		token, _ := f.login(t, jake)
		f.clock.Advance(30 * time.Minute)
		defer f.clock.Advance(-30 * time.Minute)
		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonSessionExpired)
		assert.Equal(t, Anonymous{}, f.auth.Authenticate(context.Background(), "Token "+token, ModeOptional))
	})

	t.Run("session just before expiry", func(t *testing.T) {
		token, _ := f.login(t, jake)
		f.clock.Advance(30*time.Minute - time.Second)
		defer f.clock.Advance(-(30*time.Minute - time.Second))
		_, ok := f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired).(Authenticated)
		assert.True(t, ok)
	})
}

func TestAuthenticateUserStates(t *testing.T) {
	f := newAuthFixture(t, 0)
	jake := f.users.add("jake", true)
	token, _ := f.login(t, jake)

	f.users.setActive(jake.ID, false)
	requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonInvalidUser)
	assert.Equal(t, Anonymous{}, f.auth.Authenticate(context.Background(), "Token "+token, ModeOptional))

	f.users.setActive(jake.ID, true)
	_, ok := f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired).(Authenticated)
	assert.True(t, ok)

	ghost := User{ID: "999"}
	token, _ = f.login(t, ghost)
	requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonInvalidUser)
}

func TestAuthenticateUnavailable(t *testing.T) {
	t.Run("cancelled context never authenticates", func(t *testing.T) {
		f := newAuthFixture(t, 0)
		jake := f.users.add("jake", true)
		token, _ := f.login(t, jake)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		requireRejected(t, f.auth.Authenticate(ctx, "Token "+token, ModeRequired), ReasonUnavailable)
		assert.Equal(t, Anonymous{}, f.auth.Authenticate(ctx, "Token "+token, ModeOptional))
	})

	t.Run("session backend failure", func(t *testing.T) {
		f := newAuthFixture(t, 0)
		jake := f.users.add("jake", true)
		token, _ := f.login(t, jake)
		f.store.getErr = fmt.Errorf("%w: connection refused", session.ErrStoreUnavailable)

		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonUnavailable)
		assert.EqualValues(t, 1, f.metrics.Value(MetricAuthUnavailable))
	})

	t.Run("user backend failure", func(t *testing.T) {
		f := newAuthFixture(t, 0)
		jake := f.users.add("jake", true)
		token, _ := f.login(t, jake)
		f.users.err = errors.New("db down")

		requireRejected(t, f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired), ReasonUnavailable)
	})
}

func TestAuthenticateStopsAtFirstFailure(t *testing.T) {
	f := newAuthFixture(t, 0)
	f.users.add("jake", true)

	f.auth.Authenticate(context.Background(), "Token garbage", ModeRequired)
	f.auth.Authenticate(context.Background(), "", ModeRequired)
	assert.Zero(t, f.users.lookups.Load())
}

func TestAuthenticateNeverWrites(t *testing.T) {
	f := newAuthFixture(t, time.Minute)
	jake := f.users.add("jake", true)
	token, sess := f.login(t, jake)
	expired, _ := f.login(t, jake)
	before := f.store.Len()

	headers := []string{
		"", "Basic x", "Token garbage", "Token " + token, "Bearer " + token,
	}
	for _, h := range headers {
		f.auth.Authenticate(context.Background(), h, ModeRequired)
		f.auth.Authenticate(context.Background(), h, ModeOptional)
	}
	f.clock.Advance(2 * time.Minute)
	f.auth.Authenticate(context.Background(), "Token "+expired, ModeRequired)

	assert.Zero(t, f.store.writes.Load())
	assert.Equal(t, before, f.store.Len())
	got, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ExpiresAt, got.ExpiresAt)
}

func TestAuthenticateMetricsPerOutcome(t *testing.T) {
	f := newAuthFixture(t, 0)
	jake := f.users.add("jake", true)
	token, _ := f.login(t, jake)

	f.auth.Authenticate(context.Background(), "", ModeRequired)
	f.auth.Authenticate(context.Background(), "", ModeOptional)
	f.auth.Authenticate(context.Background(), "Token junk", ModeRequired)
	f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired)

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 2, snap.Counters[MetricAuthMissingToken])
	assert.EqualValues(t, 1, snap.Counters[MetricAuthAnonymous])
	assert.EqualValues(t, 1, snap.Counters[MetricAuthInvalidToken])
	assert.EqualValues(t, 1, snap.Counters[MetricAuthAuthenticated])

	var observed uint64
	for _, n := range snap.Histograms[MetricAuthenticateLatency] {
		observed += n
	}
	assert.EqualValues(t, 4, observed)
}

func TestAuthenticateConcurrent(t *testing.T) {
	f := newAuthFixture(t, 0)
	jake := f.users.add("jake", true)
	token, _ := f.login(t, jake)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, ok := f.auth.Authenticate(context.Background(), "Token "+token, ModeRequired).(Authenticated)
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 800, f.metrics.Value(MetricAuthAuthenticated))
}

func TestNewAuthenticatorRequiresDeps(t *testing.T) {
	_, err := NewAuthenticator(AuthenticatorDeps{})
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	token, ok := extractToken("Token abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	token, ok = extractToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = extractToken("Token ")
	assert.False(t, ok)
	_, ok = extractToken("JWT abc")
	assert.False(t, ok)
}
