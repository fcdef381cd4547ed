package conduitauth

import (
	"testing"
	"time"

	"github.com/conduit-realworld/conduitauth/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	f := newEngineFixture(t, func(c *Config) {
		c.Session.TTL = 30 * time.Minute
		c.JWT.Issuer = "conduit"
	})

	r := f.engine.SecurityReport()
	assert.Equal(t, "hs256", r.SigningAlgorithm)
	assert.Equal(t, "conduit", r.Issuer)
	assert.Equal(t, time.Hour, r.AccessTTL)
	assert.Equal(t, 30*time.Minute, r.SessionTTL)
	assert.Equal(t, uint32(8*1024), r.Argon2.Memory)
	assert.True(t, r.AuditEnabled)
	assert.True(t, r.MetricsEnabled)
	assert.True(t, r.LogoutAllSupported)
	assert.True(t, r.SessionListingSupported)
	// session_shorter_than_access and argon2_memory_low
	assert.Equal(t, 2, r.LintWarnings)
}

func TestSecurityReportStoreCapabilities(t *testing.T) {
	engine, err := New().
		WithConfig(testConfig()).
		WithSessionStore(struct{ SessionStore }{session.NewMemoryStore(0, nil)}).
		WithUserProvider(newFakeUsers()).
		WithLogger(quietLogger()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	r := engine.SecurityReport()
	assert.False(t, r.LogoutAllSupported)
	assert.False(t, r.SessionListingSupported)
	assert.False(t, r.HealthProbeSupported)
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	assert.Equal(t, SecurityReport{}, e.SecurityReport())
}
