package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conduit-realworld/conduitauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot conduitauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() conduitauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: conduitauth.MetricsSnapshot{
			Counters:   map[conduitauth.MetricID]uint64{},
			Histograms: map[conduitauth.MetricID][]uint64{},
		},
	})
	assert.Empty(t, exp.Render())
	assert.Empty(t, (*Exporter)(nil).Render())
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: conduitauth.MetricsSnapshot{
			Counters: map[conduitauth.MetricID]uint64{
				conduitauth.MetricLoginSuccess:        7,
				conduitauth.MetricAuthSessionNotFound: 3,
			},
			Histograms: map[conduitauth.MetricID][]uint64{
				conduitauth.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	assert.Contains(t, out, "conduit_login_success_total 7\n")
	assert.Contains(t, out, "conduit_auth_session_not_found_total 3\n")
	assert.Contains(t, out, "conduit_register_success_total 0\n")
	assert.Contains(t, out, `conduit_authenticate_latency_seconds_bucket{le="0.005"} 1`)
	assert.Contains(t, out, `conduit_authenticate_latency_seconds_bucket{le="+Inf"} 36`)
	assert.Contains(t, out, "conduit_authenticate_latency_seconds_count 36\n")
	assert.Contains(t, out, "conduit_audit_dropped_total 2\n")
}

func TestRenderOmitsDisabledHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: conduitauth.MetricsSnapshot{
			Counters:   map[conduitauth.MetricID]uint64{conduitauth.MetricLogout: 1},
			Histograms: map[conduitauth.MetricID][]uint64{},
		},
	})
	out := exp.Render()
	assert.Contains(t, out, "conduit_logout_total 1\n")
	assert.NotContains(t, out, "latency")
}

func TestRenderFromEngine(t *testing.T) {
	m := conduitauth.NewMetrics(conduitauth.MetricsConfig{Enabled: true})
	m.Inc(conduitauth.MetricAuthAuthenticated)
	m.Inc(conduitauth.MetricAuthAuthenticated)

	exp := NewExporter(metricsOnly{m})
	assert.Contains(t, exp.Render(), "conduit_auth_authenticated_total 2\n")
}

type metricsOnly struct{ m *conduitauth.Metrics }

func (s metricsOnly) MetricsSnapshot() conduitauth.MetricsSnapshot { return s.m.Snapshot() }
func (s metricsOnly) AuditDropped() uint64                         { return 0 }

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: conduitauth.MetricsSnapshot{
			Counters:   map[conduitauth.MetricID]uint64{conduitauth.MetricLoginSuccess: 1},
			Histograms: map[conduitauth.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "conduit_login_success_total 1")
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: conduitauth.MetricsSnapshot{
			Counters: map[conduitauth.MetricID]uint64{
				conduitauth.MetricAuthAuthenticated: 100000,
				conduitauth.MetricLoginSuccess:      1000,
				conduitauth.MetricLoginFailure:      40,
				conduitauth.MetricSessionCreated:    1000,
				conduitauth.MetricLogout:            20,
			},
			Histograms: map[conduitauth.MetricID][]uint64{
				conduitauth.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
