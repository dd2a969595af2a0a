package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wisefido-iv/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.EvaluationRan("tick")
	m.EvaluationRan("tick")
	m.EvaluationRan("sweep")
	m.AlertDispatched(models.CategoryFlowRate, models.SeverityCritical)
	m.SinkFailed("history")
	m.ActiveSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("tick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("sweep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("flow_rate", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkFailures.WithLabelValues("history")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EvaluationRan("tick")
		m.SinkFailed("sound")
		m.ActiveSessions(1)
		m.AlertDispatched(models.CategoryAdultSafety, models.SeverityWarning)
	})
}

func TestMetrics_HandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.SinkFailed("blocking")

	wrapped := m.WrapHandler("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `wisefido_iv_sink_failures_total{channel="blocking"} 1`))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/metrics", "200")))
}
