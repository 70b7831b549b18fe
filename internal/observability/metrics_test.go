package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.AuditLogsRecorded.WithLabelValues("CREATE", "Rock").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.AuditLogsRecorded.WithLabelValues("CREATE", "Rock")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AuditLogsRecorded.WithLabelValues("CREATE", "Rock")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.AlertDispatches.WithLabelValues("webhook", "success").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `rocks_alert_dispatches_total{channel="webhook",result="success"} 1`)
}

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	logger := NewLogger("not-a-level", "debug")
	assert.Equal(t, "info", logger.GetLevel().String())
}
