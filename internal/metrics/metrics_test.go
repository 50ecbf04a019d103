package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.StepTransition("2", "advanced")
	m.StepTransition("2", "advanced")
	m.Search("keyword")
	m.SearchFallback("provider_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepTransitions.WithLabelValues("2", "advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("keyword")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logicforge_step_transitions_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StepTransition("1", "noop")
		m.Search("semantic")
		m.DocumentGenerated("json")
	})
}
