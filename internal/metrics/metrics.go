package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	StepTransitions *prometheus.CounterVec
	SearchRequests  *prometheus.CounterVec
	SearchFallbacks *prometheus.CounterVec
	AssistantCalls  *prometheus.CounterVec
	Documents       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		StepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logicforge",
			Name:      "step_transitions_total",
			Help:      "Step completion attempts by step and outcome.",
		}, []string{"step", "outcome"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logicforge",
			Name:      "model_search_requests_total",
			Help:      "Model searches by the strategy that produced the result.",
		}, []string{"strategy"}),
		SearchFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logicforge",
			Name:      "model_search_fallbacks_total",
			Help:      "Semantic searches that degraded to keyword matching, by reason.",
		}, []string{"reason"}),
		AssistantCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logicforge",
			Name:      "assistant_calls_total",
			Help:      "AI assistant calls by operation and result.",
		}, []string{"operation", "result"}),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logicforge",
			Name:      "documents_generated_total",
			Help:      "Generated program documents by format.",
		}, []string{"format"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StepTransitions,
		m.SearchRequests,
		m.SearchFallbacks,
		m.AssistantCalls,
		m.Documents,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) StepTransition(step, outcome string) {
	if m == nil {
		return
	}
	m.StepTransitions.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) Search(strategy string) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(strategy).Inc()
}

func (m *Metrics) SearchFallback(reason string) {
	if m == nil {
		return
	}
	m.SearchFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) AssistantCall(operation, result string) {
	if m == nil {
		return
	}
	m.AssistantCalls.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) DocumentGenerated(format string) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(format).Inc()
}
