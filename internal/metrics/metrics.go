package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tool invocation core
type Metrics struct {
	registry *prometheus.Registry

	// Action compilation metrics
	ActionSetsCompiledTotal *prometheus.CounterVec
	ActionSetsExcludedTotal *prometheus.CounterVec

	// Resolution metrics
	ToolResolutionsTotal      *prometheus.CounterVec
	ToolResolutionFailedTotal prometheus.Counter

	// Invocation metrics
	ToolInvocationsTotal    *prometheus.CounterVec
	ToolInvocationDuration  *prometheus.HistogramVec
	ToolInvocationErrsTotal *prometheus.CounterVec

	// Approval metrics
	ApprovalFlowsTotal   *prometheus.CounterVec
	ApprovalFlowsPending prometheus.Gauge
	ApprovalWaitDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ActionSetsCompiledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "action_sets_compiled_total",
				Help: "Total number of action sets compiled per run",
			},
			[]string{"domain"},
		),
		ActionSetsExcludedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "action_sets_excluded_total",
				Help: "Total number of action sets excluded during compilation",
			},
			[]string{"reason"},
		),

		ToolResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_resolutions_total",
				Help: "Total number of tool identifier resolutions",
			},
			[]string{"namespace"},
		),
		ToolResolutionFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tool_resolution_failed_total",
				Help: "Total number of tool identifiers that resolved to nothing",
			},
		),

		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocations_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool_name", "namespace", "status"},
		),
		ToolInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),
		ToolInvocationErrsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocation_errors_total",
				Help: "Total number of tool invocation errors",
			},
			[]string{"tool_name"},
		),

		ApprovalFlowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approval_flows_total",
				Help: "Total number of validation flows by terminal state",
			},
			[]string{"state"},
		),
		ApprovalFlowsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "approval_flows_pending",
				Help: "Number of validation flows currently awaiting a decision",
			},
		),
		ApprovalWaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "approval_wait_duration_seconds",
				Help:    "Time a gated tool call spent suspended awaiting a decision",
				Buckets: []float64{1, 5, 15, 60, 120, 300, 600},
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ActionSetsCompiledTotal)
	m.registry.MustRegister(m.ActionSetsExcludedTotal)

	m.registry.MustRegister(m.ToolResolutionsTotal)
	m.registry.MustRegister(m.ToolResolutionFailedTotal)

	m.registry.MustRegister(m.ToolInvocationsTotal)
	m.registry.MustRegister(m.ToolInvocationDuration)
	m.registry.MustRegister(m.ToolInvocationErrsTotal)

	m.registry.MustRegister(m.ApprovalFlowsTotal)
	m.registry.MustRegister(m.ApprovalFlowsPending)
	m.registry.MustRegister(m.ApprovalWaitDuration)
}

// ObserveToolInvocation records one completed invocation.
func (m *Metrics) ObserveToolInvocation(toolName, namespace string, failed bool, duration time.Duration) {
	status := "ok"
	if failed {
		status = "error"
		m.ToolInvocationErrsTotal.WithLabelValues(toolName).Inc()
	}
	m.ToolInvocationsTotal.WithLabelValues(toolName, namespace, status).Inc()
	m.ToolInvocationDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// ObserveApprovalOutcome records a validation flow reaching a terminal state.
func (m *Metrics) ObserveApprovalOutcome(state string, waited time.Duration) {
	m.ApprovalFlowsTotal.WithLabelValues(state).Inc()
	m.ApprovalWaitDuration.Observe(waited.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
