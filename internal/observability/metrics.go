// Package observability wires the ambient Prometheus/otel stack
// SPEC_FULL.md's §6 "Metrics endpoint" and DOMAIN STACK table call for:
// bus queue depth per receiver, tool-call latency, agent count by status,
// and a span per actor-dispatch/LLM-turn. Grounded on the teacher's
// internal/observability (metrics.go's promauto constructor shape,
// tracing.go's Tracer/TraceConfig), trimmed to the handful of series this
// module's own components actually produce rather than the teacher's full
// channel/session/webhook/database surface (none of which this module
// has).
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentgrid/agentgrid/internal/bus"
)

// Metrics is the process-wide Prometheus collector set. It implements
// bus.DropObserver, toolproto.LatencyObserver, and
// watchdog.AgentCountObserver directly so each of those packages can take
// a *Metrics without importing this package's dependencies back.
type Metrics struct {
	BusQueueDepth     *prometheus.GaugeVec
	BusDropsTotal     *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	AgentCountByState *prometheus.GaugeVec
}

// NewMetrics registers every series on reg. Pass prometheus.NewRegistry()
// in tests to avoid colliding with the process-wide default registerer;
// pass nil in production to register with prometheus.DefaultRegisterer
// the way the teacher's NewMetrics does via promauto's package-level
// default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BusQueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentgrid_bus_queue_depth",
				Help: "Buffered envelope count per bus receiver.",
			},
			[]string{"receiver"},
		),
		BusDropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgrid_bus_drops_total",
				Help: "Envelopes dropped for receiver queue overflow, by message type.",
			},
			[]string{"message_type"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgrid_tool_call_duration_seconds",
				Help:    "Tool Execute duration in seconds, by tool name.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		AgentCountByState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentgrid_agent_count",
				Help: "Tracked agents by last observed status.",
			},
			[]string{"status"},
		),
	}
}

// BusDrop implements bus.DropObserver.
func (m *Metrics) BusDrop(messageType string) {
	m.BusDropsTotal.WithLabelValues(messageType).Inc()
}

// ObserveToolCall implements toolproto.LatencyObserver.
func (m *Metrics) ObserveToolCall(toolName string, seconds float64) {
	m.ToolCallDuration.WithLabelValues(toolName).Observe(seconds)
}

// SetAgentCount implements watchdog.AgentCountObserver.
func (m *Metrics) SetAgentCount(status string, n int) {
	m.AgentCountByState.WithLabelValues(status).Set(float64(n))
}

// ObserveBusDepths snapshots b's current per-receiver queue depths into
// BusQueueDepth. Meant to be called on an interval (e.g. alongside the
// watchdog's review tick), not from the envelope-delivery hot path.
func (m *Metrics) ObserveBusDepths(b *bus.Bus) {
	for label, depth := range b.QueueDepths() {
		m.BusQueueDepth.WithLabelValues(label).Set(float64(depth))
	}
}

// Handler returns the /metrics HTTP handler for reg (pass the same
// registry given to NewMetrics, or nil to serve the default registerer).
func Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
