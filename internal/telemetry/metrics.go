// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// setup shared by the assistant and its transports.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "policychat"

// ServiceName is the service registry name of the Metrics.
const ServiceName = "telemetry.metrics"

// Metrics holds every custom metric. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Turns        *prometheus.CounterVec
	TurnLatency  *prometheus.HistogramVec
	CacheLookups *prometheus.CounterVec
	Fallbacks    *prometheus.CounterVec

	SessionsCreated    prometheus.Counter
	SessionsTerminated prometheus.Counter
	ActiveSessions     prometheus.Gauge

	WebSocketConnections prometheus.Gauge
	HealthStatus         *prometheus.GaugeVec

	MaintenanceRuns *prometheus.CounterVec
}

// NewMetrics registers all metrics on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns handled, by intent and outcome.",
		}, []string{"intent", "outcome"}),

		TurnLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn latency in seconds, by intent.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"intent"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Semantic cache lookups, by kind (exact, similar) and result (hit, miss).",
		}, []string{"kind", "result"}),

		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fixed fallback replies served, by failure kind.",
		}, []string{"kind"}),

		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created.",
		}),

		SessionsTerminated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_terminated_total",
			Help:      "Sessions explicitly terminated.",
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Live sessions in the store, sampled periodically.",
		}),

		WebSocketConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Open WebSocket connections.",
		}),

		HealthStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_up",
			Help:      "1 when the last health probe of a component succeeded.",
		}, []string{"component"}),

		MaintenanceRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_runs_total",
			Help:      "Background maintenance job runs, by job and result (ok, error).",
		}, []string{"job", "result"}),
	}
}

// Registry returns the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordTurn records one finished turn.
func (m *Metrics) RecordTurn(intent, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(intent, outcome).Inc()
	m.TurnLatency.WithLabelValues(intent).Observe(d.Seconds())
}

// RecordCacheLookup records one cache lookup.
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordFallback records a fallback reply.
func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(kind).Inc()
}

// RecordSessionCreated increments the created counter.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// RecordSessionTerminated increments the terminated counter.
func (m *Metrics) RecordSessionTerminated() {
	if m == nil {
		return
	}
	m.SessionsTerminated.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// WebSocketOpened increments the connection gauge.
func (m *Metrics) WebSocketOpened() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Inc()
}

// WebSocketClosed decrements the connection gauge.
func (m *Metrics) WebSocketClosed() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Dec()
}

// SetComponentUp records the result of a health probe.
func (m *Metrics) SetComponentUp(component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthStatus.WithLabelValues(component).Set(v)
}

// RecordMaintenanceRun records one run of a background job.
func (m *Metrics) RecordMaintenanceRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.MaintenanceRuns.WithLabelValues(job, result).Inc()
}
