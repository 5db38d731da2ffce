// Package telemetry exposes routing metrics as Prometheus collectors.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry bundles the bridge's metrics behind a private registry so tests
// can create isolated instances.
type Telemetry struct {
	registry *prometheus.Registry

	received      *prometheus.CounterVec
	routed        *prometheus.CounterVec
	forwardErrors *prometheus.CounterVec
	routeDuration prometheus.Histogram
}

// New creates a Telemetry with its own registry.
func New(agentID string) *Telemetry {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"agent_id": agentID}

	t := &Telemetry{
		registry: registry,
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bridge_messages_received_total",
			Help:        "Inbound messages by role.",
			ConstLabels: labels,
		}, []string{"role"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bridge_messages_routed_total",
			Help:        "Routed messages by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		forwardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bridge_forward_failures_total",
			Help:        "Per-target forward failures by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		routeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "bridge_route_duration_seconds",
			Help:        "Time spent routing one inbound message.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(t.received, t.routed, t.forwardErrors, t.routeDuration)
	return t
}

// MessageReceived counts one inbound message.
func (t *Telemetry) MessageReceived(role string) {
	t.received.WithLabelValues(role).Inc()
}

// RouteCompleted counts one finished routing pass.
func (t *Telemetry) RouteCompleted(outcome string, dur time.Duration) {
	t.routed.WithLabelValues(outcome).Inc()
	t.routeDuration.Observe(dur.Seconds())
}

// ForwardFailed counts one per-target delivery failure.
func (t *Telemetry) ForwardFailed(kind string) {
	t.forwardErrors.WithLabelValues(kind).Inc()
}

// Handler serves the metrics in Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
