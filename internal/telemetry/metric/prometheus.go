// Package metric provides Prometheus metrics for kvmesh.
//
// It exposes session counts, command rates and latencies, authentication
// results and the state of the conditional read queue.
package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kvmesh"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	AdmissionWait  prometheus.Histogram

	// Auth metrics
	AuthAttempts *prometheus.CounterVec

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Conditional read metrics
	GetWhenPendingGauge prometheus.Gauge
	GetWhenResolvedVec  *prometheus.CounterVec
}

// NewRegistry creates a registry with every kvmesh metric plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of admitted client sessions.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of admitted client sessions.",
		}),
		AdmissionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_wait_seconds",
			Help:      "Time an accepted connection waited for a session slot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by result.",
		}, []string{"result"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed by name.",
		}, []string{"command"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command processing latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		GetWhenPendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "getwhen_pending",
			Help:      "Conditional reads waiting for their condition.",
		}),
		GetWhenResolvedVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "getwhen_resolved_total",
			Help:      "Conditional reads resolved by outcome and delivery.",
		}, []string{"outcome", "delivered"}),
	}

	reg.MustRegister(
		r.SessionsActive,
		r.SessionsTotal,
		r.AdmissionWait,
		r.AuthAttempts,
		r.CommandsTotal,
		r.CommandDuration,
		r.GetWhenPendingGauge,
		r.GetWhenResolvedVec,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns a process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Register adds extra collectors to the registry.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry for tests and embedding.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// SessionOpened records an admitted session and how long it waited.
func (r *Registry) SessionOpened(wait time.Duration) {
	r.SessionsActive.Inc()
	r.SessionsTotal.Inc()
	r.AdmissionWait.Observe(wait.Seconds())
}

// SessionClosed records the end of an admitted session.
func (r *Registry) SessionClosed() {
	r.SessionsActive.Dec()
}

// AuthAttempt records one authentication result (login_ok, login_failed,
// register_ok, register_failed).
func (r *Registry) AuthAttempt(result string) {
	r.AuthAttempts.WithLabelValues(result).Inc()
}

// CommandProcessed records one command and its latency.
func (r *Registry) CommandProcessed(command string, d time.Duration) {
	r.CommandsTotal.WithLabelValues(command).Inc()
	r.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// GetWhenPending sets the number of pending conditional reads.
func (r *Registry) GetWhenPending(n int) {
	r.GetWhenPendingGauge.Set(float64(n))
}

// GetWhenResolved records a terminal conditional read outcome.
func (r *Registry) GetWhenResolved(outcome string, delivered bool) {
	d := "false"
	if delivered {
		d = "true"
	}
	r.GetWhenResolvedVec.WithLabelValues(outcome, d).Inc()
}
