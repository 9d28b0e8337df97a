// Package metrics exposes Prometheus instrumentation for the identity service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

const namespace = "aipm"

// Label values used by the services.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultNotFound = "not_found"
	ResultExpired  = "expired"
	ResultInactive = "inactive"
	ResultError    = "error"

	KindUser  = "user"
	KindGuest = "guest"
)

// Metrics holds the service collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	logins         *prometheus.CounterVec
	sessionsOpened *prometheus.CounterVec
	validations    *prometheus.CounterVec
	storeLoads     *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Sessions opened by kind.",
		}, []string{"kind"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_validations_total",
			Help:      "Session validations by result.",
		}, []string{"result"}),
		storeLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_store_loads_total",
			Help:      "Record collection loads by outcome.",
		}, []string{"collection", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins,
		m.sessionsOpened,
		m.validations,
		m.storeLoads,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LoginAttempt counts a login by result.
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// SessionOpened counts a new session by kind.
func (m *Metrics) SessionOpened(kind string) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(kind).Inc()
}

// SessionValidated counts a validation by result.
func (m *Metrics) SessionValidated(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

// RecordStoreLoad counts a collection load. It matches recordstore.LoadObserver.
func (m *Metrics) RecordStoreLoad(collection string, outcome recordstore.LoadOutcome) {
	if m == nil {
		return
	}
	m.storeLoads.WithLabelValues(collection, string(outcome)).Inc()
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// LoadObserver returns the recordstore hook, or nil when m is nil.
func (m *Metrics) LoadObserver() recordstore.LoadObserver {
	if m == nil {
		return nil
	}
	return m.RecordStoreLoad
}
