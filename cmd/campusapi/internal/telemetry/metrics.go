package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes recorded by RecordLogin
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid_credentials"
	LoginRateLimited = "rate_limited"
	LoginError       = "error"
)

// ServerMetrics holds the campusapi Prometheus collectors.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	logins          *prometheus.CounterVec
	userUpserts     prometheus.Counter
}

// NewServerMetrics registers the collectors on a dedicated registry, plus
// the Go runtime and process collectors.
func NewServerMetrics() *ServerMetrics {
	reg := prometheus.NewRegistry()
	m := &ServerMetrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusapi_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusapi_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusapi_http_in_flight_requests",
			Help: "Number of HTTP requests being served",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusapi_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"result"}),
		userUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusapi_user_upserts_total",
			Help: "Canonical user rows created or updated by clients",
		}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.inFlight,
		m.logins,
		m.userUpserts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the decrement.
func (m *ServerMetrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RecordLogin counts a login attempt by outcome.
func (m *ServerMetrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// RecordUserUpsert counts a client upsert of a canonical user row.
func (m *ServerMetrics) RecordUserUpsert() {
	if m == nil {
		return
	}
	m.userUpserts.Inc()
}

// Registry exposes the registry for tests.
func (m *ServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
