package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	logins           *prometheus.CounterVec
	loginDuration    prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	migrations       *prometheus.CounterVec
	migrationsQueued prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		loginDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_login_duration_seconds",
			Help:    "Duration of login requests",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_cache_lookups_total",
			Help: "User and token cache lookups by result",
		}, []string{"cache", "result"}),
		migrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_credential_migrations_total",
			Help: "Credential rewrites to the canonical scheme",
		}, []string{"from", "result"}),
		migrationsQueued: f.NewGauge(prometheus.GaugeOpts{
			Name: "auth_credential_migrations_queued",
			Help: "Credential rewrites waiting for a worker",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Login(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
	m.loginDuration.Observe(took.Seconds())
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) Migration(from, result string) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(from, result).Inc()
}

func (m *Metrics) MigrationQueued(delta float64) {
	if m == nil {
		return
	}
	m.migrationsQueued.Add(delta)
}

func (m *Metrics) HTTPRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
