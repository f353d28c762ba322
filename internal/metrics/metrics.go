package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so that several instances (tests, embedded
// servers) never collide on the global default registerer. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	guardViolations  *prometheus.CounterVec
	rateLimitChecks  *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	relayedBytes     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapychat_proxy_requests_total",
				Help: "Chat proxy requests by outcome code",
			},
			[]string{"code"},
		),

		guardViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapychat_guard_violations_total",
				Help: "Messages rejected by the content guard, by rule",
			},
			[]string{"rule"},
		),

		rateLimitChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapychat_rate_limit_checks_total",
				Help: "Rate limit admissions by result",
			},
			[]string{"result"},
		),

		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mapychat_upstream_response_seconds",
				Help:    "Time until the provider returned response headers",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"status"},
		),

		relayedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mapychat_relayed_bytes_total",
				Help: "Bytes relayed from the provider stream to clients",
			},
		),
	}

	reg.MustRegister(
		m.requests,
		m.guardViolations,
		m.rateLimitChecks,
		m.upstreamDuration,
		m.relayedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordGuardViolation(rule string) {
	if m == nil {
		return
	}
	m.guardViolations.WithLabelValues(rule).Inc()
}

func (m *Metrics) RecordRateLimitCheck(allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "blocked"
	}
	m.rateLimitChecks.WithLabelValues(result).Inc()
}

// ObserveUpstream records header latency; status 0 means a transport failure.
func (m *Metrics) ObserveUpstream(seconds float64, status int) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(strconv.Itoa(status)).Observe(seconds)
}

func (m *Metrics) AddRelayedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.relayedBytes.Add(float64(n))
}
