// Package metrics owns the prometheus collectors of the service. Each Metrics
// value has its own registry so tests never share state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/city-env-alerts/internal/store"
)

// Metrics implements providers.Recorder and chat.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	providerFetches *prometheus.CounterVec
	chatResponses   *prometheus.CounterVec
	rateLimitDenied *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors. cache may be nil.
func New(cache *store.MemoryStore) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envalerts_provider_fetches_total",
				Help: "Provider fetch outcomes by domain (hit, ok, upstream, timeout, parse)",
			},
			[]string{"domain", "outcome"},
		),
		chatResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envalerts_chat_responses_total",
				Help: "Chat outcomes by answering backend (primary, fallback, failed)",
			},
			[]string{"source", "outcome"},
		),
		rateLimitDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envalerts_rate_limit_denied_total",
				Help: "Requests rejected by the rate limiter, by route",
			},
			[]string{"route"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "envalerts_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route", "status"},
		),
	}

	m.registry.MustRegister(
		m.providerFetches,
		m.chatResponses,
		m.rateLimitDenied,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cache != nil {
		m.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "envalerts_cache_hits_total",
				Help: "Cache reads served from memory",
			}, func() float64 { return float64(cache.Stats().Hits) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "envalerts_cache_misses_total",
				Help: "Cache reads that missed or found an expired entry",
			}, func() float64 { return float64(cache.Stats().Misses) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "envalerts_cache_keys",
				Help: "Keys currently held in the cache",
			}, func() float64 { return float64(cache.Stats().Keys) }),
		)
	}

	return m
}

// ProviderOutcome counts one provider fetch.
func (m *Metrics) ProviderOutcome(domain, outcome string) {
	m.providerFetches.WithLabelValues(domain, outcome).Inc()
}

// ChatOutcome counts one chat answer or failure.
func (m *Metrics) ChatOutcome(source, outcome string) {
	m.chatResponses.WithLabelValues(source, outcome).Inc()
}

// RateLimited counts one rejected request.
func (m *Metrics) RateLimited(route string) {
	m.rateLimitDenied.WithLabelValues(route).Inc()
}

// ObserveRequest records one request's latency.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.requestDuration.WithLabelValues(route, status).Observe(seconds)
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
