package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the query router.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	routeDuration      *prometheus.HistogramVec
	requestsTotal      *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	externalErrors     *prometheus.CounterVec
	probesTotal        *prometheus.CounterVec
	breakerActivations prometheus.Counter
	breakerOpen        prometheus.Gauge
	satisfaction       prometheus.Histogram
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		routeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proativo_route_duration_seconds",
				Help:    "Duration of query execution by decision.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"decision"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proativo_route_requests_total",
				Help: "Total routed requests by decision and status.",
			},
			[]string{"decision", "status"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proativo_fallbacks_total",
				Help: "Total fallback responses by trigger.",
			},
			[]string{"trigger"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proativo_external_errors_total",
				Help: "Total errors from external collaborators.",
			},
			[]string{"service"},
		),
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proativo_health_probes_total",
				Help: "Total health probes by result.",
			},
			[]string{"result"},
		),
		breakerActivations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "proativo_breaker_activations_total",
				Help: "Times the routing circuit breaker opened.",
			},
		),
		breakerOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "proativo_breaker_open",
				Help: "1 when the routing circuit breaker is open.",
			},
		),
		satisfaction: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proativo_user_satisfaction",
				Help:    "User satisfaction scores (1-5).",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
	}
}

// RecordRoute records a routed request and its duration.
func (m *Metrics) RecordRoute(decision string, succeeded bool, d time.Duration) {
	status := "success"
	if !succeeded {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(decision, status).Inc()
	m.routeDuration.WithLabelValues(decision).Observe(d.Seconds())
}

// IncrFallback increments the fallback counter for a trigger.
func (m *Metrics) IncrFallback(trigger string) {
	m.fallbacksTotal.WithLabelValues(trigger).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// RecordProbe records a health probe result.
func (m *Metrics) RecordProbe(healthy bool) {
	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}
	m.probesTotal.WithLabelValues(result).Inc()
}

// BreakerOpened records a breaker activation and flips the state gauge.
func (m *Metrics) BreakerOpened() {
	m.breakerActivations.Inc()
	m.breakerOpen.Set(1)
}

// BreakerClosed clears the breaker state gauge.
func (m *Metrics) BreakerClosed() {
	m.breakerOpen.Set(0)
}

// RecordSatisfaction records a user satisfaction score.
func (m *Metrics) RecordSatisfaction(score float64) {
	m.satisfaction.Observe(score)
}

// FallbackCount returns the cumulative fallback count for a trigger,
// read back from the Prometheus counter.
func (m *Metrics) FallbackCount(trigger string) float64 {
	return getCounterValue(m.fallbacksTotal, trigger)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	metric := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}
