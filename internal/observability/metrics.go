package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	runnerRequestsTotal *prometheus.CounterVec
	runnerDuration      *prometheus.HistogramVec
	generatedTokens     prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenflow_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		runnerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenflow_runner_requests_total",
				Help: "Total model-runner API requests.",
			},
			[]string{"endpoint", "status"},
		),
		runnerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenflow_runner_request_duration_seconds",
				Help:    "Model-runner request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),
		generatedTokens: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tokenflow_generated_tokens_total",
				Help: "Total number of completion tokens produced by generate requests.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.runnerRequestsTotal,
		m.runnerDuration,
		m.generatedTokens,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRunner(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.runnerRequestsTotal.WithLabelValues(endpoint, statusLabel).Inc()
	m.runnerDuration.WithLabelValues(endpoint, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) AddGeneratedTokens(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.generatedTokens.Add(float64(n))
}
