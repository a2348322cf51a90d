package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "issuance_engine"

// Metrics stores Prometheus collectors used by API and acquisition flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	attemptsTotal             *prometheus.CounterVec
	attemptDuration           *prometheus.HistogramVec
	attemptsInflight          prometheus.Gauge
	codesAcquiredTotal        prometheus.Counter
	credentialsExhaustedTotal prometheus.Counter
	batchDuration             prometheus.Histogram
	runsTotal                 *prometheus.CounterVec
	runDuration               prometheus.Histogram
	codesDispensedTotal       prometheus.Counter
	runNotificationsTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issuance_attempts_total",
				Help:      "Total number of issuance attempts grouped by outcome.",
			},
			[]string{"outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "issuance_attempt_duration_seconds",
				Help:      "Issuance exchange duration in seconds grouped by outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"outcome"},
		),
		attemptsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "issuance_attempts_inflight",
				Help:      "Current number of in-flight issuance exchanges.",
			},
		),
		codesAcquiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "codes_acquired_total",
				Help:      "Total number of codes obtained from the issuance endpoint.",
			},
		),
		credentialsExhaustedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credentials_exhausted_total",
				Help:      "Total number of credentials that used every attempt without a code.",
			},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of one credential batch in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acquisition_runs_total",
				Help:      "Total number of finished acquisition runs grouped by status.",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "acquisition_run_duration_seconds",
				Help:      "Acquisition run duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		codesDispensedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "codes_dispensed_total",
				Help:      "Total number of codes handed out and marked used.",
			},
		),
		runNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_notifications_total",
				Help:      "Run summary deliveries grouped by sink and result.",
			},
			[]string{"sink", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.attemptsTotal,
		m.attemptDuration,
		m.attemptsInflight,
		m.codesAcquiredTotal,
		m.credentialsExhaustedTotal,
		m.batchDuration,
		m.runsTotal,
		m.runDuration,
		m.codesDispensedTotal,
		m.runNotificationsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveAttempt(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.attemptsTotal.WithLabelValues(label).Inc()
	m.attemptDuration.WithLabelValues(label).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncAttemptsInFlight() {
	if m == nil {
		return
	}
	m.attemptsInflight.Inc()
}

func (m *Metrics) DecAttemptsInFlight() {
	if m == nil {
		return
	}
	m.attemptsInflight.Dec()
}

func (m *Metrics) IncCodesAcquired() {
	if m == nil {
		return
	}
	m.codesAcquiredTotal.Inc()
}

func (m *Metrics) IncCredentialExhausted() {
	if m == nil {
		return
	}
	m.credentialsExhaustedTotal.Inc()
}

func (m *Metrics) ObserveBatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(normalizeLabel(status)).Inc()
	m.runDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) AddCodesDispensed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.codesDispensedTotal.Add(float64(n))
}

func (m *Metrics) IncRunNotification(sink string, result string) {
	if m == nil {
		return
	}
	m.runNotificationsTotal.WithLabelValues(normalizeLabel(sink), normalizeLabel(result)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func nonNegativeSeconds(d time.Duration) float64 {
	seconds := d.Seconds()
	if seconds < 0 {
		return 0
	}
	return seconds
}
