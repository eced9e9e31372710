package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// and attempt-validation engine. All record methods are nil-safe so callers
// may run without metrics wired.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	attemptStarts     *prometheus.CounterVec
	attemptSubmits    *prometheus.CounterVec
	staleSubmissions  prometheus.Counter
	failOpenDecisions *prometheus.CounterVec
	abuseFlags        prometheus.Counter
	tzFallbacks       prometheus.Counter
	reaperSweeps      prometheus.Counter
	reaperReaped      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	attemptStarts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_attempt_starts_total",
		Help: "Start validations by outcome",
	}, []string{"result"})

	attemptSubmits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_attempt_submits_total",
		Help: "Submit validations by outcome",
	}, []string{"result"})

	staleSubmissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_stale_submissions_total",
		Help: "Submissions accepted after the audit threshold",
	})

	failOpenDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_validator_fail_open_total",
		Help: "Validator decisions granted because the store was unreachable",
	}, []string{"operation"})

	abuseFlags := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_abuse_flags_total",
		Help: "Students flagged by the distinct-quiz heuristic",
	})

	tzFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_timezone_fallbacks_total",
		Help: "Conversions that substituted the default timezone",
	})

	reaperSweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_reaper_sweeps_total",
		Help: "Reaper sweep executions",
	})

	reaperReaped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_reaper_reaped_attempts_total",
		Help: "Attempts transitioned to abandoned by the reaper",
	})

	registry.MustRegister(requestDuration, requestTotal, attemptStarts, attemptSubmits,
		staleSubmissions, failOpenDecisions, abuseFlags, tzFallbacks, reaperSweeps, reaperReaped)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		attemptStarts:     attemptStarts,
		attemptSubmits:    attemptSubmits,
		staleSubmissions:  staleSubmissions,
		failOpenDecisions: failOpenDecisions,
		abuseFlags:        abuseFlags,
		tzFallbacks:       tzFallbacks,
		reaperSweeps:      reaperSweeps,
		reaperReaped:      reaperReaped,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return m.handler
}

// ObserveHTTPRequest records latency and count for an HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordAttemptStart counts a start validation outcome.
func (m *MetricsService) RecordAttemptStart(result string) {
	if m == nil {
		return
	}
	m.attemptStarts.WithLabelValues(result).Inc()
}

// RecordAttemptSubmit counts a submit validation outcome.
func (m *MetricsService) RecordAttemptSubmit(result string) {
	if m == nil {
		return
	}
	m.attemptSubmits.WithLabelValues(result).Inc()
}

// RecordStaleSubmission counts an over-threshold submission accepted for audit.
func (m *MetricsService) RecordStaleSubmission() {
	if m == nil {
		return
	}
	m.staleSubmissions.Inc()
}

// RecordFailOpen counts a fail-open validator decision.
func (m *MetricsService) RecordFailOpen(operation string) {
	if m == nil {
		return
	}
	m.failOpenDecisions.WithLabelValues(operation).Inc()
}

// RecordAbuseFlag counts a flagged student.
func (m *MetricsService) RecordAbuseFlag() {
	if m == nil {
		return
	}
	m.abuseFlags.Inc()
}

// RecordTimezoneFallback counts a default-zone substitution.
func (m *MetricsService) RecordTimezoneFallback() {
	if m == nil {
		return
	}
	m.tzFallbacks.Inc()
}

// RecordReaperSweep counts one sweep and the attempts it transitioned.
func (m *MetricsService) RecordReaperSweep(reaped int64) {
	if m == nil {
		return
	}
	m.reaperSweeps.Inc()
	if reaped > 0 {
		m.reaperReaped.Add(float64(reaped))
	}
}
