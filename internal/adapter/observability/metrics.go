package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Provider network attempts by purpose and outcome",
		},
		[]string{"provider", "purpose", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Provider attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "purpose"},
	)
	AIRetryWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_retry_waits_total",
			Help: "Backoff waits inserted between provider attempts",
		},
		[]string{"reason"},
	)

	KeyPoolExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keypool_exhausted_total",
			Help: "Logical requests rejected because no credential was eligible",
		},
	)
	KeyPoolAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keypool_available_credentials",
			Help: "Credentials not marked quota exceeded at last selection",
		},
	)

	ContentGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_generated_total",
			Help: "Posts created by the content pipeline by resulting status",
		},
		[]string{"status"},
	)
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbacks_total",
			Help: "Fallback results substituted by orchestration flows",
		},
		[]string{"flow"},
	)
	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Scheduled job runs by job and status",
		},
		[]string{"job", "status"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			AIRetryWaitsTotal,
			KeyPoolExhaustedTotal,
			KeyPoolAvailable,
			ContentGeneratedTotal,
			FallbacksTotal,
			SchedulerRunsTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := RoutePattern(r)
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// RoutePattern returns the chi route pattern, or the raw path outside chi.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// ObserveAttempt records one provider network attempt.
func ObserveAttempt(provider, purpose, outcome string, d time.Duration) {
	AIRequestsTotal.WithLabelValues(provider, purpose, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider, purpose).Observe(d.Seconds())
}

// ObserveRetryWait records a backoff wait and why it happened.
func ObserveRetryWait(reason string) { AIRetryWaitsTotal.WithLabelValues(reason).Inc() }

// ObservePoolExhausted counts a request that found no eligible credential.
func ObservePoolExhausted() { KeyPoolExhaustedTotal.Inc() }

// SetPoolAvailable publishes the eligible credential count.
func SetPoolAvailable(n int) { KeyPoolAvailable.Set(float64(n)) }

// ObserveGenerated counts a post created by the pipeline.
func ObserveGenerated(status string) { ContentGeneratedTotal.WithLabelValues(status).Inc() }

// ObserveFallback counts a fallback substitution in an orchestration flow.
func ObserveFallback(flow string) { FallbacksTotal.WithLabelValues(flow).Inc() }

// ObserveSchedulerRun counts a scheduled job run.
func ObserveSchedulerRun(job, status string) { SchedulerRunsTotal.WithLabelValues(job, status).Inc() }
