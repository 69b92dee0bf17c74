package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rolegate/rolegate/internal/audit"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegate_http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rolegate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	enrichDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegate_decisions_total",
			Help: "Role decisions recorded, by audit action and outcome",
		},
		[]string{"action", "success"},
	)
)

// Metrics records request counts and latency per route. Paths are labeled
// with the chi route pattern, not the raw URL, to keep label cardinality
// bounded.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			path := chi.RouteContext(r.Context()).RoutePattern()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// decisionRecorder counts audit actions as Prometheus metrics while passing
// every entry through to the wrapped recorder.
type decisionRecorder struct {
	next audit.Recorder
}

// CountDecisions decorates rec with per-action decision counters.
func CountDecisions(rec audit.Recorder) audit.Recorder {
	return &decisionRecorder{next: rec}
}

func (d *decisionRecorder) Record(ctx context.Context, action, user, role, actor string, success bool, details string) {
	enrichDecisionsTotal.WithLabelValues(action, strconv.FormatBool(success)).Inc()
	d.next.Record(ctx, action, user, role, actor, success, details)
}

func (d *decisionRecorder) RecordUserRemoval(ctx context.Context, action, user, actor string, success bool, details string) {
	enrichDecisionsTotal.WithLabelValues(action, strconv.FormatBool(success)).Inc()
	d.next.RecordUserRemoval(ctx, action, user, actor, success, details)
}
