// Package metrics holds the dispatch service's prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_build_info",
		Help: "Build information",
	}, []string{"version", "commit", "date"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_http_requests_total",
		Help: "HTTP requests served, by route and status",
	}, []string{"route", "method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_webhooks_total",
		Help: "Webhook intakes, by outcome",
	}, []string{"outcome"})

	NextRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_next_requests_total",
		Help: "Next-stop computations, by side and response status",
	}, []string{"side", "status"})

	SolverFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_solver_fallbacks_total",
		Help: "Times the matrix or solver failed and the first pending stop was used",
	}, []string{"side"})

	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_upstream_errors_total",
		Help: "Errors talking to upstreams, by upstream",
	}, []string{"upstream"})
)

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
