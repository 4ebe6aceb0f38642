// Package metrics holds the LKH service's prometheus instrumentation.
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
		Name: "lkh_build_info",
		Help: "Build information",
	}, []string{"version", "commit", "date"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lkh_http_requests_total",
		Help: "HTTP requests served, by route and status",
	}, []string{"route", "method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lkh_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	SolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lkh_solves_total",
		Help: "Solve requests, by outcome",
	}, []string{"outcome"})

	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lkh_solve_duration_seconds",
		Help:    "End-to-end solve latency for successful solves",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
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
