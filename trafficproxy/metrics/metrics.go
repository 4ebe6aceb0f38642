// Package metrics holds the traffic proxy's prometheus instrumentation.
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
		Name: "trafficproxy_build_info",
		Help: "Build information",
	}, []string{"version", "commit", "date"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficproxy_http_requests_total",
		Help: "HTTP requests served, by route and status",
	}, []string{"route", "method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trafficproxy_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	RefreshCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficproxy_refresh_cycles_total",
		Help: "Traffic collection cycles, by result",
	}, []string{"result"})

	RefreshLinksCollected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trafficproxy_refresh_links_collected",
		Help: "Road segments collected in the most recent cycle",
	})

	RewriteManeuversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficproxy_rewrite_maneuvers_total",
		Help: "Maneuver time rewrites, by outcome",
	}, []string{"outcome"})

	GeocodeResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficproxy_geocode_results_total",
		Help: "Geocoding responses, by source tier",
	}, []string{"source"})

	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficproxy_upstream_errors_total",
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
