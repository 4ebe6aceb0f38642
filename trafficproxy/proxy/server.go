// Package proxy fronts the external routing engine: it serves geocoding,
// rewrites /route responses with live traffic, and transparently forwards
// everything else.
package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/P-juuny/tsp-prob/trafficproxy/kakao"
	"github.com/P-juuny/tsp-prob/trafficproxy/metrics"
	"github.com/P-juuny/tsp-prob/trafficproxy/traffic"
)

// addressSearcher is the live geocoder behind /search. Satisfied by
// *kakao.Client.
type addressSearcher interface {
	SearchAddress(ctx context.Context, query string) (kakao.Place, bool, error)
	SearchKeyword(ctx context.Context, query string) (kakao.Place, bool, error)
}

type Server struct {
	log       *slog.Logger
	engineURL *url.URL
	geocoder  addressSearcher
	holder    *traffic.Holder
	view      *traffic.View

	engineClient *http.Client
	reverse      *httputil.ReverseProxy
}

type Config struct {
	Logger    *slog.Logger
	EngineURL string
	Geocoder  addressSearcher // optional; nil degrades /search to centroids
	Holder    *traffic.Holder
	View      *traffic.View // optional; enriches /traffic-debug
}

func NewServer(cfg Config) (*Server, error) {
	engineURL, err := url.Parse(cfg.EngineURL)
	if err != nil {
		return nil, err
	}
	s := &Server{
		log:       cfg.Logger,
		engineURL: engineURL,
		geocoder:  cfg.Geocoder,
		holder:    cfg.Holder,
		view:      cfg.View,
		engineClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	s.reverse = httputil.NewSingleHostReverseProxy(engineURL)
	s.reverse.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.log.Error("proxy: engine unreachable", "path", r.URL.Path, "error", err)
		metrics.UpstreamErrorsTotal.WithLabelValues("engine").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "routing engine unreachable"})
	}
	return s, nil
}

// Router builds the proxy's HTTP surface. Unmapped paths fall through to the
// routing engine untouched.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Post("/route", s.handleRoute)
	r.Post("/matrix", s.handleMatrix)
	r.Post("/sources_to_targets", s.handleMatrix)
	r.Get("/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/traffic-debug", s.handleTrafficDebug)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.reverse.ServeHTTP(w, req)
	})
	return r
}
