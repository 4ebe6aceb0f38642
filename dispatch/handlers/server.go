// Package handlers wires the dispatch HTTP surface: webhook intake, the
// per-driver next-stop API, completion, hub arrival, and the pickup-to-
// delivery cutover operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/P-juuny/tsp-prob/dispatch/auth"
	"github.com/P-juuny/tsp-prob/dispatch/metrics"
	"github.com/P-juuny/tsp-prob/dispatch/planner"
	"github.com/P-juuny/tsp-prob/dispatch/store"
)

// DeliveryTrigger fires the delivery cutover after the last pickup. The
// returned values are HTTP statuses, surfaced in the all-completed response.
type DeliveryTrigger interface {
	Import(ctx context.Context) (int, error)
	Assign(ctx context.Context) (int, error)
}

type Server struct {
	log      *slog.Logger
	store    store.Store
	geocoder planner.Geocoder

	// One or both planners, depending on which sides this instance serves.
	pickup   *planner.Planner
	delivery *planner.Planner

	hubState  *planner.HubState
	jwtSecret []byte
	trigger   DeliveryTrigger
}

type Config struct {
	Logger    *slog.Logger
	Store     store.Store
	Geocoder  planner.Geocoder
	Pickup    *planner.Planner
	Delivery  *planner.Planner
	HubState  *planner.HubState
	JWTSecret []byte

	// Trigger is optional; without it all-completed reports but does not
	// fire the cutover.
	Trigger DeliveryTrigger
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Pickup == nil && cfg.Delivery == nil {
		return nil, errors.New("at least one side is required")
	}
	if cfg.HubState == nil {
		return nil, errors.New("hub state is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &Server{
		log:       cfg.Logger,
		store:     cfg.Store,
		geocoder:  cfg.Geocoder,
		pickup:    cfg.Pickup,
		delivery:  cfg.Delivery,
		hubState:  cfg.HubState,
		jwtSecret: cfg.JWTSecret,
		trigger:   cfg.Trigger,
	}, nil
}

// SetTrigger installs the delivery cutover trigger. Separate from New so an
// in-process trigger can point back at the server it belongs to.
func (s *Server) SetTrigger(t DeliveryTrigger) {
	s.trigger = t
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	if s.pickup != nil {
		r.Route("/pickup", func(r chi.Router) {
			r.Post("/webhook", s.handleWebhook)
			r.Get("/all-completed", s.handleAllCompleted)
			r.Get("/status", s.handleStatus(s.pickup))
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.jwtSecret))
				r.Get("/next", s.handleNext(s.pickup))
				r.Post("/complete", s.handleComplete(s.pickup))
				r.Post("/hub-arrived", s.handleHubArrived(s.pickup))
			})
		})
	}
	if s.delivery != nil {
		r.Route("/delivery", func(r chi.Router) {
			r.Post("/import", s.handleImport)
			r.Post("/assign", s.handleAssign)
			r.Get("/status", s.handleStatus(s.delivery))
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.jwtSecret))
				r.Get("/next", s.handleNext(s.delivery))
				r.Post("/complete", s.handleComplete(s.delivery))
				r.Post("/hub-arrived", s.handleHubArrived(s.delivery))
			})
		})
	}
	return r
}

func (s *Server) handleStatus(p *planner.Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		side := p.Side()
		out := map[string]any{
			"status":  "healthy",
			"side":    side.Name,
			"drivers": []int{side.DriverMin, side.DriverMax},
		}
		if side.Kind == planner.Pickup {
			if progress, err := s.store.PickupProgress(r.Context(), p.Today()); err == nil {
				out["remaining"] = progress.Remaining
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// driverFor authorizes the request's driver against the side's id range.
func (s *Server) driverFor(w http.ResponseWriter, r *http.Request, p *planner.Planner) (int, bool) {
	driverID, ok := auth.DriverID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "토큰이 없습니다"})
		return 0, false
	}
	if !p.Side().AllowsDriver(driverID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": auth.MsgForbidden})
		return 0, false
	}
	return driverID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
