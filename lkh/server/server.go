// Package server exposes the TSP solver over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/P-juuny/tsp-prob/lkh/metrics"
	"github.com/P-juuny/tsp-prob/lkh/solver"
)

const maxBodyBytes = 8 << 20

// TSPSolver is the solve call behind /solve. Satisfied by *solver.Solver.
type TSPSolver interface {
	Solve(ctx context.Context, m solver.Matrix, p solver.Params, initialTour []int) (solver.Result, error)
}

type Server struct {
	log    *slog.Logger
	solver TSPSolver
}

type Config struct {
	Logger *slog.Logger
	Solver TSPSolver
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Solver == nil {
		return nil, errors.New("solver is required")
	}
	return &Server{log: cfg.Logger, solver: cfg.Solver}, nil
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Get("/health", s.handleHealth)
	r.Post("/solve", s.handleSolve)
	return r
}

type solveRequest struct {
	// Matrix and Distances are aliases; either carries the square cost
	// matrix in seconds.
	Matrix    [][]float64 `json:"matrix"`
	Distances [][]float64 `json:"distances"`

	MaxTrials   int   `json:"max_trials"`
	TimeLimit   int   `json:"time_limit"`
	Seed        int   `json:"seed"`
	InitialTour []int `json:"initial_tour"`
}

type solveResponse struct {
	Tour       []int   `json:"tour"`
	TourLength float64 `json:"tour_length"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable request body"})
		return
	}

	var req solveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		metrics.SolvesTotal.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	matrix := solver.Matrix(req.Matrix)
	if matrix == nil {
		matrix = solver.Matrix(req.Distances)
	}
	if matrix == nil {
		metrics.SolvesTotal.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing 'matrix' or 'distances' field"})
		return
	}
	if err := matrix.Validate(); err != nil {
		metrics.SolvesTotal.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params := solver.ScheduleFor(len(matrix))
	if req.MaxTrials > 0 {
		params.MaxTrials = req.MaxTrials
	}
	if req.TimeLimit > 0 {
		params.TimeLimit = time.Duration(req.TimeLimit) * time.Second
	}
	if req.Seed > 0 {
		params.Seed = req.Seed
	}

	start := time.Now()
	result, err := s.solver.Solve(r.Context(), matrix, params, req.InitialTour)
	if err != nil {
		if errors.Is(err, solver.ErrTimeout) {
			metrics.SolvesTotal.WithLabelValues("timeout").Inc()
			s.log.Error("solve timed out", "n", len(matrix))
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "solver timed out"})
			return
		}
		metrics.SolvesTotal.WithLabelValues("error").Inc()
		s.log.Error("solve failed", "n", len(matrix), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	metrics.SolvesTotal.WithLabelValues("success").Inc()
	metrics.SolveDuration.Observe(time.Since(start).Seconds())
	s.log.Info("solve complete", "n", len(matrix), "cost", result.Cost, "elapsed", time.Since(start))
	writeJSON(w, http.StatusOK, solveResponse{Tour: result.Tour, TourLength: result.Cost})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
