// Package solver wraps the LKH heuristic binary behind a typed API. It
// serializes the cost matrix to the binary's file formats, runs the binary
// with a deadline, and parses the resulting tour.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const DefaultBinaryPath = "/usr/local/bin/LKH"

// Params is the run schedule handed to the binary.
type Params struct {
	Runs      int
	MaxTrials int
	TimeLimit time.Duration
	Seed      int
}

// ScheduleFor picks a run schedule from the problem size. Larger problems get
// more runs and a longer limit; the grace margin on top of TimeLimit is the
// watchdog's, not the binary's.
func ScheduleFor(n int) Params {
	switch {
	case n <= 10:
		return Params{Runs: 3, MaxTrials: 1000, TimeLimit: 5 * time.Second, Seed: 1}
	case n <= 50:
		return Params{Runs: 8, MaxTrials: 2000, TimeLimit: 15 * time.Second, Seed: 1}
	default:
		return Params{Runs: 12, MaxTrials: 3000, TimeLimit: 20 * time.Second, Seed: 1}
	}
}

// ErrTimeout reports that the binary exceeded its deadline and was killed.
var ErrTimeout = errors.New("solver timed out")

type Config struct {
	Logger *slog.Logger

	// BinaryPath is the solver executable. Defaults to DefaultBinaryPath.
	BinaryPath string

	// WorkDir is where per-job scratch directories are created. Defaults to
	// the system temp dir.
	WorkDir string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinaryPath
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return nil
}

type Solver struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Solver{log: cfg.Logger, cfg: cfg}, nil
}

// Result is a solved tour. Tour is a permutation of [0, N) starting at 0;
// Cost is the cycle cost in the matrix's unit.
type Result struct {
	Tour []int
	Cost float64
}

// Solve runs the binary on the matrix. Degenerate sizes short-circuit without
// touching the binary. InitialTour, when non-nil, seeds the search.
func (s *Solver) Solve(ctx context.Context, m Matrix, p Params, initialTour []int) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}

	n := len(m)
	switch n {
	case 1:
		return Result{Tour: []int{0}, Cost: 0}, nil
	case 2:
		return Result{Tour: []int{0, 1}, Cost: m[0][1]}, nil
	}

	jobID := uuid.NewString()
	dir := filepath.Join(s.cfg.WorkDir, "lkh-"+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create job dir: %w", err)
	}
	defer os.RemoveAll(dir)

	problemPath := filepath.Join(dir, "problem.tsp")
	paramPath := filepath.Join(dir, "params.par")
	tourPath := filepath.Join(dir, "output.tour")

	if err := os.WriteFile(problemPath, []byte(problemFile("tsp_"+jobID, m)), 0o644); err != nil {
		return Result{}, fmt.Errorf("write problem file: %w", err)
	}
	initialPath := ""
	if len(initialTour) > 0 {
		if err := validateTour(initialTour, n); err != nil {
			return Result{}, fmt.Errorf("initial tour: %w", err)
		}
		initialPath = filepath.Join(dir, "initial.tour")
		if err := os.WriteFile(initialPath, []byte(initialTourFile("initial_"+jobID, initialTour)), 0o644); err != nil {
			return Result{}, fmt.Errorf("write initial tour file: %w", err)
		}
	}
	if err := os.WriteFile(paramPath, []byte(paramFile(problemPath, tourPath, initialPath, p)), 0o644); err != nil {
		return Result{}, fmt.Errorf("write parameter file: %w", err)
	}

	// Kill the binary if it blows past its own TIME_LIMIT by a wide margin.
	deadline := p.TimeLimit*time.Duration(p.Runs) + 10*time.Second
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, s.cfg.BinaryPath, paramPath)
	stdout, err := cmd.Output()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			s.log.Error("solver: binary killed on deadline", "n", n, "deadline", deadline)
			return Result{}, ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("solver exited with %d: %s", exitErr.ExitCode(), exitErr.Stderr)
		}
		return Result{}, fmt.Errorf("run solver: %w", err)
	}

	f, err := os.Open(tourPath)
	if err != nil {
		return Result{}, fmt.Errorf("open tour file: %w", err)
	}
	defer f.Close()

	tour, err := parseTour(f, n)
	if err != nil {
		return Result{}, fmt.Errorf("parse tour file: %w", err)
	}

	cost, ok := parseCost(string(stdout))
	if !ok {
		cost = m.TourCost(tour)
	}
	s.log.Info("solver: tour found",
		"n", n,
		"cost", cost,
		"runs", p.Runs,
		"elapsed", time.Since(start),
	)
	return Result{Tour: tour, Cost: cost}, nil
}
