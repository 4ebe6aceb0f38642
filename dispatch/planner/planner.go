// Package planner implements the online next-stop algorithm shared by the
// pickup and delivery sides: load pending stops, geocode them, build a
// travel-time matrix, solve the tour, and return the next waypoint with
// turn-by-turn directions.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/P-juuny/tsp-prob/dispatch/geocode"
	"github.com/P-juuny/tsp-prob/dispatch/metrics"
	"github.com/P-juuny/tsp-prob/dispatch/routing"
	"github.com/P-juuny/tsp-prob/dispatch/store"
)

// Response statuses of Next.
const (
	StatusWaiting          = "waiting"
	StatusWaitingForOrders = "waiting_for_orders"
	StatusAtHub            = "at_hub"
	StatusReturnToHub      = "return_to_hub"
	StatusSuccess          = "success"
)

const geocodeConcurrency = 5

// Geocoder resolves an address to coordinates. Satisfied by *geocode.Client.
type Geocoder interface {
	Locate(ctx context.Context, address string) (geocode.Result, error)
}

// Router computes routes and travel-time matrices. Satisfied by
// *routing.Client.
type Router interface {
	Route(ctx context.Context, from, to routing.Location) (*routing.Route, error)
	TimeMatrix(ctx context.Context, locations []routing.Location) ([][]float64, error)
}

// Solver returns a tour over a cost matrix. Satisfied by *tsp.Client.
type Solver interface {
	Solve(ctx context.Context, matrix [][]float64) ([]int, float64, error)
}

// Stop is a located destination in a Next response.
type Stop struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Name     string  `json:"name,omitempty"`
	Address  string  `json:"address,omitempty"`
	ParcelID int64   `json:"parcel_id,omitempty"`
}

// Result is the outcome of one Next computation. Status selects which of the
// remaining fields are meaningful.
type Result struct {
	Status          string
	WaitMinutes     int
	NextDestination *Stop
	Route           *routing.Route
	IsLast          bool
	Remaining       int
	CurrentLocation *Stop
}

type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Store    store.Store
	Geocoder Geocoder
	Router   Router
	Solver   Solver
	Side     Side
	HubState *HubState

	// Hub is the fixed start/return location.
	Hub Stop

	// Location is the operating time zone.
	Location *time.Location
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Router == nil {
		return errors.New("router is required")
	}
	if cfg.Solver == nil {
		return errors.New("solver is required")
	}
	if cfg.HubState == nil {
		return errors.New("hub state is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return nil
}

type Planner struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Planner{log: cfg.Logger, cfg: cfg}, nil
}

func (p *Planner) Side() Side { return p.cfg.Side }

// Now returns the current local time.
func (p *Planner) Now() time.Time {
	return p.cfg.Clock.Now().In(p.cfg.Location)
}

// Today returns local midnight of the operating day.
func (p *Planner) Today() time.Time {
	now := p.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.cfg.Location)
}

// PendingCount returns how many actionable stops the driver has today.
func (p *Planner) PendingCount(ctx context.Context, driverID int) (int, error) {
	pending, err := p.cfg.Side.pending(ctx, p.cfg.Store, driverID, p.Today())
	if err != nil {
		return 0, fmt.Errorf("load pending stops: %w", err)
	}
	return len(pending), nil
}

// Next computes the driver's next stop per the side's rules. The driver id
// has already been authorized against the side's range.
func (p *Planner) Next(ctx context.Context, driverID int) (*Result, error) {
	side := p.cfg.Side
	now := p.Now()
	today := p.Today()

	if now.Hour() < side.StartHour {
		start := time.Date(now.Year(), now.Month(), now.Day(), side.StartHour, 0, 0, 0, p.cfg.Location)
		res := &Result{Status: StatusWaiting, WaitMinutes: int(start.Sub(now).Minutes())}
		metrics.NextRequestsTotal.WithLabelValues(side.Name, res.Status).Inc()
		return res, nil
	}

	pending, err := side.pending(ctx, p.cfg.Store, driverID, today)
	if err != nil {
		return nil, fmt.Errorf("load pending stops: %w", err)
	}

	current, err := p.currentLocation(ctx, driverID, today)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		res, err := p.noPending(ctx, driverID, now, current)
		if err == nil {
			metrics.NextRequestsTotal.WithLabelValues(side.Name, res.Status).Inc()
		}
		return res, err
	}

	// New work arrived; the driver is no longer considered at the hub.
	p.cfg.HubState.Clear(driverID)

	stops, err := p.geocodeStops(ctx, pending)
	if err != nil {
		return nil, err
	}

	chosen := p.chooseNext(ctx, current, stops)
	if err := side.setNextTarget(ctx, p.cfg.Store, driverID, chosen.ParcelID); err != nil {
		p.log.Warn("planner: next-target hint not persisted", "side", side.Name, "error", err)
	}

	route := p.routeOrStraightLine(ctx, current, *chosen)
	res := &Result{
		Status:          StatusSuccess,
		NextDestination: chosen,
		Route:           route,
		IsLast:          len(stops) == 1,
		Remaining:       len(stops),
		CurrentLocation: &current,
	}
	metrics.NextRequestsTotal.WithLabelValues(side.Name, res.Status).Inc()
	return res, nil
}

// currentLocation is the hub when the driver is there or has completed
// nothing today, otherwise the geocoded address of the latest completion.
func (p *Planner) currentLocation(ctx context.Context, driverID int, today time.Time) (Stop, error) {
	if p.cfg.HubState.AtHub(driverID) {
		return p.cfg.Hub, nil
	}
	last, err := p.cfg.Side.lastCompleted(ctx, p.cfg.Store, driverID, today)
	if err != nil {
		return Stop{}, fmt.Errorf("load last completion: %w", err)
	}
	if last == nil {
		return p.cfg.Hub, nil
	}
	loc := p.locate(ctx, last.RecipientAddr)
	return Stop{Lat: loc.Lat, Lon: loc.Lon, Address: last.RecipientAddr, ParcelID: last.ID}, nil
}

func (p *Planner) noPending(ctx context.Context, driverID int, now time.Time, current Stop) (*Result, error) {
	side := p.cfg.Side
	if p.cfg.HubState.AtHub(driverID) {
		return &Result{Status: StatusAtHub, CurrentLocation: &current}, nil
	}
	if side.CutoffHour > 0 && now.Hour() < side.CutoffHour {
		return &Result{Status: StatusWaitingForOrders, CurrentLocation: &current}, nil
	}

	hub := p.cfg.Hub
	route := p.routeOrStraightLine(ctx, current, hub)
	return &Result{
		Status:          StatusReturnToHub,
		NextDestination: &hub,
		Route:           route,
		IsLast:          true,
		Remaining:       0,
		CurrentLocation: &current,
	}, nil
}

// geocodeStops resolves every pending address concurrently. Individual
// failures degrade to district centroids; the call as a whole never fails.
func (p *Planner) geocodeStops(ctx context.Context, pending []store.Parcel) ([]Stop, error) {
	stops := make([]Stop, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(geocodeConcurrency)
	for i, parcel := range pending {
		i, parcel := i, parcel
		g.Go(func() error {
			loc := p.locate(gctx, parcel.RecipientAddr)
			stops[i] = Stop{
				Lat:      loc.Lat,
				Lon:      loc.Lon,
				Name:     parcel.ProductName,
				Address:  parcel.RecipientAddr,
				ParcelID: parcel.ID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stops, nil
}

func (p *Planner) locate(ctx context.Context, address string) geocode.Result {
	if p.cfg.Geocoder != nil {
		if res, err := p.cfg.Geocoder.Locate(ctx, address); err == nil {
			return res
		} else {
			metrics.UpstreamErrorsTotal.WithLabelValues("geocoder").Inc()
			p.log.Debug("planner: geocoder unavailable, using centroid", "error", err)
		}
	}
	return geocode.Fallback(address)
}

// chooseNext picks the next stop: the single stop when there is one,
// otherwise the tour's successor of the current location, falling back to the
// first pending stop when the matrix or the solver fails.
func (p *Planner) chooseNext(ctx context.Context, current Stop, stops []Stop) *Stop {
	if len(stops) == 1 {
		return &stops[0]
	}

	locations := make([]routing.Location, 0, len(stops)+1)
	locations = append(locations, routing.Location{Lat: current.Lat, Lon: current.Lon})
	for _, s := range stops {
		locations = append(locations, routing.Location{Lat: s.Lat, Lon: s.Lon})
	}

	matrix, err := p.cfg.Router.TimeMatrix(ctx, locations)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("matrix").Inc()
		metrics.SolverFallbacksTotal.WithLabelValues(p.cfg.Side.Name).Inc()
		p.log.Warn("planner: matrix unavailable, using first pending stop", "error", err)
		return &stops[0]
	}

	tour, _, err := p.cfg.Solver.Solve(ctx, matrix)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("tsp").Inc()
		metrics.SolverFallbacksTotal.WithLabelValues(p.cfg.Side.Name).Inc()
		p.log.Warn("planner: solver unavailable, using first pending stop", "error", err)
		return &stops[0]
	}

	next, ok := tourSuccessor(tour, len(locations))
	if !ok {
		metrics.SolverFallbacksTotal.WithLabelValues(p.cfg.Side.Name).Inc()
		p.log.Warn("planner: unusable tour, using first pending stop", "tour", tour)
		return &stops[0]
	}
	// Node 0 is the current location, so stop indices are shifted by one.
	return &stops[next-1]
}

// tourSuccessor finds node 0 in the tour and returns the next node in tour
// order, skipping any repeats of 0.
func tourSuccessor(tour []int, n int) (int, bool) {
	start := -1
	for i, node := range tour {
		if node == 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	for step := 1; step < len(tour); step++ {
		node := tour[(start+step)%len(tour)]
		if node > 0 && node < n {
			return node, true
		}
	}
	return 0, false
}

func (p *Planner) routeOrStraightLine(ctx context.Context, from, to Stop) *routing.Route {
	fromLoc := routing.Location{Lat: from.Lat, Lon: from.Lon}
	toLoc := routing.Location{Lat: to.Lat, Lon: to.Lon}

	route, err := p.cfg.Router.Route(ctx, fromLoc, toLoc)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("route").Inc()
		p.log.Warn("planner: route unavailable, returning straight line", "error", err)
		return routing.StraightLine(fromLoc, toLoc)
	}
	return route
}
