package traffic

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/P-juuny/tsp-prob/trafficproxy/metrics"
)

// callSpacing is the pause between per-link feed calls within one cycle, to
// avoid upstream rate limiting.
const callSpacing = 50 * time.Millisecond

// Fetcher is the per-link feed call used by the view. Satisfied by
// *FeedClient.
type Fetcher interface {
	Fetch(ctx context.Context, serviceLinkID string) (Observation, error)
}

type ViewConfig struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Mapping         *Mapping
	Feed            Fetcher
	Holder          *Holder
	RefreshInterval time.Duration

	// CallSpacing overrides the default inter-call pause (tests).
	CallSpacing time.Duration
}

func (cfg *ViewConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Mapping == nil {
		return errors.New("mapping is required")
	}
	if cfg.Feed == nil {
		return errors.New("feed client is required")
	}
	if cfg.Holder == nil {
		return errors.New("table holder is required")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("refresh interval must be greater than 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.CallSpacing == 0 {
		cfg.CallSpacing = callSpacing
	}
	return nil
}

// View runs the periodic traffic collection cycle. A single long-lived worker
// collects every service link, then publishes the finished table in one swap.
// Collection errors leave the previous table in place; they never affect
// request serving.
type View struct {
	log *slog.Logger
	cfg ViewConfig

	mu        sync.Mutex
	lastCycle CycleStats
}

// CycleStats summarizes the most recent collection cycle.
type CycleStats struct {
	Succeeded  int
	Failed     int
	FinishedAt time.Time
	Duration   time.Duration
}

func NewView(cfg ViewConfig) (*View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &View{log: cfg.Logger, cfg: cfg}, nil
}

// Start launches the refresh worker: one immediate cycle, then one per
// interval until the context is cancelled.
func (v *View) Start(ctx context.Context) {
	go func() {
		v.log.Info("traffic: starting refresh loop",
			"interval", v.cfg.RefreshInterval,
			"links", v.cfg.Mapping.Len(),
		)

		v.safeRefresh(ctx)

		ticker := v.cfg.Clock.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				v.safeRefresh(ctx)
			}
		}
	}()
}

// safeRefresh wraps Refresh with panic recovery so one bad cycle cannot kill
// the worker.
func (v *View) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("traffic: refresh panicked", "panic", r)
		}
	}()
	v.Refresh(ctx)
}

// Refresh runs one full collection cycle and publishes the result. Exported
// for tests and the debug endpoint.
func (v *View) Refresh(ctx context.Context) {
	start := v.cfg.Clock.Now()
	links := v.cfg.Mapping.ServiceLinkIDs()

	speeds := make(map[string]float64, len(links))
	names := make(map[string]float64)
	var stats CycleStats

	for i, link := range links {
		if ctx.Err() != nil {
			v.log.Info("traffic: refresh cancelled mid-cycle", "collected", stats.Succeeded)
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, feedCallTimeout)
		obs, err := v.cfg.Feed.Fetch(callCtx, link)
		cancel()
		if err != nil {
			// Failures are counted, not retried within a cycle.
			stats.Failed++
		} else if wayID, ok := v.cfg.Mapping.WayID(obs.LinkID); ok {
			speeds[wayID] = obs.SpeedKmh
			if obs.RoadName != "" {
				names[obs.RoadName] = obs.SpeedKmh
			}
			stats.Succeeded++
		}

		if i < len(links)-1 {
			v.cfg.Clock.Sleep(v.cfg.CallSpacing)
		}
	}

	stats.FinishedAt = v.cfg.Clock.Now()
	stats.Duration = stats.FinishedAt.Sub(start)
	v.mu.Lock()
	v.lastCycle = stats
	v.mu.Unlock()

	v.cfg.Holder.Publish(NewTable(speeds, names, stats.FinishedAt))
	result := "ok"
	if stats.Succeeded == 0 && stats.Failed > 0 {
		result = "failed"
	}
	metrics.RefreshCyclesTotal.WithLabelValues(result).Inc()
	metrics.RefreshLinksCollected.Set(float64(stats.Succeeded))
	v.log.Info("traffic: refresh cycle complete",
		"collected", stats.Succeeded,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)
}

// LastCycle returns stats from the most recent cycle.
func (v *View) LastCycle() CycleStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastCycle
}
