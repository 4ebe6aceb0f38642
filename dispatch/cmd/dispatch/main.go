package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/P-juuny/tsp-prob/dispatch/config"
	"github.com/P-juuny/tsp-prob/dispatch/geocode"
	"github.com/P-juuny/tsp-prob/dispatch/handlers"
	"github.com/P-juuny/tsp-prob/dispatch/metrics"
	"github.com/P-juuny/tsp-prob/dispatch/planner"
	"github.com/P-juuny/tsp-prob/dispatch/routing"
	"github.com/P-juuny/tsp-prob/dispatch/store"
	"github.com/P-juuny/tsp-prob/dispatch/tsp"
	"github.com/P-juuny/tsp-prob/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:5000"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", "0.0.0.0:0", "Address to listen on for prometheus metrics")
	sideFlag := flag.String("side", "both", "Which dispatch side to serve: pickup, delivery or both")
	migrateFlag := flag.Bool("migrations-enable", false, "Run schema migrations on startup")
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	servePickup := *sideFlag == "pickup" || *sideFlag == "both"
	serveDelivery := *sideFlag == "delivery" || *sideFlag == "both"
	if !servePickup && !serveDelivery {
		return fmt.Errorf("invalid --side %q", *sideFlag)
	}

	log.Info("dispatch starting",
		"version", version,
		"commit", commit,
		"side", *sideFlag,
		"hub", cfg.Hub.Name,
	)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Release: version}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		listener, err := net.Listen("tcp", *metricsAddrFlag)
		if err != nil {
			log.Warn("failed to start metrics listener", "error", err)
		} else {
			log.Info("prometheus metrics server listening", "addr", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			go func() {
				if err := (&http.Server{Handler: mux}).Serve(listener); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	pool, err := cfg.Connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if *migrateFlag {
		if err := cfg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	st := store.NewPostgres(pool)
	geocoder := geocode.New(cfg.RoutingURL)
	router := routing.New(cfg.RoutingURL)
	solver := tsp.New(cfg.TSPSolveURL)
	clock := clockwork.NewRealClock()
	hubState := planner.NewHubState()

	newPlanner := func(side planner.Side) (*planner.Planner, error) {
		return planner.New(planner.Config{
			Logger:   log,
			Clock:    clock,
			Store:    st,
			Geocoder: geocoder,
			Router:   router,
			Solver:   solver,
			Side:     side,
			HubState: hubState,
			Hub:      cfg.Hub,
			Location: cfg.Location,
		})
	}

	serverCfg := handlers.Config{
		Logger:    log,
		Store:     st,
		Geocoder:  geocoder,
		HubState:  hubState,
		JWTSecret: []byte(cfg.JWTSecret),
	}
	if servePickup {
		if serverCfg.Pickup, err = newPlanner(planner.PickupSide); err != nil {
			return err
		}
	}
	if serveDelivery {
		if serverCfg.Delivery, err = newPlanner(planner.DeliverySide); err != nil {
			return err
		}
	}

	server, err := handlers.New(serverCfg)
	if err != nil {
		return err
	}

	// The cutover runs in-process when this instance serves both sides,
	// over HTTP when delivery runs elsewhere.
	if servePickup {
		if serveDelivery {
			server.SetTrigger(&handlers.InProcessTrigger{Server: server})
		} else if cfg.DeliveryURL != "" {
			server.SetTrigger(handlers.NewHTTPTrigger(cfg.DeliveryURL))
		}
	}

	httpServer := &http.Server{
		Addr:         *listenAddrFlag,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("dispatch server listening", "addr", *listenAddrFlag)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown error", "error", err)
	}
	return nil
}
