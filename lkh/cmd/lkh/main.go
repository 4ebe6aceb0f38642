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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/P-juuny/tsp-prob/lkh/metrics"
	"github.com/P-juuny/tsp-prob/lkh/server"
	"github.com/P-juuny/tsp-prob/lkh/solver"
	"github.com/P-juuny/tsp-prob/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:5001"

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
	binaryFlag := flag.String("lkh-binary", solver.DefaultBinaryPath, "Path to the LKH executable (or set LKH_BINARY env var)")
	flag.Parse()

	_ = godotenv.Load()

	if v := os.Getenv("LKH_BINARY"); v != "" {
		*binaryFlag = v
	}

	log := logger.New(*verboseFlag)
	log.Info("lkh service starting",
		"version", version,
		"commit", commit,
		"binary", *binaryFlag,
		"listen_addr", *listenAddrFlag,
	)

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

	s, err := solver.New(solver.Config{Logger: log, BinaryPath: *binaryFlag})
	if err != nil {
		return fmt.Errorf("create solver: %w", err)
	}
	srv, err := server.New(server.Config{Logger: log, Solver: s})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         *listenAddrFlag,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("lkh server listening", "addr", *listenAddrFlag)
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
