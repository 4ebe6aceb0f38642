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
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/P-juuny/tsp-prob/pkg/logger"
	"github.com/P-juuny/tsp-prob/trafficproxy/kakao"
	"github.com/P-juuny/tsp-prob/trafficproxy/metrics"
	"github.com/P-juuny/tsp-prob/trafficproxy/proxy"
	"github.com/P-juuny/tsp-prob/trafficproxy/traffic"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr      = "0.0.0.0:8003"
	defaultMetricsAddr     = "0.0.0.0:0"
	defaultEngineURL       = "http://valhalla:8002"
	defaultFeedURL         = "http://openapi.seoul.go.kr:8088"
	defaultMappingFile     = "/data/service_to_osm_mapping.csv"
	defaultRefreshInterval = 300 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	engineURLFlag := flag.String("engine-url", defaultEngineURL, "Routing engine base URL (or set VALHALLA_URL env var)")
	feedURLFlag := flag.String("feed-url", defaultFeedURL, "Municipal traffic feed base URL (or set TRAFFIC_FEED_URL env var)")
	mappingFileFlag := flag.String("mapping-file", defaultMappingFile, "Path to service_to_osm_mapping.csv (or set TRAFFIC_MAPPING_FILE env var)")
	refreshIntervalFlag := flag.Duration("refresh-interval", defaultRefreshInterval, "Traffic refresh interval (or set TRAFFIC_UPDATE_INTERVAL env var, seconds)")
	flag.Parse()

	// Load .env file. godotenv does not override existing env vars.
	_ = godotenv.Load()

	if v := os.Getenv("VALHALLA_URL"); v != "" {
		*engineURLFlag = v
	}
	if v := os.Getenv("TRAFFIC_FEED_URL"); v != "" {
		*feedURLFlag = v
	}
	if v := os.Getenv("TRAFFIC_MAPPING_FILE"); v != "" {
		*mappingFileFlag = v
	}
	if v := os.Getenv("TRAFFIC_UPDATE_INTERVAL"); v != "" {
		var seconds int
		if _, err := fmt.Sscanf(v, "%d", &seconds); err == nil && seconds > 0 {
			*refreshIntervalFlag = time.Duration(seconds) * time.Second
		}
	}
	feedAPIKey := os.Getenv("SEOUL_API_KEY")
	kakaoAPIKey := os.Getenv("KAKAO_API_KEY")

	log := logger.New(*verboseFlag)
	log.Info("trafficproxy starting",
		"version", version,
		"commit", commit,
		"engine_url", *engineURLFlag,
		"refresh_interval", *refreshIntervalFlag,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Prometheus metrics server
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

	mapping, _, err := traffic.LoadMapping(*mappingFileFlag, log)
	if err != nil {
		return fmt.Errorf("load service-to-osm mapping: %w", err)
	}

	holder := &traffic.Holder{}
	var view *traffic.View
	if feedAPIKey == "" {
		log.Warn("SEOUL_API_KEY not set; live traffic collection disabled")
	} else {
		view, err = traffic.NewView(traffic.ViewConfig{
			Logger:          log,
			Clock:           clockwork.NewRealClock(),
			Mapping:         mapping,
			Feed:            traffic.NewFeedClient(*feedURLFlag, feedAPIKey),
			Holder:          holder,
			RefreshInterval: *refreshIntervalFlag,
		})
		if err != nil {
			return fmt.Errorf("create traffic view: %w", err)
		}
		view.Start(ctx)
	}

	var geocoder *kakao.Client
	if kakaoAPIKey == "" {
		log.Warn("KAKAO_API_KEY not set; /search serves district centroids only")
	} else {
		geocoder = kakao.New(kakaoAPIKey)
	}

	serverCfg := proxy.Config{
		Logger:    log,
		EngineURL: *engineURLFlag,
		Holder:    holder,
		View:      view,
	}
	if geocoder != nil {
		serverCfg.Geocoder = geocoder
	}
	server, err := proxy.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("create proxy server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         *listenAddrFlag,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("proxy server listening", "addr", *listenAddrFlag)
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
