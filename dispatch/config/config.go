// Package config loads the dispatch service's environment configuration and
// owns the database pool and schema migrations.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/P-juuny/tsp-prob/dispatch/migrations"
	"github.com/P-juuny/tsp-prob/dispatch/planner"
)

const (
	defaultHubLat   = 37.5299
	defaultHubLon   = 126.9648
	defaultHubName  = "용산역"
	defaultTimeZone = "Asia/Seoul"
)

type Config struct {
	DatabaseURL string
	RoutingURL  string // traffic proxy base URL
	TSPSolveURL string
	JWTSecret   string
	SentryDSN   string

	Hub      planner.Stop
	Location *time.Location

	// DeliveryURL is the remote delivery dispatcher, used by the cutover
	// trigger when this instance serves the pickup side only.
	DeliveryURL string
}

// Load reads the environment. Call after godotenv has run.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RoutingURL:  envOr("VALHALLA_URL", "http://traffic-proxy:8003"),
		TSPSolveURL: envOr("LKH_SERVICE_URL", "http://lkh:5001/solve"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		DeliveryURL: os.Getenv("DELIVERY_SERVICE_URL"),
	}

	cfg.Hub = planner.Stop{
		Lat:  envFloat("HUB_LAT", defaultHubLat),
		Lon:  envFloat("HUB_LON", defaultHubLon),
		Name: envOr("HUB_NAME", defaultHubName),
	}

	tz := envOr("TZ_LOCAL", defaultTimeZone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// Connect opens the pgx pool and verifies connectivity.
func (c *Config) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate brings the parcel schema up to date using the embedded migrations.
func (c *Config) Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
