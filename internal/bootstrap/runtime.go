// Package bootstrap wires the runtime dependencies shared by the server and
// the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"banledger/internal/cache"
	"banledger/internal/config"
	"banledger/internal/database"
	"banledger/internal/middleware"
	"banledger/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis leaves the Redis client nil, e.g. for one-shot tools.
	SkipRedis bool
	// Tracing enables the OpenTelemetry exporter from config.
	Tracing bool
}

// Runtime holds the initialized shared dependencies.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database and Redis. A nil Redis client is
// tolerated; rate limiting then fails open.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	if opts.Tracing && cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "banledger-api",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Env,
			Enabled:        true,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SamplerRatio:   cfg.TracingSamplerRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		rt.shutdownTracing = shutdown
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt.DB = db

	if !opts.SkipRedis && cfg.RedisURL != "" {
		cache.InitRedis(cfg.RedisURL)
		rt.Redis = cache.GetClient()
		if rt.Redis == nil {
			middleware.Logger.Warn("redis unavailable, rate limiting disabled", slog.String("addr", cfg.RedisURL))
		}
	}

	return rt, nil
}

// Close releases the database, Redis and tracing resources.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}
	if rt.Redis != nil {
		if rerr := rt.Redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}
	if rt.shutdownTracing != nil {
		return rt.shutdownTracing(ctx)
	}
	return nil
}
