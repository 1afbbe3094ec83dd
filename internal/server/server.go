// Package server contains the HTTP handlers for the ban API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"banledger/internal/bootstrap"
	"banledger/internal/config"
	"banledger/internal/featureflags"
	"banledger/internal/middleware"
	"banledger/internal/models"
	"banledger/internal/notifications"
	"banledger/internal/repository"
	"banledger/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	runtime        *bootstrap.Runtime
	promMiddleware *fiberprometheus.FiberPrometheus
	flags          *featureflags.Manager
	playerRepo     repository.PlayerRepository
	banService     *service.BanService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{Tracing: true})
	if err != nil {
		return nil, err
	}

	s, err := NewServerWithDeps(cfg, rt.DB, rt.Redis)
	if err != nil {
		return nil, err
	}
	s.runtime = rt
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...service.Option) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("server requires a database")
	}

	middleware.InitMiddleware(cfg)

	playerRepo := repository.NewPlayerRepository(db)
	banRepo := repository.NewBanRepository(db)

	svcOpts := []service.Option{
		service.WithPageSize(cfg.BanPageSize),
		service.WithDetailMaxLen(cfg.BanDetailMaxLen),
	}
	if redisClient != nil {
		svcOpts = append(svcOpts, service.WithEvents(notifications.NewNotifier(redisClient)))
	}
	svcOpts = append(svcOpts, opts...)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("banledger-api"),
		flags:          featureflags.NewManager(cfg.FeatureFlags),
		playerRepo:     playerRepo,
		banService:     service.NewBanService(banRepo, playerRepo, svcOpts...),
	}, nil
}

// App builds the Fiber app with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Ban Ledger API",
		BodyLimit: 64 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				code := models.CodeValidation
				if fe.Code == fiber.StatusNotFound {
					code = models.CodeNotFound
				}
				return models.RespondWithError(c, fe.Code, &models.AppError{Code: code, Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	perMinute := s.config.RateLimitBansPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	guilds := app.Group("/api/guilds/:guildId")

	// Read views are public unless the guild has public_listings turned off.
	listings := s.listingAccess()
	guilds.Get("/bans", listings, s.GetActiveBans)
	guilds.Get("/bans/all", listings, s.GetAllBans)
	guilds.Get("/users/:userId/bans", listings, s.GetUserBans)

	guilds.Get("/flags", s.GetGuildFlags)

	guilds.Put("/players/:userId", middleware.AuthRequired, s.RegisterPlayer)
	guilds.Post("/bans", middleware.AuthRequired,
		middleware.RateLimit(s.redis, perMinute, time.Minute, "create_ban"), s.CreateBan)
	guilds.Delete("/users/:userId/bans", middleware.AuthRequired,
		middleware.RateLimit(s.redis, perMinute, time.Minute, "unban"), s.UnbanUser)
}

// listingAccess requires a token on listing routes of guilds where
// public_listings is off.
func (s *Server) listingAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		guildID, err := parseSnowflake(c, "guildId")
		if err != nil {
			return nil
		}
		if s.flags.Enabled(featureflags.PublicListings, guildID) {
			return c.Next()
		}
		return middleware.AuthRequired(c)
	}
}

// GetGuildFlags handles GET /api/guilds/:guildId/flags
func (s *Server) GetGuildFlags(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}
	return c.JSON(fiber.Map{"flags": s.flags.Snapshot(guildID)})
}

// HealthCheck reports database and Redis reachability.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only backs rate limiting and ban events, so it never fails the check.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting",
		slog.String("port", s.config.Port),
		slog.Any("feature_flags", s.flags.Raw()),
	)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.runtime != nil {
		if err := s.runtime.Close(ctx); err != nil {
			middleware.Logger.Error("error flushing traces", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
