package main

import (
	"context"
	"strings"
	"time"

	"github.com/Snaxxwax/movecrm/internal/auth"
	"github.com/Snaxxwax/movecrm/internal/handler"
	"github.com/Snaxxwax/movecrm/internal/middleware"
	"github.com/Snaxxwax/movecrm/internal/model"
	"github.com/Snaxxwax/movecrm/internal/ratelimit"
	"github.com/Snaxxwax/movecrm/internal/store"
	"github.com/Snaxxwax/movecrm/pkg/config"
	"github.com/Snaxxwax/movecrm/pkg/database"
	"github.com/Snaxxwax/movecrm/pkg/jwtutil"
	"github.com/Snaxxwax/movecrm/pkg/logger"
	"github.com/Snaxxwax/movecrm/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables. A
	// missing signing key is fatal here, not at request time.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "movecrm-backend",
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting MoveCRM backend...", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(
		&model.Tenant{},
		&model.User{},
		&model.AuditLog{},
		&model.RateLimitEntry{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility with the process-wide signing key
	jwtUtil, err := jwtutil.NewJWTUtil(&cfg.JWT)
	if err != nil {
		log.Fatal("Failed to initialize JWT utility", zap.Error(err))
	}

	// Rate limiter: Redis counters with a durable database fallback
	counterStore := ratelimit.NewRedisStore(&cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := counterStore.Ping(ctx); err != nil {
		log.Warn("Redis unreachable at startup, rate limiting will use the database fallback", zap.Error(err))
	}
	cancel()
	limiter := ratelimit.NewLimiter(counterStore, ratelimit.NewDBStore(db))

	// Periodic pruning of old fallback rows
	go func() {
		ticker := time.NewTicker(cfg.RateLimit.CleanupInterval)
		defer ticker.Stop()
		retention := time.Duration(cfg.RateLimit.RetentionDays) * 24 * time.Hour
		for range ticker.C {
			deleted, err := limiter.CleanupOldEntries(context.Background(), retention)
			if err != nil {
				log.Error("Rate limit cleanup failed", zap.Error(err))
				continue
			}
			log.Info("Pruned old rate limit entries", zap.Int64("deleted", deleted))
		}
	}()

	// Core services
	credentials := store.New(db)
	authenticator := auth.NewAuthenticator(credentials)
	authHandler := handler.NewAuthHandler(authenticator, jwtUtil)
	userHandler := handler.NewUserHandler(db)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.Metrics)

	// Authentication routes. Login is limited per-IP only; registration is
	// scoped to a tenant supplied through the X-Tenant-Slug header.
	authGroup := e.Group("/auth")
	authGroup.POST("/login",
		authHandler.Login,
		middleware.RateLimit(limiter, ratelimit.EndpointLogin, true, false))
	authGroup.POST("/register",
		authHandler.Register,
		middleware.RateLimit(limiter, ratelimit.EndpointRegister, true, true),
		middleware.TenantContext(authenticator))

	// API routes - all require authentication. Authentication runs before
	// the rate limiter so the tenant axis keys by resolved tenant ID.
	api := e.Group("/api")
	api.Use(middleware.RequireAuth(jwtUtil))
	api.Use(middleware.RateLimit(limiter, ratelimit.EndpointDefault, true, true))

	// User management - admin only
	users := api.Group("/users", middleware.RequireRole(model.RoleAdmin))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Deactivate)
	users.POST("/:id/reset-password", userHandler.ResetPassword)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
