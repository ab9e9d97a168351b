package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/regula/regula/internal/config"
	"github.com/regula/regula/internal/domain/allocation"
	"github.com/regula/regula/internal/domain/beds"
	"github.com/regula/regula/internal/domain/queue"
	"github.com/regula/regula/internal/domain/reclass"
	"github.com/regula/regula/internal/domain/scoring"
	"github.com/regula/regula/internal/platform/auth"
	"github.com/regula/regula/internal/platform/db"
	"github.com/regula/regula/internal/platform/events"
	"github.com/regula/regula/internal/platform/middleware"
	"github.com/regula/regula/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "regula-server",
		Short: "Hospital admission regulation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admission regulation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Scoring policy
	mode, err := scoring.ParseAgePolicyMode(cfg.AgePolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid age policy")
	}
	agePolicy := scoring.AgePolicy{
		Mode:         mode,
		ChildLimit:   cfg.AgeChildLimit,
		ElderlyLimit: cfg.AgeElderlyLimit,
	}

	// Fallback policy
	chains, err := allocation.ParseChains(cfg.FallbackChains)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid fallback chains")
	}
	minRisk, err := scoring.ParseRiskLevel(cfg.FallbackMinRisk)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid fallback minimum risk")
	}
	fallbackPolicy := allocation.FallbackPolicy{Chains: chains, MinRisk: minRisk}

	// Assignment event publisher: Redis pub/sub when configured, plain
	// log stream otherwise.
	var publisher events.Publisher
	if cfg.RedisURL != "" {
		rp, err := events.NewRedisPublisher(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		publisher = rp
		logger.Info().Msg("publishing assignment events to redis")
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	// Telemetry
	metrics := telemetry.NewProvider()

	// Domain wiring
	bedTracker := beds.NewTracker(logger)
	bedService := beds.NewService(bedTracker, beds.NewRepoPG(pool), logger)

	queueManager := queue.NewManager(agePolicy)
	queueService := queue.NewService(queueManager, queue.NewRepoPG(pool), logger)

	reclassService := reclass.NewService(queueService, reclass.NewRepoPG(pool), logger)
	reclassService.SetMetrics(metrics)

	matcher := allocation.NewMatcher(queueService, bedService, allocation.NewRepoPG(pool),
		publisher, metrics, fallbackPolicy, logger)

	// Recovery: restore in-memory state from the store before serving.
	if err := bedService.LoadFromStore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load bed sectors")
	}
	if err := queueService.LoadFromStore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load admission queue")
	}
	if err := matcher.LoadFromStore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load active assignments")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Domain routes. Bed releases (clean-complete, status deltas) kick
	// off an immediate match sweep so freed beds do not sit idle until
	// the next tick.
	queue.NewHandler(queueService).RegisterRoutes(apiV1)
	bedsHandler := beds.NewHandler(bedService)
	bedsHandler.SetOnRelease(func() {
		if _, err := matcher.Match(ctx); err != nil {
			logger.Error().Err(err).Msg("match after bed release failed")
		}
	})
	bedsHandler.RegisterRoutes(apiV1)
	reclass.NewHandler(reclassService).RegisterRoutes(apiV1)
	allocation.NewHandler(matcher).RegisterRoutes(apiV1)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	// Periodic escalation sweep: refresh wait-based scores, resort the
	// queue, and try to place whoever can now be placed.
	tickCtx, stopTicker := context.WithCancel(ctx)
	defer stopTicker()
	if cfg.TickInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.TickInterval)
			defer ticker.Stop()
			for {
				select {
				case <-tickCtx.Done():
					return
				case now := <-ticker.C:
					if _, err := matcher.Tick(tickCtx, now); err != nil {
						logger.Error().Err(err).Msg("escalation sweep failed")
					}
				}
			}
		}()
		logger.Info().Dur("interval", cfg.TickInterval).Msg("escalation sweep scheduled")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopTicker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
