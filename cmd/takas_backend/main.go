package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"golang.org/x/sync/errgroup"

	"github.com/SscSPs/takas_swap_engine/internal/adapters/database/pgsql"
	"github.com/SscSPs/takas_swap_engine/internal/adapters/queue"
	"github.com/SscSPs/takas_swap_engine/internal/core/services"
	"github.com/SscSPs/takas_swap_engine/internal/handlers"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
	"github.com/SscSPs/takas_swap_engine/internal/platform/config"
	"github.com/SscSPs/takas_swap_engine/pkg/database"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// @title TAKAS-A Swap Engine API
// @version 1.0
// @description Swap transactions and Valor escrow for the TAKAS-A marketplace.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Application terminated with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return fmt.Errorf("failed to initialize database pool: %w", err)
	}
	defer database.ClosePgxPool(dbPool)
	logger.Info("Database connection pool established.")

	if err := runMigrations(logger, cfg.DatabaseURL); err != nil {
		return err
	}
	if err := queue.Migrate(ctx, dbPool); err != nil {
		return err
	}

	collectors := metrics.New()

	// Services enqueue through an insert-only client; the worker client needs the services first.
	insertClient, err := queue.NewInsertOnlyClient(dbPool, logger)
	if err != nil {
		return err
	}
	notifier := queue.NewRiverNotifier(insertClient, collectors)

	repos := pgsql.NewRepositoryProvider(dbPool)
	svc, err := services.NewServiceContainer(cfg, repos, notifier, collectors)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	var dispatcher queue.Dispatcher = queue.LogDispatcher{Logger: logger}
	if cfg.NotificationWebhookURL != "" {
		dispatcher = queue.NewWebhookDispatcher(cfg.NotificationWebhookURL)
	}
	workers := queue.NewWorkers(
		queue.NewNotificationWorker(dispatcher, collectors),
		queue.NewSweepWorker(svc.Swap, cfg.SweepInterval/2),
	)
	riverClient, err := queue.NewClient(dbPool, workers, queue.ClientConfig{
		MaxWorkers:    cfg.RiverMaxWorkers,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	rate, err := limiter.NewRateFromFormatted(cfg.DeliveryRateLimit)
	if err != nil {
		return fmt.Errorf("invalid delivery rate limit %q: %w", cfg.DeliveryRateLimit, err)
	}
	deliveryLimiter := limiter.New(memory.NewStore(), rate)

	globalRate, err := limiter.NewRateFromFormatted(cfg.GlobalRateLimit)
	if err != nil {
		return fmt.Errorf("invalid global rate limit %q: %w", cfg.GlobalRateLimit, err)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(
		middleware.StructuredLoggingMiddleware(logger),
		gin.Recovery(),
		middleware.RequestMetrics(collectors),
		middleware.GinMiddlewarize(limiter.New(memory.NewStore(), globalRate)),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	if err := r.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	handlers.RegisterRoutes(r, cfg, svc, collectors, deliveryLimiter)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := riverClient.Start(gctx); err != nil {
			return fmt.Errorf("failed to start river client: %w", err)
		}
		logger.Info("Background workers started", slog.Duration("sweep_interval", cfg.SweepInterval))
		return nil
	})

	g.Go(func() error {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if err := riverClient.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("river shutdown error: %w", err)
		}
		logger.Info("Stopped gracefully")
		return nil
	})

	return g.Wait()
}

// runMigrations applies the schema migrations through a temporary database/sql connection.
func runMigrations(logger *slog.Logger, databaseURL string) error {
	logger.Info("Running database migrations...")
	// Using pgx/v5/stdlib driver to be compatible with the main pool
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection for migrations: %w", err)
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create postgres driver instance for migrations: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Check for dirty migrations after running Up.
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
