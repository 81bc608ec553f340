package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bridge-service/bridge_service/internal/api/routes"
	"github.com/bridge-service/bridge_service/internal/infrastructure/config"
	"github.com/bridge-service/bridge_service/internal/infrastructure/database"
	"github.com/bridge-service/bridge_service/internal/infrastructure/di"
	"github.com/bridge-service/bridge_service/pkg/logger"
	"github.com/bridge-service/bridge_service/pkg/metrics"
	"github.com/bridge-service/bridge_service/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection", "error", err)
		}
	}()

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	// Initialize router with DI container
	router := routes.SetupRoutes(container)

	// Start the event bus janitor
	container.Bus.Start()

	// Resume transfers that were burned but not minted before the last
	// shutdown, then keep the sweeper running on its schedule.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := container.TransferService.ResumePending(ctx, cfg.Sweeper.BatchLimit, cfg.Attestation.PollTimeout()); err != nil {
			log.Warn("Startup resume of pending transfers failed", "error", err)
		}
	}()

	if cfg.Sweeper.Enabled {
		if err := container.SweeperWorker.Start(); err != nil {
			log.Fatal("Failed to start sweeper worker", "error", err)
		}
		log.Info("Sweeper worker started", "schedule", cfg.Sweeper.Schedule)
	}

	// Create server
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Database connection pool metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if cfg.Sweeper.Enabled {
		container.SweeperWorker.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced shutdown", "error", err)
	}

	if err := container.Bus.Shutdown(ctx); err != nil {
		log.Warn("Event bus shutdown error", "error", err)
	}

	container.ClientCache.Close()

	log.Info("Shutdown complete")
}
