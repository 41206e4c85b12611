// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/application/container"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/campaigns-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/campaigns-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Channeled logger
	logger, err := logging.NewChanneledLogger(loggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Starting campaigns service")

	// Step 2: Database connection and schema
	phaseStart := time.Now()
	db, err := database.Open(database.OptionsFromConfig(), logger)
	if err != nil {
		logger.LogStartupPhase("database", time.Since(phaseStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.NewTableCreator().CreateSchema(db.DB); err != nil {
		db.Close()
		logger.LogStartupPhase("schema", time.Since(phaseStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logger.LogStartupPhase("database", time.Since(phaseStart), true, map[string]any{"turso": db.UseTurso})

	// Step 3: Dependency injection container
	phaseStart = time.Now()
	appContainer, err := container.NewContainer(db, logger, container.OptionsFromConfig())
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	logger.LogStartupPhase("container", time.Since(phaseStart), true, map[string]any{
		"ignoreCache":  config.IgnoreCache,
		"cacheBackend": config.CacheBackend,
	})

	// Step 4: Background cleanup worker
	cleanupWorker := cleanup.NewWorker(cleanup.NewConfig(), logger, appContainer.Purgers()...)
	go cleanupWorker.Start(ctx)
	logger.Startup().Info("Background cleanup worker started", "interval", config.CacheCleanupEvery)

	// Step 5: HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			gracefulShutdown <- syscall.SIGTERM
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing database", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

func loggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	cfg.JSONFormat = config.LogJSONFormat
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	return cfg
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
