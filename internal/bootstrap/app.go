// Package bootstrap handles application initialization and lifecycle
// management for the WolfAlert service.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/CLewisMessina/wolfalert/internal/logger"
)

const version = "dev"

// Start initializes and runs the service: config, logger, database, the
// optional Redis hot cache, background workers, and the HTTP server.
func Start() error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := SetupDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()
	log.Info("Database connection established")

	hotCache, redisPing := SetupInsightCache(cfg, log)

	deps := BuildDependencies(cfg, db, hotCache, log)

	// Background workers stop when the server begins shutting down.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	StartWorkers(workerCtx, deps, log)

	server := SetupHTTPServer(cfg, db, redisPing, deps, log)

	if runErr := server.RunWithGracefulShutdown(context.Background()); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	stopWorkers()
	log.Info("Service stopped")
	return nil
}
