/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payout engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags) and validate it
  2. Set up logging
  3. Initialize the store (memory or SQLite)
  4. Create roster service, metrics and API handler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: 8080, env PORT)
  -store         memory or sqlite (default: sqlite, env STORE)
  -db            SQLite database path (default: payout.db, env DB_PATH)
                 Use ":memory:" for in-memory database
  -log-level     debug, info, warn, error (env LOG_LEVEL)
  -cors-origins  comma separated origins (env CORS_ORIGINS)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payout.db"

  # Run without persistence
  ./server -store=memory

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration sources
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payout-engine/api"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/logging"
	"github.com/warp/payout-engine/metrics"
	"github.com/warp/payout-engine/roster"
	"github.com/warp/payout-engine/roster/store"
	"github.com/warp/payout-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel)

	// Initialize store
	var rosterStore roster.Store
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer db.Close()
		rosterStore = db
		logger.Info("using sqlite store", "path", cfg.DBPath)
	default:
		rosterStore = store.NewMemory()
		logger.Info("using memory store")
	}

	svc := roster.NewService(rosterStore, logger)
	handler := api.NewHandler(svc, metrics.New(), logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
