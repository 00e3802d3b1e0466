/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty miles server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML file, MILHAS_* env, flags)
  2. Build the structured logger
  3. Initialize SQLite store
  4. Optionally load a demo scenario
  5. Create API handler and router
  6. Start the crediting scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config    YAML configuration file (optional)
  -port      HTTP server port (overrides config)
  -db        SQLite database path (overrides config)
             Use ":memory:" for in-memory database
  -scenario  Demo scenario to load on startup (resets the database)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the crediting scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (shutdown_timeout)
  4. Close database connection

EXAMPLES:
  ./server -config=./config.yaml
  ./server -db=":memory:" -scenario=busy-semester
  MILHAS_JWT_SECRET=s3cr3t ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/milhas/loyalty-engine/api"
	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/config"
	"github.com/milhas/loyalty-engine/logging"
	"github.com/milhas/loyalty-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	scenario := flag.String("scenario", "", "Demo scenario to load on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	handler := api.NewHandler(store, tokens, logger)

	if *scenario != "" {
		if err := handler.Seed(context.Background(), *scenario); err != nil {
			return err
		}
	}

	// Background crediting
	handler.Crediting.Enabled = cfg.Crediting.Enabled
	handler.Crediting.CheckInterval = cfg.Crediting.CheckInterval
	handler.Crediting.Start()
	defer handler.Crediting.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
