package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/newstagger/internal/api"
	"github.com/timmy/newstagger/internal/api/handler"
	"github.com/timmy/newstagger/internal/app"
	"github.com/timmy/newstagger/internal/config"
	"github.com/timmy/newstagger/internal/logger"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}

	ctx := appLogger.WithContext(context.Background())
	components, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer components.Close()

	deps := api.Dependencies{
		Exports:      components.Storage,
		ExportPrefix: cfg.Storage.Prefix,
		Runner:       components.Batch,
		Location:     time.Local,
		Checks:       map[string]handler.Pinger{},
	}
	// Assigned only when present so the handler interfaces stay nil otherwise.
	if components.DB != nil {
		deps.Jobs = components.Jobs
		deps.Rows = components.Results
		deps.Checks["database"] = components.Ping
	}

	router, admin := api.SetupRouter(deps, cfg.Server, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// A triggered batch stops dispatching and still writes its table.
	if admin != nil {
		appLogger.Info("Stopping running batch...")
		admin.Shutdown()
		admin.Wait()
	}

	appLogger.Info("Server exited")
}
