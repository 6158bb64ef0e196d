package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"animesync/internal/app"
	"animesync/internal/config"
	"animesync/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("error", "text").Error(context.Background(), "failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format).With("service", cfg.App.Name)
	ctx := context.Background()
	log.Info(ctx, "starting", "version", cfg.App.Version, "env", cfg.App.Environment, "cache", cfg.Cache.Type)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialize", "error", err)
		os.Exit(1)
	}
	if len(cfg.Admin.APIKeys) == 0 {
		log.Warn(ctx, "API_KEYS is empty, admin endpoints will reject every request")
	}

	a.Start()

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info(ctx, "shutting down", "signal", sig.String())
	case err := <-serverErr:
		log.Error(ctx, "server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown error", "error", err)
	}

	// Stop the scheduler before closing the store it writes to
	if err := a.Close(); err != nil {
		log.Error(ctx, "failed to close cache store", "error", err)
	}

	log.Info(ctx, "server stopped")
}
