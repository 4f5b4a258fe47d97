package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/PratikDhanave/capi-relay/internal/config"
	"github.com/PratikDhanave/capi-relay/internal/httpserver"
	"github.com/PratikDhanave/capi-relay/internal/logging"
	"github.com/PratikDhanave/capi-relay/internal/meta"
)

// main boots the relay: .env → config → logging → Meta client → HTTP server.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A local .env is optional; deployed environments inject variables directly.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := logging.Setup(cfg)
	defer closeLog()

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("could not read .env", "error", envErr)
	}

	// The server still starts without credentials so probes work; the relay
	// endpoint answers with a configuration error until they are set.
	if err := cfg.Validate(); err != nil {
		logger.Error("conversions api credentials missing", "error", err)
	}
	if cfg.TestCode != "" {
		logger.Info("test event code set, events go to the test pipeline")
	}

	client := meta.NewClient(cfg.GraphURL, cfg.APIVersion, cfg.PixelID, cfg.AccessToken, cfg.Timeout)
	srv := httpserver.NewServer(cfg, httpserver.NewRouter(cfg, client, logger))

	go func() {
		logger.Info("server started", "addr", srv.Addr, "api_version", cfg.APIVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
