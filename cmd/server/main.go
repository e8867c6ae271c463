// Command server starts the image validation HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/image-checker/internal/adapter/exif"
	httpserver "github.com/fairyhunter13/image-checker/internal/adapter/httpserver"
	"github.com/fairyhunter13/image-checker/internal/adapter/observability"
	"github.com/fairyhunter13/image-checker/internal/adapter/vlm"
	"github.com/fairyhunter13/image-checker/internal/app"
	"github.com/fairyhunter13/image-checker/internal/config"
	"github.com/fairyhunter13/image-checker/internal/pipeline"
	"github.com/fairyhunter13/image-checker/internal/usecase"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	baseDir, err := cfg.BaseDir()
	if err != nil {
		slog.Error("image base dir invalid", slog.Any("error", err))
		os.Exit(1)
	}

	// Adapters and processor
	checker := vlm.New(cfg.LLMAPIURL, cfg.LLMModelName, cfg.RequestTimeout())
	reader := exif.NewReader()
	processor := usecase.NewValidationProcessor(checker, reader, baseDir)

	// Pipeline: worker and reaper start here
	queue := pipeline.New(processor, pipeline.Options{
		QueueSize:         cfg.QueueSize,
		ThrottlePermits:   cfg.ThrottleRequestsPerMinute,
		ProcessingTimeout: cfg.ProcessingTimeout(),
		ThrottleInterval:  cfg.ThrottleInterval(),
		CleanupInterval:   cfg.CleanupInterval,
	})

	srv := httpserver.NewServer(queue, version)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.String("addr", cfg.Addr()))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	// Stop intake first, then let the in-flight job and open connections
	// drain within the grace period.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		slog.Warn("pipeline shutdown incomplete", slog.Any("error", err))
	}
	_ = srvHTTP.Shutdown(shutdownCtx)
	slog.Info("server stopped")
}
