package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendlens/internal/backend"
	"spendlens/internal/config"
	"spendlens/internal/extract"
	apphttp "spendlens/internal/http"
	"spendlens/internal/ingest"
	applog "spendlens/internal/log"
	"spendlens/internal/vision"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	applog.Setup()
	logger := applog.WithComponent("main")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to resolve data backend", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(applog.WithComponent("backend")).Create(backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	ocr, err := vision.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Vision client", "error", err)
		os.Exit(1)
	}

	extractor, err := extract.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("Failed to initialize extraction client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = extractor.Close() }()

	processor := ingest.NewService(ocr, extractor, result.Store, applog.WithComponent("ingest"))

	srv := apphttp.NewServer(":"+cfg.Port, result.Store, processor, cfg.MaxUploadBytes)

	srv.ReadTimeout = 15 * time.Second
	// Uploads wait on OCR and model calls, so writes get a generous timeout.
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting spendlens server",
		"port", cfg.Port,
		"backend", backendConfig.Type,
		"model", cfg.GeminiModel)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
