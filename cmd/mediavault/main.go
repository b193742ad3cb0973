package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediavault/mediavault/internal/logger"
	"github.com/mediavault/mediavault/internal/ratelimiter"
	"github.com/mediavault/mediavault/pkg/config"
	"github.com/mediavault/mediavault/pkg/media"
	"github.com/mediavault/mediavault/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "mediavault.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("MediaVault - Tiered Media Storage")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Local media cache: %s", cfg.Media.Path)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics collection enabled")
	}

	backends, err := config.BuildBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build storage backends: %v", err)
	}
	if len(backends) == 0 {
		logger.Warn("No storage backends configured; media lives only in the local cache")
	}

	storage, err := media.NewMediaStorage(cfg.Media.Path, backends, media.Options{
		CopyWorkers: cfg.Media.CopyWorkers,
		Metrics:     metrics.NewMediaMetrics(),
	})
	if err != nil {
		log.Fatalf("Failed to create media storage: %v", err)
	}

	uploadLimiter := ratelimiter.New(
		cfg.Server.UploadRateLimit.RequestsPerSecond,
		cfg.Server.UploadRateLimit.Burst,
	)

	srv := newServer(cfg.Server, storage, uploadLimiter)

	logger.Info("Server configuration:")
	logger.Info("  Bind address: %s", cfg.Server.BindAddress)
	logger.Info("  Port: %d", cfg.Server.Port)
	logger.Info("  Shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	if cfg.Server.MaxUploadBytes > 0 {
		logger.Info("  Max upload size: %d bytes", cfg.Server.MaxUploadBytes)
	} else {
		logger.Info("  Max upload size: unlimited")
	}
	if cfg.Server.UploadRateLimit.RequestsPerSecond > 0 {
		logger.Info("  Upload rate limit: %d req/s (burst %d)",
			cfg.Server.UploadRateLimit.RequestsPerSecond, cfg.Server.UploadRateLimit.Burst)
	} else {
		logger.Info("  Upload rate limit: disabled")
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on %s:%d. Press Ctrl+C to stop.",
		cfg.Server.BindAddress, cfg.Server.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}
