package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/config"
	"github.com/garyjia/tutoring-backoffice/internal/container"
	"github.com/garyjia/tutoring-backoffice/pkg/utils"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file, empty for defaults and environment only")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting tutoring back-office",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		_ = c.Close()
		os.Exit(1)
	}

	// Wait for interrupt signal or a fatal server error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-c.ServerErrors():
		logger.Error("HTTP server failed", zap.Error(err))
	}

	if err := c.Close(); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}
