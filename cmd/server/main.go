package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/config"
	"github.com/garyjia/booking-voucher/internal/container"
	httpServer "github.com/garyjia/booking-voucher/internal/interfaces/http"
	"github.com/garyjia/booking-voucher/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH or configs/config.yaml)")
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

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting booking voucher service",
		zap.String("version", httpServer.Version),
		zap.Int("port", cfg.Server.Port))

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	auth, err := httpServer.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	services := c.Services()
	server := httpServer.NewServer(
		cfg.ToServerConfig(),
		httpServer.Services{
			Issuer:     services.Issuer,
			Lookup:     services.Lookup,
			Redemption: services.Redemption,
			Documents:  services.Documents,
			Usage:      services.Usage,
			Sweeper:    c.ExpirationWorker(),
			Health:     c,
		},
		auth,
		c.Metrics(),
		container.NewLogAdapter(logger.Named("http")),
	)

	// Start blocks until a shutdown signal arrives
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Shutting down server...")
	return nil
}
