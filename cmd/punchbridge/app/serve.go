package app

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/attendkit/punchbridge/internal/api"
	"github.com/attendkit/punchbridge/internal/cloud"
	"github.com/attendkit/punchbridge/internal/config"
	"github.com/attendkit/punchbridge/internal/coordinator"
	"github.com/attendkit/punchbridge/internal/device"
	"github.com/attendkit/punchbridge/internal/scheduler"
	"github.com/attendkit/punchbridge/internal/service"
	"github.com/attendkit/punchbridge/internal/status"
	"github.com/attendkit/punchbridge/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance bridge server",
	Long: `Start the bridge server: the REST API for attendance data and device
control, plus the daily scheduler that delivers yesterday's records to the
HR cloud shortly after midnight.

The server requires a configuration file (--config) that specifies:
- Terminal address and device access policy
- HR cloud hostname, fallback IP, and delivery path
- Daily sync settings

See examples/ directory for a sample configuration.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 60 * time.Second // attendance reads wait on the terminal
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 65 * time.Second // must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

// buildBridge wires the attendance pipeline from the loaded configuration
func buildBridge(cfg *config.Config) (service.BridgeService, scheduler.Scheduler, error) {
	settings := service.NewDeviceSettings(device.Config{
		Host:           cfg.Device.Host,
		Port:           cfg.Device.Port,
		ConnectTimeout: cfg.Device.ConnectTimeoutDuration(),
	})

	coord := coordinator.New(settings.Get, coordinator.Policy{
		Cooldown:       cfg.Device.CooldownDuration(),
		StuckThreshold: cfg.Device.StuckThresholdDuration(),
	})

	dispatcher := cloud.New(cfg.Cloud)
	svc := service.New(settings, coord, dispatcher)

	if err := os.MkdirAll(cfg.StateDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	persistence := status.NewFileStatePersistence(cfg.StateDir)

	sched, err := scheduler.New(svc.SyncDate, persistence, cfg.Sync.FireAt, cfg.Sync.SyncEnabled())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return svc, sched, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	address := viper.GetString("address")

	slog.Info("Starting attendance bridge server", "address", address)

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"device", fmt.Sprintf("%s:%d", cfg.Device.Host, cfg.Device.Port),
		"cloud", cfg.Cloud.Hostname)

	svc, sched, err := buildBridge(cfg)
	if err != nil {
		return err
	}

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if err := sched.Start(schedCtx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	metrics := telemetry.NewMetrics()
	router := api.NewServer(svc, sched,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
		api.WithMetrics(metrics),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
