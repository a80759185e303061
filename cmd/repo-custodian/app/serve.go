package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	serverapp "github.com/crpaas/repo-custodian/internal/app"
	"github.com/crpaas/repo-custodian/internal/config"
	"github.com/crpaas/repo-custodian/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repository custodian server",
	Long: `Start the repository custodian server.

The server requires a configuration file (--config) that specifies:
- Storage mode (postgres or memory) and connection settings
- Execution backend (kubernetes or direct) for clone and cleanup tasks
- Controller intervals, reindex endpoint and OpenGrok location

See the examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout   = 30 * time.Second // Kubernetes-friendly shutdown time
	telemetryShutdownTimeout = 5 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides the configured address)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	// Mark config as required
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Load and validate configuration
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"storage", cfg.Storage.Mode,
		"backend", cfg.Backend.GetType())

	// Initialize telemetry before the app so its providers feed the
	// HTTP middlewares and the lifecycle components
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []serverapp.CustodianAppOptions{
		serverapp.WithConfig(cfg),
	}
	if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
		opts = append(opts,
			serverapp.WithMeterProvider(tel.MeterProvider()),
			serverapp.WithTracerProvider(tel.TracerProvider()),
		)
	}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, serverapp.WithAddress(address))
	}

	custodian, err := serverapp.NewCustodianApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- custodian.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// The server failed before any signal arrived
		return err
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	if err := custodian.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errChan
}
