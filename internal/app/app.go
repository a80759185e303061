// Package app provides application lifecycle management for the
// repository custodian server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crpaas/repo-custodian/internal/config"
)

// CustodianApp encapsulates all components needed to run the custodian
// server. It provides lifecycle management and graceful shutdown
// capabilities.
type CustodianApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the application components (HTTP server and background
// controller). This method blocks until the HTTP server stops or
// encounters an error.
func (app *CustodianApp) Start() error {
	// Start the lifecycle controller in the background
	go func() {
		if err := app.components.Controller.Start(app.ctx); err != nil {
			slog.Error("Lifecycle controller failed", "error", err)
		}
	}()

	// Start HTTP server (blocks until stopped)
	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout. The
// controller is stopped first so no new work is dispatched while the
// server drains; the store is closed only after the last request has
// finished with it.
func (app *CustodianApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.Controller.Stop(); err != nil {
		slog.Error("Failed to stop lifecycle controller", "error", err)
	}

	// Cancel the application context
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	// Graceful HTTP server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if err := app.components.Store.Close(); err != nil {
		slog.Error("Failed to close repository store", "error", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CustodianApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *CustodianApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
