package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eosc-beyond/resource-catalogue-server/internal/config"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
)

// CatalogueApp encapsulates all components needed to run the catalogue API
// server. It provides lifecycle management and graceful shutdown.
type CatalogueApp struct {
	config     *config.Config
	bus        *events.Bus
	httpServer *http.Server
}

// Start starts the event bus and the HTTP server. It blocks until the HTTP
// server stops or encounters an error.
func (app *CatalogueApp) Start(ctx context.Context) error {
	app.bus.Start(ctx)

	slog.Info("server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application with the given timeout: first the
// HTTP server stops taking requests, then the event bus drains so no
// accepted mutation loses its hooks.
func (app *CatalogueApp) Stop(timeout time.Duration) error {
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	app.bus.Close()

	slog.Info("server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CatalogueApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the
// actual port)
func (app *CatalogueApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
