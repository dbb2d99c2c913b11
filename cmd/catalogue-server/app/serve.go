package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eosc-beyond/resource-catalogue-server/internal/config"
	"github.com/eosc-beyond/resource-catalogue-server/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalogue API server",
	Long: `Start the catalogue API server to serve the moderated resource registry.

Without a configuration file (--config) the server starts with an in-memory
store and defaults suitable for local development. The auth secret must be
provided either in the configuration or via the RC_AUTH_SECRET environment
variable.`,
	RunE: runServe,
}

// Kubernetes-friendly shutdown time
const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	address := viper.GetString("address")
	configPath := viper.GetString("config")

	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(config.WithConfigPath(configPath))
		if err != nil {
			return err
		}
		cfg = loaded
		slog.Info("loaded configuration",
			"path", configPath,
			"catalogue", cfg.GetCatalogueID(),
			"store", cfg.GetStoreType())
	} else {
		cfg = config.Default()
		slog.Info("no configuration file given, using defaults",
			"catalogue", cfg.GetCatalogueID(),
			"store", cfg.GetStoreType())
	}

	catalogueApp, err := app.NewCatalogueAppBuilder(cfg).
		WithAddress(address).
		Build()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- catalogueApp.Start(ctx)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("received signal, shutting down", "signal", sig.String())
	}

	return catalogueApp.Stop(defaultGracefulTimeout)
}
