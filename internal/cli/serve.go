package cli

import (
	"context"
	"fmt"

	"github.com/pokedi/edfc/internal/api"
	"github.com/pokedi/edfc/internal/config"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the EDFC server",
	Long: `Start the HTTP server that receives Frontier login callbacks and
Discord interaction webhooks.

Example:
  edfc serve --config config.yaml

DATABASE_URL is required. REDIS_URL defaults to redis://localhost:6379.`,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.Port = serveFlags.Port
	}

	logger := newLogger(cfg.Log, cmd.OutOrStdout())
	defer logger.Sync()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	deps := api.Deps{
		Sessions: a.sessions,
		Store:    a.store,
		Cache:    a.cache,
		Metrics:  a.metrics,
		Logger:   logger,
	}
	if a.interactions != nil {
		deps.Interactions = a.interactions
	}
	server := api.NewServer(cfg.Server, deps)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	loader.SetOnChange(func(c *config.Config) {
		logger.SetLevel(logging.ParseLevel(c.Log.Level))
		logger.Info("configuration reloaded", "log_level", c.Log.Level)
	})
	loader.SetOnError(func(err error) {
		logger.Warn("configuration reload failed", "error", err)
	})
	if err := loader.Watch(ctx); err != nil {
		logger.Debug("configuration watch disabled", "path", loader.Path(), "error", err)
	}

	// the memory cache only shrinks when swept
	if cfg.Cleanup.Enabled || cfg.Cache.Driver == "memory" {
		if err := a.cleanup.Start(ctx); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Run() }()

	signals := api.SetupSignalHandler()
	select {
	case err := <-serverErr:
		cancel()
		_ = a.cleanup.Stop()
		_ = a.Close()
		return err
	case sig := <-signals:
		logger.Info("received signal", "signal", sig.String())
	}

	cancel()
	if err := api.ShutdownAll(cfg.Server.ShutdownTimeout, a.cleanup, server); err != nil {
		logger.Error("shutdown failed", "error", err)
		return err
	}
	return nil
}
