// Package main is the docflow server: the document API, the background
// batch workers and the migration tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phrazzld/docflow/internal/config"
	"github.com/phrazzld/docflow/internal/platform/logger"
	"github.com/phrazzld/docflow/internal/platform/postgres"
	"github.com/phrazzld/docflow/internal/redact"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "docflow-server",
		Short:         "Document storage and processing API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (default ./config.yaml if present)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	migrate := &cobra.Command{
		Use:       "migrate [up|down|status|version|reset|redo]",
		Short:     "Apply database migrations",
		Args:      cobra.MatchAll(cobra.RangeArgs(0, 1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version", "reset", "redo"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg, command)
		},
	}

	root.AddCommand(serve, migrate)
	root.Args = cobra.NoArgs
	root.RunE = serve.RunE
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runServer(parent context.Context, cfg *config.Config) error {
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", redact.Error(err))
		return err
	}
	return app.run(ctx)
}

func runMigrations(ctx context.Context, cfg *config.Config, command string) error {
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required for migrations")
	}

	log.Info("running migrations", "command", command, "database", redact.URL(cfg.Database.URL))

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return postgres.Migrate(ctx, db, command, log)
}
