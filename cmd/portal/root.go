package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackportal/portal/internal/repository"
	"github.com/hackportal/portal/pkg/config"
	"github.com/hackportal/portal/pkg/database"
	"github.com/hackportal/portal/pkg/logger"
)

// rootOptions holds global flags for all commands
type rootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "portal",
		Short:         "Hackathon portal backend",
		Long:          "Serves event-scoped APIs and live lighthouse rooms for one or more hackathon events.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to an env config file (default .env)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))

	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.LoadWithPath(opts.ConfigPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)
	return log, nil
}

// openStores connects the configured storage driver. The returned
// database is nil for the memory driver.
func openStores(ctx context.Context, cfg *config.Config) (*repository.Stores, *database.PostgresDB, error) {
	if cfg.Storage.Driver != config.StorageDriverPostgres {
		return repository.NewMemoryStores(), nil, nil
	}

	dbCfg := database.DefaultPostgresConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.Database = cfg.Database.DBName
	dbCfg.SSLMode = cfg.Database.SSLMode
	if cfg.Database.MaxOpenConns > 0 {
		dbCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		dbCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}

	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return repository.NewPostgresStores(db.Pool()), db, nil
}
