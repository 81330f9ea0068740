package main

import (
	"fmt"

	"github.com/fjod/go_cart/settlement-service/internal/catalog"
	"github.com/fjod/go_cart/settlement-service/internal/config"
	"github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog and order store schema migrations",
		Long: `Apply pending schema migrations and exit.

The catalog (SQLite) is always migrated. The Postgres order store is migrated
when ORDER_STORE=postgres; the Mongo store only needs its indexes, which
serve creates on startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runMigrations(cfg, log)
		},
	}
}

func runMigrations(cfg *config.Config, log *zap.Logger) error {
	cat, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	if err := cat.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	log.Info("catalog migrations completed", zap.String("path", cfg.Catalog.DBPath))

	if cfg.OrderStore != config.OrderStorePostgres {
		return nil
	}

	creds := postgresCredentials(cfg)
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	log.Info("order store migrations completed", zap.String("db", cfg.Postgres.DBName))
	return nil
}

func postgresCredentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
}
