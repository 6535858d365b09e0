package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/sqlstore"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func runMigrations(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) error {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Info("memory driver selected, nothing to migrate")
		return nil
	}
	db, err := sqlstore.Open(cfg.Database.Driver, databaseDSN(cfg))
	if err != nil {
		return err
	}
	defer db.Close()
	return sqlstore.Migrate(ctx, db, logger)
}

func databaseDSN(cfg config.Config) string {
	if cfg.Database.Driver == config.DriverPostgres {
		return cfg.Database.URL
	}
	return cfg.Database.SQLitePath
}
