package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contest-maker-150/assessment/internal/infrastructure"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the session journal tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := infrastructure.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if !config.Database.Enabled {
				return errors.New("database is disabled, set DB_ENABLED=true")
			}

			logger, err := infrastructure.NewLogger(config.Server.Environment)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer infrastructure.SyncLogger(logger)

			database, err := infrastructure.NewDatabase(&config.Database, logger)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.AutoMigrate(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}
