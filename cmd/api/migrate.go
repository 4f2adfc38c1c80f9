package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/go-events-app/internal/config"
	"github.com/redmonkez12/go-events-app/internal/database"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if err := database.MigrateUp(cfg.Database.MigrationURL()); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	steps, _ := cmd.Flags().GetInt("steps")
	if steps < 1 {
		return fmt.Errorf("--steps must be at least 1, got %d", steps)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if err := database.MigrateDown(cfg.Database.MigrationURL(), steps); err != nil {
		return err
	}
	logger.Info("migrations rolled back", "steps", steps)
	return nil
}

func runMigrateVersion(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	version, dirty, err := database.MigrationVersion(cfg.Database.MigrationURL())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
	return nil
}

// setup loads the configuration and builds the logger for it
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logging.NewLogger(cfg.Server.IsDevelopment()), nil
}
