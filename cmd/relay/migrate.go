package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentrelay/internal/config"
	"agentrelay/internal/logging"
	"agentrelay/internal/store"
)

var migrateConfigFile string

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the relay's database migrations",
		RunE:  runMigrate,
	}
	cmd.Flags().StringVarP(&migrateConfigFile, "config", "c", "", "path to config file (default: ./config.yaml)")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if migrateConfigFile != "" {
		loader.SetConfigFile(migrateConfigFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.Init(cfg)

	db, err := store.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	log.Info("migration completed", "db_driver", cfg.DBDriver, "db_path", cfg.DBPath)
	return nil
}
