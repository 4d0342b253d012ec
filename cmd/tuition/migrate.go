package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/tuition/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the store schema",
	Long: `Migrate applies pending PostgreSQL migrations or creates the MongoDB
indexes of the configured store. It is a no-op for the memory store.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env)

	st, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("ping %s store: %w", cfg.Store.Driver, err)
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		return err
	}
	log.Info("store migrated", "driver", cfg.Store.Driver)
	return nil
}
