package cli

import (
	"fmt"

	"github.com/auditsuite/tasktimer/internal/infrastructure/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Connect to the configured database and apply the schema.

Creates the tasks, work_intervals and transition_records tables and their
indexes, including the one-open-interval-per-user constraint.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations complete")
	return nil
}
