package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/tender-ingest/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("a database URL is required (set --db-url or DATABASE_URL)")
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return err
	}
	version, err := db.MigrationVersion(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
	return nil
}
