package main

import (
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the local database to the latest schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Opening the store runs pending migrations.
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"path":           cfg.Database.Path,
			"schema_version": version,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d.\n", cfg.Database.Path, version)
	return nil
}
