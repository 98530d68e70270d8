package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docdrift/docdrift/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long: `Apply the schema to the configured Postgres database. SQLite databases
migrate automatically on open; this command is a no-op for them.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pg, ok := store.(*storage.PostgresStore)
	if !ok {
		fmt.Println("✅ Nothing to do: schema is applied on open for this storage type")
		return nil
	}
	if err := pg.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Println("✅ Schema migrated")
	return nil
}
