package cmd

import (
	"log"

	"storefront/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if err = repository.Migrate(cmd.Context(), db, cfg.DBDriver); err != nil {
		return err
	}
	log.Printf("schema is up to date")
	return nil
}
