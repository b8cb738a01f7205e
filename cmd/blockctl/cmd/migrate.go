package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidlabs/blockctl/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the outcome store's schema",
}

// migrateUpCmd applies every pending migration. Store.Open already runs
// migrateUp as part of opening the database, so this subcommand exists
// for operators who want to apply schema changes without starting a run.
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()
		fmt.Println("outcome store is up to date")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recently applied migration",
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()
		if err := sqlite.MigrateDown(d.store.DB()); err != nil {
			return err
		}
		fmt.Println("rolled back one migration")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the applied/pending state of every migration",
	RunE: func(c *cobra.Command, args []string) error {
		d, err := buildDeps(c.Context())
		if err != nil {
			return err
		}
		defer d.close()

		rows, err := sqlite.Status(d.store.DB())
		if err != nil {
			return err
		}
		for _, row := range rows {
			state := "pending"
			if row.IsApplied {
				state = "applied"
			}
			fmt.Printf("%-6d %-8s %s\n", row.Version, state, row.Source)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}
