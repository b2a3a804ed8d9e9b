package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernwick/ledgerloom/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply any pending database migrations",
		Long: `Bring the local database up to the current schema version. Every other
command migrates automatically on startup; this is for running it explicitly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// initStorage already runs migrations.
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.FormatSuccess("Database schema is up to date"))
			return nil
		},
	}
}
