package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernwick/ledgerloom/internal/cli"
	"github.com/fernwick/ledgerloom/internal/config"
)

func learnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Fold ledger corrections back into the category cache",
		Long: `Compare every synced entry against its current state in the ledger.
Lines whose category a user changed are recorded as corrections, and the
cached confidence for those items decays so future runs trust them less.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			settings, err := config.Load()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := initEngine(store, settings)
			if err != nil {
				return err
			}

			corrections, err := eng.Learn(ctx)
			if err != nil {
				return err
			}
			if len(corrections) == 0 {
				fmt.Println(cli.FormatSuccess("No corrections found; cache unchanged"))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Applied %d corrections to the category cache", len(corrections))))
			for _, c := range corrections {
				fmt.Printf("  %s: %s -> %s\n", c.ItemKey,
					cli.SubtleStyle.Render(c.OriginalCategoryID), c.CorrectedCategoryID)
			}
			return nil
		},
	}
}
