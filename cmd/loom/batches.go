package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fernwick/ledgerloom/internal/cli"
)

func batchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect pending classification batches",
		Long: `When async classification is enabled, cache misses are submitted as a
batch and the affected charges are deferred. Pending batches are
harvested automatically at the start of the next process run.`,
	}

	cmd.AddCommand(listBatchesCmd())
	return cmd
}

func listBatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List batches awaiting results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			batches, err := store.GetPendingBatches(ctx)
			if err != nil {
				return fmt.Errorf("failed to load pending batches: %w", err)
			}
			if len(batches) == 0 {
				fmt.Println(cli.FormatSuccess("No pending batches"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("ID"),
				cli.BoldStyle.Render("Submitted"),
				cli.BoldStyle.Render("Items"),
				cli.BoldStyle.Render("Provider ID"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 12),
				strings.Repeat("-", 16),
				strings.Repeat("-", 5),
				strings.Repeat("-", 20))

			for _, batch := range batches {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					batch.ID,
					batch.SubmittedAt.Format("2006-01-02 15:04"),
					len(batch.ItemKeys),
					batch.ProviderID)
			}
			return nil
		},
	}
}
