package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernwick/ledgerloom/internal/cli"
	"github.com/fernwick/ledgerloom/internal/common"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve the manual review queue",
		Long: `Charges that could not be matched, allocated, or classified with
enough confidence land in the review queue instead of being dropped.`,
	}

	cmd.AddCommand(listReviewCmd())
	cmd.AddCommand(resolveReviewCmd())

	return cmd
}

func listReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unresolved review items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := store.GetUnresolvedReviewItems(ctx)
			if err != nil {
				return fmt.Errorf("failed to load review queue: %w", err)
			}

			fmt.Println(cli.RenderReviewQueue(items))
			if len(items) > 0 {
				for _, item := range items {
					fmt.Println(cli.SubtleStyle.Render("  id: " + item.ID))
				}
			}
			return nil
		},
	}
}

func resolveReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a review item as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ResolveReviewItem(ctx, id); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("review item %s not found", id)
				}
				return fmt.Errorf("failed to resolve review item: %w", err)
			}

			fmt.Println(cli.FormatSuccess("Resolved review item " + id))
			return nil
		},
	}
}
