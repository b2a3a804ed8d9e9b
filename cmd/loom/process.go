package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fernwick/ledgerloom/internal/cli"
	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/config"
	"github.com/fernwick/ledgerloom/internal/ingest"
	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/orders"
)

func processCmd() *cobra.Command {
	var chargesPath string
	var ordersPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Reconcile charges against order history and sync split entries",
		Long: `Match each charge to its order shipment, allocate it across items,
classify the items, and upload idempotent split entries to the ledger.
With --dry-run the plan is printed and nothing is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			settings, err := config.Load()
			if err != nil {
				return err
			}
			if chargesPath == "" {
				chargesPath = settings.ChargesPath
			}
			if ordersPath == "" {
				ordersPath = settings.OrderHistoryPath
			}
			if chargesPath == "" || ordersPath == "" {
				return fmt.Errorf("both --charges and --orders are required (or set charges.path and orders.path in config)")
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

			charges, err := loadCharges(ctx, config.ExpandPath(chargesPath))
			if err != nil {
				return err
			}
			orderStore, err := loadOrders(ctx, config.ExpandPath(ordersPath))
			if err != nil {
				return err
			}

			result, err := eng.Process(ctx, charges, orderStore)
			if err != nil {
				return err
			}

			plan, err := eng.PlanSync(ctx, result.Entries)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Println(cli.FormatTitle("Sync plan (dry run)"))
				for _, entry := range plan.Create {
					fmt.Printf("  create   %s  %s (%d lines)\n",
						entry.ImportKey, ingest.FormatAmountMinor(entry.TotalMinor), len(entry.Lines))
				}
				for _, rec := range plan.Recreate {
					fmt.Printf("  recreate %s -> %s\n", rec.OldImportKey, rec.Entry.ImportKey)
				}
				for _, key := range plan.Skip {
					fmt.Println(cli.SubtleStyle.Render("  skip     " + key))
				}
				for _, key := range plan.Conflicts {
					fmt.Println(cli.FormatWarning("  conflict " + key))
				}
				return nil
			}

			stats, err := eng.ExecutePlan(ctx, plan, result.Entries)
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderSyncSummary(stats.Created, stats.Recreated, stats.Skipped, stats.Conflicts, stats.Deferred))
			if len(result.ReviewItems) > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d items need review (loom review list)", len(result.ReviewItems))))
			}
			if result.Deferred > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d items deferred to a pending classification batch", result.Deferred)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chargesPath, "charges", "", "charge export file (CSV, OFX, or QFX)")
	cmd.Flags().StringVar(&ordersPath, "orders", "", "order history export (CSV)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the sync plan without writing to the ledger")
	return cmd
}

// loadCharges picks the parser from the file extension.
func loadCharges(ctx context.Context, path string) ([]model.ChargeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open charges file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return ingest.NewOFXReader().ParseFile(ctx, f)
	default:
		return ingest.NewCSVReader().ParseFile(ctx, f)
	}
}

func loadOrders(ctx context.Context, path string) (*orders.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open order history %s", path), err)
	}
	defer func() { _ = f.Close() }()

	loaded, err := orders.NewLoader().ParseFile(ctx, f)
	if err != nil {
		return nil, err
	}
	return orders.NewStore(loaded), nil
}
