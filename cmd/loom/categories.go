package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fernwick/ledgerloom/internal/cli"
	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage budget categories",
		Long:  `List, add, and deactivate the budget categories that split entries are classified into.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deactivateCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			if len(categories) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No categories found. Use 'loom categories add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("ID"),
				cli.BoldStyle.Render("Name"),
				cli.BoldStyle.Render("Active"),
				cli.BoldStyle.Render("Description"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 12),
				strings.Repeat("-", 20),
				strings.Repeat("-", 6),
				strings.Repeat("-", 50))

			for _, cat := range categories {
				desc := cat.Description
				if desc == "" {
					desc = cli.SubtleStyle.Render("(no description)")
				}
				active := "yes"
				if !cat.IsActive {
					active = cli.SubtleStyle.Render("no")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cat.ID, cat.Name, active, desc)
			}
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long: `Create a new budget category. The description feeds both the
classification prompt and the keyword fallback, so a few concrete nouns
("produce, pantry staples, snacks") go a long way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("category name must not be empty")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			existing, err := store.GetCategoryByName(ctx, name)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("failed to check existing category: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("category %q already exists", name)
			}

			category := model.Category{
				ID:          uuid.New().String(),
				Name:        name,
				Description: description,
				IsActive:    true,
			}
			if err := store.SaveCategories(ctx, []model.Category{category}); err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created category %q (ID: %s)", category.Name, category.ID)))
			if description != "" {
				fmt.Printf("  Description: %s\n", description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "category description used by the classifier")
	return cmd
}

func deactivateCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <name>",
		Short: "Deactivate a category",
		Long:  `Mark a category inactive. Existing ledger entries keep it; new classifications will no longer use it.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.GetCategoryByName(ctx, name)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("category %q not found", name)
				}
				return fmt.Errorf("failed to look up category: %w", err)
			}
			if category.Name == model.UncategorizedName {
				return fmt.Errorf("the %s category cannot be deactivated", model.UncategorizedName)
			}

			category.IsActive = false
			if err := store.SaveCategories(ctx, []model.Category{*category}); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deactivated category %q", name)))
			return nil
		},
	}
}
