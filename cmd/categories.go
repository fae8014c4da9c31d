package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/internal/bootstrap"

	"github.com/spf13/cobra"
)

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "Manage categories in the local registry",
	}
	cmd.AddCommand(newCategoriesListCmd(), newCategoriesCreateCmd(), newCategoriesDeleteCmd())
	return cmd
}

func newCategoriesListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser()
			if err != nil {
				return err
			}
			deps, cleanup, err := bootstrap.NewLocalDependencies(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			categories, err := deps.Service.ListCategories(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), categories)
			}
			return printCategories(cmd, categories)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCategoriesCreateCmd() *cobra.Command {
	var description, color string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser()
			if err != nil {
				return err
			}
			deps, cleanup, err := bootstrap.NewLocalDependencies(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := deps.Service.CreateCategory(cmd.Context(), userID, in.CreateCategoryRequest{
				Name:        args[0],
				Description: description,
				Color:       color,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "What belongs in the category")
	cmd.Flags().StringVar(&color, "color", "", "Hex color")
	return cmd
}

func newCategoriesDeleteCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a custom category and redistribute its threads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser()
			if err != nil {
				return err
			}
			deps, cleanup, err := bootstrap.NewLocalDependencies(cfg, offline)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := deps.Service.DeleteCategory(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Redistribute with rule scoring only")
	return cmd
}

func printCategories(cmd *cobra.Command, categories []domain.Category) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCUSTOM\tDESCRIPTION")
	for _, c := range categories {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.ID, c.Name, c.IsCustom, c.Description)
	}
	return tw.Flush()
}
