package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stonegoods/catmig/internal/cli/appctx"
	"github.com/stonegoods/catmig/internal/render"
	"github.com/stonegoods/catmig/internal/store"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List catalog categories",
	Long:  `Lists every category in the catalog database ordered by id.`,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runCategories),
}

var (
	categoriesOutput    string
	categoriesPorcelain bool
)

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().StringVarP(&categoriesOutput, "output", "o", "table", "Output format: table, json, yaml or tsv")
	categoriesCmd.Flags().BoolVar(&categoriesPorcelain, "porcelain", false, "Stable machine-readable output")
}

func runCategories(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(categoriesOutput)
	if err != nil {
		return exitError(2, err)
	}

	categories, err := store.New(app.DB).Categories.ListCategories(cmd.Context())
	if err != nil {
		return exitError(1, fmt.Errorf("failed to list categories: %w", err))
	}

	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		desc := ""
		if c.Description != nil {
			desc = *c.Description
		}
		rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Slug, c.Name, desc})
	}

	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format, Porcelain: categoriesPorcelain})
	return r.Render(categories, []string{"ID", "SLUG", "NAME", "DESCRIPTION"}, rows)
}
