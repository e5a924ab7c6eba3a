package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stonegoods/catmig/internal/cli/appctx"
	"github.com/stonegoods/catmig/internal/importlog"
	"github.com/stonegoods/catmig/internal/render"
)

var runsCmd = &cobra.Command{
	Use:   "runs [RUN_ID]",
	Short: "List recorded migration and repair runs",
	Long: `Runs lists the most recent migrate and repair-images runs, newest first.
Given a run id it prints how many categories and products that run
created and updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRuns),
}

var (
	runsLimit  int
	runsOutput string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", "table", "Output format: table, json, yaml or tsv")
}

func runRuns(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(runsOutput)
	if err != nil {
		return exitError(2, err)
	}
	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format})

	if len(args) == 1 {
		counts, err := importlog.CountEvents(cmd.Context(), app.DB, args[0])
		if err != nil {
			return exitError(1, err)
		}
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		rows := make([][]string, 0, len(types))
		for _, t := range types {
			rows = append(rows, []string{t, strconv.Itoa(counts[t])})
		}
		return r.Render(counts, []string{"EVENT", "COUNT"}, rows)
	}

	runs, err := importlog.ListRuns(cmd.Context(), app.DB, runsLimit)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to list runs: %w", err))
	}
	if runs == nil {
		runs = []importlog.Run{}
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = *run.FinishedAt
		}
		rows = append(rows, []string{run.ID, run.Kind, run.Status, run.StartedAt, finished})
	}
	return r.Render(runs, []string{"ID", "KIND", "STATUS", "STARTED", "FINISHED"}, rows)
}
