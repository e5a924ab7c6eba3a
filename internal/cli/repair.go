package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/cli/appctx"
	"github.com/stonegoods/catmig/internal/importlog"
	"github.com/stonegoods/catmig/internal/migrate"
	"github.com/stonegoods/catmig/internal/reconcile"
	"github.com/stonegoods/catmig/internal/store"
)

var repairCmd = &cobra.Command{
	Use:   "repair-images",
	Short: "Find images for products still showing the placeholder",
	Long: `Repair-images rescans every stored product whose image list is empty or
only the placeholder, scores the available image files against the
product's slug and name, and stores the best matches.

Use --dry-run to print the matches without updating any product.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRepair),
}

var (
	repairImages      string
	repairDryRun      bool
	repairJSON        bool
	repairMetricsFile string
)

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().StringVar(&repairImages, "images", "", "Product image directory (overrides CATMIG_IMAGE_DIR)")
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "Show matches without updating products")
	repairCmd.Flags().BoolVar(&repairJSON, "json", false, "Print the repair report as JSON")
	repairCmd.Flags().StringVar(&repairMetricsFile, "metrics-file", "", "Write run metrics in Prometheus textfile format (overrides CATMIG_METRICS_FILE)")
}

func runRepair(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := app.Config
	logger := app.Logger

	if repairImages != "" {
		cfg.ImageDir = repairImages
		cfg.ImageS3Bucket = ""
	}
	if repairMetricsFile != "" {
		cfg.MetricsFile = repairMetricsFile
	}

	locator, err := newLocator(ctx, cfg, logger)
	if err != nil {
		return exitError(1, err)
	}

	st := store.New(app.DB)
	journal := importlog.NewWriter(app.DB.Dialect())
	var runID string
	if !repairDryRun {
		runID, err = journal.StartRun(ctx, app.DB, importlog.KindRepair)
		if err != nil {
			return exitError(1, err)
		}
		st = st.ForRun(runID)
	}

	migrator := migrate.New(st.Categories, st.Products, locator, reconcile.DefaultRuleSet(), logger)
	rep, runErr := migrator.Repair(ctx, migrate.RepairOptions{DryRun: repairDryRun})

	if runID != "" {
		status := importlog.StatusCompleted
		if runErr != nil {
			status = importlog.StatusFailed
		}
		if err := journal.FinishRun(context.WithoutCancel(ctx), app.DB, runID, status, rep); err != nil {
			logger.Error("failed to record run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	out := cmd.OutOrStdout()
	if repairJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep)
	} else {
		err = rep.Format(out)
	}
	if err != nil {
		return exitError(1, err)
	}

	if err := writeMetrics(cfg.MetricsFile, importlog.KindRepair, rep.Duration, rep.Record); err != nil {
		logger.Error("metrics not written", zap.Error(err))
	}

	if runErr != nil {
		return exitError(1, fmt.Errorf("image repair failed: %w", runErr))
	}
	return nil
}
