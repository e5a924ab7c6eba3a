package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/cli/appctx"
	"github.com/stonegoods/catmig/internal/importlog"
	"github.com/stonegoods/catmig/internal/migrate"
	"github.com/stonegoods/catmig/internal/store"
	"github.com/stonegoods/catmig/internal/store/memory"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the legacy categories and products dumps",
	Long: `Migrate loads the legacy categories dump, seeds the classification target
categories and then upserts every product of the products dump by slug.

Each product's category is resolved from its legacy category when that
category was migrated, otherwise from keyword rules over its name and
description, otherwise the first stored category is used. Images are
looked up in the configured image directory or S3 bucket.

Re-running over the same dumps updates existing products in place.
A failed product upsert is reported and the run continues unless
--fail-fast is given.

Use --dry-run to run the whole pipeline against an in-memory catalog.
Use --compare-report to diff this run's report against a saved one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := appctx.DefaultOptions()
		if migrateDryRun {
			opts.NeedsDB = false
		}
		return appctx.WithApp(opts, runMigrate)(cmd, args)
	},
}

var (
	migrateCategories    string
	migrateProducts      string
	migrateImages        string
	migrateWorkers       int
	migrateFailFast      bool
	migrateDryRun        bool
	migrateJSON          bool
	migrateMetricsFile   string
	migrateCompareReport string
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateCategories, "categories", "", "Legacy categories dump (overrides CATMIG_CATEGORIES_DUMP)")
	migrateCmd.Flags().StringVar(&migrateProducts, "products", "", "Legacy products dump (overrides CATMIG_PRODUCTS_DUMP)")
	migrateCmd.Flags().StringVar(&migrateImages, "images", "", "Product image directory (overrides CATMIG_IMAGE_DIR)")
	migrateCmd.Flags().IntVar(&migrateWorkers, "workers", 0, "Concurrent product workers (overrides CATMIG_WORKERS)")
	migrateCmd.Flags().BoolVar(&migrateFailFast, "fail-fast", false, "Abort on the first failed product upsert")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Run against an in-memory catalog; nothing is written")
	migrateCmd.Flags().BoolVar(&migrateJSON, "json", false, "Print the run report as JSON")
	migrateCmd.Flags().StringVar(&migrateMetricsFile, "metrics-file", "", "Write run metrics in Prometheus textfile format (overrides CATMIG_METRICS_FILE)")
	migrateCmd.Flags().StringVar(&migrateCompareReport, "compare-report", "", "Diff the text report against a saved report file")
}

func runMigrate(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := app.Config
	logger := app.Logger

	if migrateCategories != "" {
		cfg.CategoriesDump = migrateCategories
	}
	if migrateProducts != "" {
		cfg.ProductsDump = migrateProducts
	}
	if migrateImages != "" {
		cfg.ImageDir = migrateImages
		cfg.ImageS3Bucket = ""
	}
	if migrateWorkers > 0 {
		cfg.Workers = migrateWorkers
	}
	if migrateMetricsFile != "" {
		cfg.MetricsFile = migrateMetricsFile
	}
	if cfg.CategoriesDump == "" || cfg.ProductsDump == "" {
		return exitError(2, fmt.Errorf("both dumps are required (use --categories and --products, or set CATMIG_CATEGORIES_DUMP and CATMIG_PRODUCTS_DUMP)"))
	}

	var saved string
	if migrateCompareReport != "" {
		s, err := readFile(migrateCompareReport)
		if err != nil {
			return exitError(1, fmt.Errorf("failed to read saved report: %w", err))
		}
		saved = s
	}

	rules, err := ruleSet(cfg)
	if err != nil {
		return exitError(1, err)
	}
	locator, err := newLocator(ctx, cfg, logger)
	if err != nil {
		return exitError(1, err)
	}

	opts := migrate.Options{
		CategoriesPath: cfg.CategoriesDump,
		ProductsPath:   cfg.ProductsDump,
		Workers:        cfg.Workers,
		FailFast:       migrateFailFast,
		DryRun:         migrateDryRun,
	}

	var (
		migrator *migrate.Migrator
		journal  *importlog.Writer
	)
	if migrateDryRun {
		mem := memory.New()
		migrator = migrate.New(mem, mem, locator, rules, logger)
	} else {
		journal = importlog.NewWriter(app.DB.Dialect())
		runID, err := journal.StartRun(ctx, app.DB, importlog.KindMigrate)
		if err != nil {
			return exitError(1, err)
		}
		opts.RunID = runID
		rs := store.New(app.DB).ForRun(runID)
		migrator = migrate.New(rs.Categories, rs.Products, locator, rules, logger)
	}

	logger.Info("migration started",
		zap.String("run_id", opts.RunID),
		zap.String("categories", opts.CategoriesPath),
		zap.String("products", opts.ProductsPath),
		zap.Int("workers", opts.Workers),
		zap.Bool("dry_run", opts.DryRun))

	rep, runErr := migrator.Run(ctx, opts)

	if journal != nil {
		status := importlog.StatusCompleted
		if runErr != nil {
			status = importlog.StatusFailed
		}
		// Record the outcome even when the run was interrupted
		if err := journal.FinishRun(context.WithoutCancel(ctx), app.DB, opts.RunID, status, rep); err != nil {
			logger.Error("failed to record run", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}

	out := cmd.OutOrStdout()
	if migrateJSON {
		err = rep.WriteJSON(out)
	} else {
		err = rep.Format(out)
	}
	if err != nil {
		return exitError(1, err)
	}

	if err := writeMetrics(cfg.MetricsFile, importlog.KindMigrate, rep.Duration, rep.Record); err != nil {
		logger.Error("metrics not written", zap.Error(err))
	}

	if runErr != nil {
		return exitError(1, fmt.Errorf("migration failed: %w", runErr))
	}

	if migrateCompareReport != "" {
		diff, err := migrate.CompareReports(saved, rep.String())
		if err != nil {
			return exitError(1, err)
		}
		if diff != "" {
			fmt.Fprint(cmd.OutOrStdout(), "\n"+diff)
			return exitError(1, fmt.Errorf("report differs from %s", migrateCompareReport))
		}
	}

	return nil
}
