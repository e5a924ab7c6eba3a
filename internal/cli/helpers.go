package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/config"
	"github.com/stonegoods/catmig/internal/images"
	"github.com/stonegoods/catmig/internal/metrics"
	"github.com/stonegoods/catmig/internal/reconcile"
)

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	// For now, just return the error. We'll enhance this with proper exit codes later
	return err
}

// newLocator builds the image locator from config. An S3 bucket wins over
// a local directory; with neither every product gets the placeholder.
func newLocator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*images.Locator, error) {
	opts := images.Options{URLPrefix: cfg.ImageURLPrefix, Placeholder: cfg.PlaceholderImage}

	var lister images.Lister
	switch {
	case cfg.ImageS3Bucket != "":
		s3l, err := images.NewS3Lister(ctx, images.S3Config{
			Bucket:    cfg.ImageS3Bucket,
			Prefix:    cfg.ImageS3Prefix,
			Region:    cfg.ImageS3Region,
			Endpoint:  cfg.ImageS3Endpoint,
			PathStyle: cfg.ImageS3Endpoint != "",
		})
		if err != nil {
			return nil, err
		}
		lister = s3l
		logger.Debug("listing images from s3", zap.String("bucket", cfg.ImageS3Bucket), zap.String("prefix", cfg.ImageS3Prefix))
	case cfg.ImageDir != "":
		lister = images.DirLister{Dir: cfg.ImageDir}
		logger.Debug("listing images from directory", zap.String("dir", cfg.ImageDir))
	default:
		logger.Warn("no image source configured; products get the placeholder image")
	}

	return images.NewLocator(lister, opts, images.DefaultWeights, logger), nil
}

// ruleSet returns the configured classification rules, or the built-in set
func ruleSet(cfg *config.Config) (reconcile.RuleSet, error) {
	if cfg.RulesFile == "" {
		return reconcile.DefaultRuleSet(), nil
	}
	rules, err := reconcile.LoadRules(cfg.RulesFile)
	if err != nil {
		return reconcile.RuleSet{}, fmt.Errorf("failed to load rules: %w", err)
	}
	return rules, nil
}

// writeMetrics records a finished run into a fresh registry and writes it in
// node_exporter textfile format. A missing path is a no-op.
func writeMetrics(path, kind string, d time.Duration, record func(*metrics.Recorder)) error {
	if path == "" {
		return nil
	}
	rec := metrics.New()
	record(rec)
	rec.Finish(kind, d, time.Now())
	if err := rec.WriteTextfile(path); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
