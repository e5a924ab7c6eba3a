// Package migrate drives the legacy catalog migration: categories first,
// then every product row through category resolution, image lookup and an
// upsert by slug.
package migrate

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/images"
	"github.com/stonegoods/catmig/internal/legacy"
	"github.com/stonegoods/catmig/internal/reconcile"
	"github.com/stonegoods/catmig/internal/store"
)

// queueSize is the per-worker row buffer
const queueSize = 64

// Options configure one migration run
type Options struct {
	CategoriesPath string
	ProductsPath   string
	// Workers > 1 processes rows concurrently, partitioned by slug
	Workers int
	// FailFast aborts the run on the first failed product upsert
	FailFast bool
	RunID    string
	DryRun   bool
}

// Migrator runs migrations against injected repositories
type Migrator struct {
	categories store.CategoryRepository
	products   store.ProductRepository
	locator    *images.Locator
	rules      reconcile.RuleSet
	logger     *zap.Logger
}

// New creates a migrator. A nil locator stores the default placeholder for
// every product.
func New(categories store.CategoryRepository, products store.ProductRepository, locator *images.Locator, rules reconcile.RuleSet, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locator == nil {
		locator = images.NewLocator(nil, images.Options{}, images.DefaultWeights, logger)
	}
	return &Migrator{
		categories: categories,
		products:   products,
		locator:    locator,
		rules:      rules,
		logger:     logger,
	}
}

// Run migrates both dumps once. Products are upserted one by one as they
// are resolved; nothing is rolled back when the run fails part way. The
// returned report is valid even when err is not nil.
func (m *Migrator) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	rep := newReport()
	rep.RunID = opts.RunID
	rep.DryRun = opts.DryRun
	defer func() { rep.Duration = time.Since(start) }()

	rec := reconcile.New(m.categories, m.rules, m.logger)
	if err := m.loadCategories(ctx, rec, opts.CategoriesPath, rep); err != nil {
		return rep, err
	}

	text, err := legacy.ReadDump(opts.ProductsPath)
	if err != nil {
		return rep, err
	}

	process := func(ctx context.Context, row domain.LegacyProductRow) error {
		return m.processRow(ctx, rec, row, opts.FailFast, rep)
	}

	var stats legacy.Stats
	if opts.Workers > 1 {
		stats, err = m.runPartitioned(ctx, text, opts.Workers, process)
	} else {
		stats, err = legacy.EachProduct(text, func(row domain.LegacyProductRow) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return process(ctx, row)
		})
	}
	rep.addSkipped(stats)
	if err != nil {
		return rep, fmt.Errorf("products: %w", err)
	}

	m.logger.Info("migration finished",
		zap.Int("rows", rep.Rows),
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("skipped", rep.Skipped.Total()),
		zap.Int("upsert_failed", rep.Failed))
	return rep, nil
}

func (m *Migrator) loadCategories(ctx context.Context, rec *reconcile.Reconciler, path string, rep *Report) error {
	text, err := legacy.ReadDump(path)
	if err != nil {
		return err
	}
	rows, stats, err := legacy.ParseCategories(text)
	if err != nil {
		return fmt.Errorf("categories: %w", err)
	}

	loaded, err := rec.LoadLegacy(ctx, rows)
	if err != nil {
		return err
	}
	created, err := rec.EnsureTargets(ctx)
	if err != nil {
		return err
	}

	rep.Categories = CategoryCounts{
		Parsed:         len(rows),
		Created:        loaded.Created,
		Updated:        loaded.Updated,
		Skipped:        stats.Skipped() + loaded.Skipped,
		TargetsCreated: created,
	}
	m.logger.Info("categories loaded",
		zap.Int("parsed", len(rows)),
		zap.Int("mapped", rec.LegacyCount()),
		zap.Int("targets_created", created))
	return nil
}

// processRow resolves, locates and upserts one product. Upsert errors are
// counted and logged unless failFast is set.
func (m *Migrator) processRow(ctx context.Context, rec *reconcile.Reconciler, row domain.LegacyProductRow, failFast bool, rep *Report) error {
	res, err := rec.Resolve(ctx, row.LegacyCategoryID, row.Name, row.Details)
	if err != nil {
		return fmt.Errorf("failed to resolve category of %s: %w", row.Slug, err)
	}

	imgs := m.locator.Strict(ctx, row.Slug)
	placeholder := len(imgs) == 1 && imgs[0] == m.locator.Placeholder()
	source := SourceFor(row.Name)

	unitTarget := res.Slug
	if res.Branch == reconcile.BranchLegacy || res.Branch == reconcile.BranchFallback {
		if rule, ok := reconcile.Classify(m.rules.Rules, row.Name, row.Details); ok {
			unitTarget = rule.Target
		}
	}

	legacyID := row.LegacyCategoryID
	result, err := m.products.UpsertProduct(ctx, store.ProductUpsert{
		Name:             row.Name,
		Slug:             row.Slug,
		Description:      row.Details,
		Price:            row.Price,
		Stock:            row.Stock,
		Images:           imgs,
		CategoryID:       res.CategoryID,
		Unit:             UnitFor(unitTarget),
		Source:           source,
		LegacyCategoryID: &legacyID,
	})
	if err != nil {
		rep.rowDone(res.Branch, source, len(imgs), placeholder, false, false, true)
		if failFast || ctx.Err() != nil {
			return err
		}
		m.logger.Warn("product upsert failed", zap.String("slug", row.Slug), zap.Error(err))
		return nil
	}

	rep.rowDone(res.Branch, source, len(imgs), placeholder, result.Created, len(result.Changed) > 0, false)
	m.logger.Debug("product migrated",
		zap.String("slug", row.Slug),
		zap.String("branch", res.Branch),
		zap.String("category", res.Slug),
		zap.Int("images", len(imgs)),
		zap.Bool("created", result.Created))
	return nil
}

// runPartitioned feeds rows to workers by slug hash so rows sharing a slug
// are handled by one worker in dump order.
func (m *Migrator) runPartitioned(ctx context.Context, text string, workers int, process func(context.Context, domain.LegacyProductRow) error) (legacy.Stats, error) {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan domain.LegacyProductRow, workers)
	for i := range queues {
		queue := make(chan domain.LegacyProductRow, queueSize)
		queues[i] = queue
		g.Go(func() error {
			for row := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := process(gctx, row); err != nil {
					return err
				}
			}
			return nil
		})
	}

	var stats legacy.Stats
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		var err error
		stats, err = legacy.EachProduct(text, func(row domain.LegacyProductRow) error {
			select {
			case queues[Partition(row.Slug, workers)] <- row:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return err
	})

	err := g.Wait()
	return stats, err
}

// Partition maps a slug onto one of n workers
func Partition(slug string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(slug))
	return int(h.Sum32() % uint32(n))
}
