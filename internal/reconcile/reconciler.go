// Package reconcile maps legacy category ids and product text onto the new
// category tree.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/paths"
	"github.com/stonegoods/catmig/internal/store"
)

// Resolution branches that are not rule names
const (
	BranchLegacy   = "legacy"
	BranchFallback = "fallback"
)

// ErrNoCategories is returned when nothing can be resolved because the
// store holds no category at all.
var ErrNoCategories = errors.New("no categories in store")

// Resolution is the outcome of resolving one product's category
type Resolution struct {
	CategoryID int64
	Slug       string
	// Branch is BranchLegacy, BranchFallback or the matching rule's name
	Branch string
}

// LoadStats counts the legacy categories written by LoadLegacy
type LoadStats struct {
	Created int
	Updated int
	Skipped int
}

// Reconciler resolves product categories. The legacy map is written once by
// LoadLegacy and only read afterwards; Resolve is safe for concurrent use.
type Reconciler struct {
	categories store.CategoryRepository
	rules      RuleSet
	logger     *zap.Logger

	mu       sync.RWMutex
	legacy   map[int]int64
	slugs    map[int64]string
	targets  map[string]int64
	fallback *domain.Category
}

// New creates a reconciler over repo using the given rule set
func New(repo store.CategoryRepository, rules RuleSet, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		categories: repo,
		rules:      rules,
		logger:     logger,
		legacy:     make(map[int]int64),
		slugs:      make(map[int64]string),
		targets:    make(map[string]int64),
	}
}

// LoadLegacy upserts the legacy categories by slug and records the
// legacy id to category id mapping.
func (r *Reconciler) LoadLegacy(ctx context.Context, rows []domain.LegacyCategoryRow) (LoadStats, error) {
	var stats LoadStats
	for _, row := range rows {
		slug, err := paths.NormalizeSlug(row.Slug)
		if err != nil {
			r.logger.Debug("skipping legacy category",
				zap.Int("legacy_id", row.LegacyID),
				zap.String("slug", row.Slug),
				zap.Error(err))
			stats.Skipped++
			continue
		}

		c, created, err := r.categories.UpsertCategory(ctx, store.CategoryUpsert{Name: row.Name, Slug: slug})
		if err != nil {
			return stats, fmt.Errorf("failed to upsert legacy category %d: %w", row.LegacyID, err)
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}

		r.mu.Lock()
		r.legacy[row.LegacyID] = c.ID
		r.slugs[c.ID] = c.Slug
		r.mu.Unlock()
	}

	r.resetFallback()
	return stats, nil
}

// EnsureTargets creates the rule target categories that do not exist yet.
// Existing targets keep their stored name.
func (r *Reconciler) EnsureTargets(ctx context.Context) (int, error) {
	slugs := make([]string, 0, len(r.rules.Targets))
	for slug := range r.rules.Targets {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	created := 0
	for _, slug := range slugs {
		c, err := r.categories.CategoryBySlug(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			var isNew bool
			c, isNew, err = r.categories.UpsertCategory(ctx, store.CategoryUpsert{Name: r.rules.Targets[slug], Slug: slug})
			if isNew {
				created++
			}
		}
		if err != nil {
			return created, fmt.Errorf("failed to ensure category %s: %w", slug, err)
		}
		r.mu.Lock()
		r.targets[slug] = c.ID
		r.mu.Unlock()
	}

	r.resetFallback()
	return created, nil
}

// Resolve returns the category for a product: the legacy mapping if the id
// is known, else the first matching rule whose target exists, else the
// store's first category.
func (r *Reconciler) Resolve(ctx context.Context, legacyID int, name, description string) (Resolution, error) {
	r.mu.RLock()
	id, ok := r.legacy[legacyID]
	slug := r.slugs[id]
	r.mu.RUnlock()
	if ok {
		return Resolution{CategoryID: id, Slug: slug, Branch: BranchLegacy}, nil
	}

	text := ClassifyText(name, description)
	for _, rule := range r.rules.Rules {
		if !rule.Match(text) {
			continue
		}
		targetID, err := r.target(ctx, rule.Target)
		if err != nil {
			return Resolution{}, err
		}
		if targetID == 0 {
			// Target category missing, try the next rule
			continue
		}
		return Resolution{CategoryID: targetID, Slug: rule.Target, Branch: rule.Name}, nil
	}

	c, err := r.fallbackCategory(ctx)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{CategoryID: c.ID, Slug: c.Slug, Branch: BranchFallback}, nil
}

// target returns the id of a rule target, looking it up once per slug.
// A missing category yields 0.
func (r *Reconciler) target(ctx context.Context, slug string) (int64, error) {
	r.mu.RLock()
	id, ok := r.targets[slug]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	c, err := r.categories.CategoryBySlug(ctx, slug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		id = 0
	case err != nil:
		return 0, fmt.Errorf("failed to look up category %s: %w", slug, err)
	default:
		id = c.ID
	}

	r.mu.Lock()
	r.targets[slug] = id
	r.mu.Unlock()
	return id, nil
}

func (r *Reconciler) fallbackCategory(ctx context.Context) (domain.Category, error) {
	r.mu.RLock()
	c := r.fallback
	r.mu.RUnlock()
	if c != nil {
		return *c, nil
	}

	first, err := r.categories.FirstCategory(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Category{}, ErrNoCategories
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to load fallback category: %w", err)
	}

	r.mu.Lock()
	r.fallback = &first
	r.mu.Unlock()
	return first, nil
}

func (r *Reconciler) resetFallback() {
	r.mu.Lock()
	r.fallback = nil
	r.mu.Unlock()
}

// LegacyCount returns the number of mapped legacy ids
func (r *Reconciler) LegacyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.legacy)
}
