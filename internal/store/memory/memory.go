// Package memory implements the store repositories in process memory.
// It backs dry runs and tests; it follows the same upsert-by-slug rules as
// the SQL store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/store"
)

// Store is an in-memory category and product repository
type Store struct {
	mu         sync.Mutex
	nextCat    int64
	nextProd   int64
	categories map[string]domain.Category
	products   map[string]domain.Product

	// FailSlugs makes UpsertProduct fail for the listed slugs
	FailSlugs map[string]error
}

var (
	_ store.CategoryRepository = (*Store)(nil)
	_ store.ProductRepository  = (*Store)(nil)
)

// New returns an empty store
func New() *Store {
	return &Store{
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
	}
}

func (s *Store) UpsertCategory(_ context.Context, params store.CategoryUpsert) (domain.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[params.Slug]
	if !ok {
		s.nextCat++
		c = domain.Category{ID: s.nextCat, Slug: params.Slug}
	}
	c.Name = params.Name
	if params.Description != nil {
		d := *params.Description
		c.Description = &d
	}
	s.categories[params.Slug] = c
	return c, !ok, nil
}

func (s *Store) CategoryBySlug(_ context.Context, slug string) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[slug]
	if !ok {
		return domain.Category{}, fmt.Errorf("category %s: %w", slug, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) FirstCategory(ctx context.Context) (domain.Category, error) {
	all, _ := s.ListCategories(ctx)
	if len(all) == 0 {
		return domain.Category{}, fmt.Errorf("first category: %w", store.ErrNotFound)
	}
	return all[0], nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertProduct(_ context.Context, params store.ProductUpsert) (store.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailSlugs[params.Slug]; ok {
		return store.UpsertResult{}, fmt.Errorf("failed to upsert product %s: %w", params.Slug, err)
	}

	before, exists := s.products[params.Slug]
	p := before
	if !exists {
		s.nextProd++
		p = domain.Product{
			ID:          s.nextProd,
			Name:        params.Name,
			Slug:        params.Slug,
			Description: params.Description,
			CategoryID:  params.CategoryID,
			Unit:        params.Unit,
			IsLot:       params.IsLot,
			Verified:    params.Verified,
		}
	}
	p.Price = params.Price
	p.Stock = params.Stock
	p.Images = slices.Clone(params.Images)
	p.Source = params.Source
	p.LegacyCategoryID = nil
	if params.LegacyCategoryID != nil {
		id := *params.LegacyCategoryID
		p.LegacyCategoryID = &id
	}
	s.products[params.Slug] = p

	res := store.UpsertResult{Product: p, Created: !exists}
	if exists {
		if !before.Price.Equal(p.Price) {
			res.Changed = append(res.Changed, "price")
		}
		if before.Stock != p.Stock {
			res.Changed = append(res.Changed, "stock")
		}
		if !slices.Equal(before.Images, p.Images) {
			res.Changed = append(res.Changed, "images")
		}
		if before.Source != p.Source {
			res.Changed = append(res.Changed, "source")
		}
		if (before.LegacyCategoryID == nil) != (p.LegacyCategoryID == nil) ||
			(before.LegacyCategoryID != nil && *before.LegacyCategoryID != *p.LegacyCategoryID) {
			res.Changed = append(res.Changed, "legacy_category_id")
		}
		slices.Sort(res.Changed)
	}
	return res, nil
}

func (s *Store) ProductBySlug(_ context.Context, slug string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[slug]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", slug, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ProductsWithPlaceholder(_ context.Context, placeholder string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Product
	for _, p := range s.products {
		if p.HasOnlyPlaceholder(placeholder) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateProductImages(_ context.Context, slug string, images []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[slug]
	if !ok {
		return fmt.Errorf("product %s: %w", slug, store.ErrNotFound)
	}
	p.Images = slices.Clone(images)
	s.products[slug] = p
	return nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products), nil
}
