package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/stonegoods/catmig/internal/db"
	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/importlog"
	"github.com/stonegoods/catmig/internal/testutil"
)

// setupTestStore creates a migrated temp database and a store logging under a run.
func setupTestStore(t *testing.T) (*Store, *db.DB, string) {
	t.Helper()
	database := testutil.TempDB(t)
	runID, err := importlog.NewWriter(database.Dialect()).StartRun(context.Background(), database, importlog.KindMigrate)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	return New(database).ForRun(runID), database, runID
}

func setupTestCategory(t *testing.T, s *Store, slug string) domain.Category {
	t.Helper()
	c, _, err := s.Categories.UpsertCategory(context.Background(), CategoryUpsert{Name: slug, Slug: slug})
	if err != nil {
		t.Fatalf("failed to create category %s: %v", slug, err)
	}
	return c
}

func intPtr(i int) *int { return &i }

func TestCategoryStore_Upsert(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	c, created, err := s.Categories.UpsertCategory(ctx, CategoryUpsert{Name: "Marmer", Slug: "marble"})
	if err != nil {
		t.Fatalf("UpsertCategory failed: %v", err)
	}
	if !created {
		t.Error("expected first upsert to create")
	}
	if c.ID == 0 || c.Slug != "marble" || c.Name != "Marmer" {
		t.Errorf("unexpected category %+v", c)
	}

	desc := "Natuursteen"
	again, created, err := s.Categories.UpsertCategory(ctx, CategoryUpsert{Name: "Marble", Slug: "marble", Description: &desc})
	if err != nil {
		t.Fatalf("second UpsertCategory failed: %v", err)
	}
	if created {
		t.Error("expected second upsert to update")
	}
	if again.ID != c.ID {
		t.Errorf("expected same id %d, got %d", c.ID, again.ID)
	}
	if again.Name != "Marble" || again.Description == nil || *again.Description != desc {
		t.Errorf("expected refreshed name and description, got %+v", again)
	}

	// A nil description keeps the stored one
	third, _, err := s.Categories.UpsertCategory(ctx, CategoryUpsert{Name: "Marble", Slug: "marble"})
	if err != nil {
		t.Fatalf("third UpsertCategory failed: %v", err)
	}
	if third.Description == nil || *third.Description != desc {
		t.Errorf("expected description to be kept, got %v", third.Description)
	}
}

func TestCategoryStore_Lookups(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Categories.FirstCategory(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	first := setupTestCategory(t, s, "tiles")
	setupTestCategory(t, s, "sinks")

	got, err := s.Categories.FirstCategory(ctx)
	if err != nil {
		t.Fatalf("FirstCategory failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("expected first category %d, got %d", first.ID, got.ID)
	}

	bySlug, err := s.Categories.CategoryBySlug(ctx, "sinks")
	if err != nil {
		t.Fatalf("CategoryBySlug failed: %v", err)
	}
	if bySlug.Slug != "sinks" {
		t.Errorf("unexpected category %+v", bySlug)
	}

	if _, err := s.Categories.CategoryBySlug(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	all, err := s.Categories.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(all) != 2 || all[0].Slug != "tiles" {
		t.Errorf("unexpected list %+v", all)
	}
}

func TestProductStore_UpsertIsIdempotent(t *testing.T) {
	s, database, runID := setupTestStore(t)
	ctx := context.Background()
	cat := setupTestCategory(t, s, "marble")
	other := setupTestCategory(t, s, "tiles")

	params := ProductUpsert{
		Name:             "Carrara Marmer",
		Slug:             "carrara-marmer",
		Description:      "Gepolijst",
		Price:            decimal.RequireFromString("129.95"),
		Stock:            4,
		Images:           []string{"/images/products/carrara-marmer-main.jpg"},
		CategoryID:       cat.ID,
		Unit:             domain.UnitSquareMeter,
		Source:           domain.SourceUnknown,
		LegacyCategoryID: intPtr(7),
	}

	first, err := s.Products.UpsertProduct(ctx, params)
	if err != nil {
		t.Fatalf("UpsertProduct failed: %v", err)
	}
	if !first.Created {
		t.Error("expected first upsert to create")
	}
	if first.Product.LegacyCategoryID == nil || *first.Product.LegacyCategoryID != 7 {
		t.Errorf("expected legacy category 7, got %v", first.Product.LegacyCategoryID)
	}

	// Second run: mutable fields change, create-only fields must not
	params.Description = "Overschreven"
	params.CategoryID = other.ID
	params.Unit = domain.UnitPiece
	params.Price = decimal.RequireFromString("99.00")
	params.Stock = 2
	params.Images = []string{"/images/products/carrara-marmer-1.jpg", "/images/products/carrara-marmer-2.jpg"}
	params.Source = domain.SourceOXTrade

	second, err := s.Products.UpsertProduct(ctx, params)
	if err != nil {
		t.Fatalf("second UpsertProduct failed: %v", err)
	}
	if second.Created {
		t.Error("expected second upsert to update")
	}
	if second.Product.ID != first.Product.ID {
		t.Errorf("expected same id, got %d and %d", first.Product.ID, second.Product.ID)
	}
	if diff := cmp.Diff([]string{"images", "price", "source", "stock"}, second.Changed); diff != "" {
		t.Errorf("changed fields mismatch (-want +got):\n%s", diff)
	}

	got, err := s.Products.ProductBySlug(ctx, "carrara-marmer")
	if err != nil {
		t.Fatalf("ProductBySlug failed: %v", err)
	}
	if got.Description != "Gepolijst" || got.CategoryID != cat.ID || got.Unit != domain.UnitSquareMeter {
		t.Errorf("create-only fields were overwritten: %+v", got)
	}
	if !got.Price.Equal(decimal.RequireFromString("99")) || got.Stock != 2 || len(got.Images) != 2 || got.Source != domain.SourceOXTrade {
		t.Errorf("mutable fields were not refreshed: %+v", got)
	}

	// Third run with identical input changes nothing
	third, err := s.Products.UpsertProduct(ctx, params)
	if err != nil {
		t.Fatalf("third UpsertProduct failed: %v", err)
	}
	if len(third.Changed) != 0 {
		t.Errorf("expected no changes, got %v", third.Changed)
	}

	n, err := s.Products.CountProducts(ctx)
	if err != nil {
		t.Fatalf("CountProducts failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 product, got %d", n)
	}

	counts, err := importlog.CountEvents(ctx, database, runID)
	if err != nil {
		t.Fatalf("CountEvents failed: %v", err)
	}
	if counts["product.created"] != 1 || counts["product.updated"] != 1 {
		t.Errorf("unexpected event counts: %v", counts)
	}
}

func TestProductStore_UnknownCategoryFails(t *testing.T) {
	s, _, _ := setupTestStore(t)
	_, err := s.Products.UpsertProduct(context.Background(), ProductUpsert{
		Name:       "Wees",
		Slug:       "wees",
		CategoryID: 999,
		Unit:       domain.UnitPiece,
		Source:     domain.SourceUnknown,
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestProductStore_Placeholder(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()
	cat := setupTestCategory(t, s, "tiles")
	const placeholder = "/images/placeholder.jpg"

	for _, p := range []ProductUpsert{
		{Name: "A", Slug: "a", Images: []string{placeholder}},
		{Name: "B", Slug: "b", Images: []string{"/images/products/b.jpg"}},
		{Name: "C", Slug: "c"},
	} {
		p.CategoryID = cat.ID
		p.Unit = domain.UnitPiece
		p.Source = domain.SourceUnknown
		if _, err := s.Products.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct %s failed: %v", p.Slug, err)
		}
	}

	got, err := s.Products.ProductsWithPlaceholder(ctx, placeholder)
	if err != nil {
		t.Fatalf("ProductsWithPlaceholder failed: %v", err)
	}
	var slugs []string
	for _, p := range got {
		slugs = append(slugs, p.Slug)
	}
	if diff := cmp.Diff([]string{"a", "c"}, slugs); diff != "" {
		t.Errorf("placeholder products mismatch (-want +got):\n%s", diff)
	}

	if err := s.Products.UpdateProductImages(ctx, "a", []string{"/images/products/a-main.jpg"}); err != nil {
		t.Fatalf("UpdateProductImages failed: %v", err)
	}
	updated, _ := s.Products.ProductBySlug(ctx, "a")
	if len(updated.Images) != 1 || updated.Images[0] != "/images/products/a-main.jpg" {
		t.Errorf("images not updated: %v", updated.Images)
	}

	if err := s.Products.UpdateProductImages(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown slug, got %v", err)
	}
}
