package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/stonegoods/catmig/internal/domain"
)

// ProductStore handles product persistence operations.
type ProductStore struct {
	store *Store
}

var _ ProductRepository = (*ProductStore)(nil)

const productColumns = `id, name, slug, description, price, stock, images, category_id,
	unit, is_lot, verified, source, legacy_category_id`

// UpsertProduct creates the product or refreshes its price, stock, images,
// source and legacy category id. The existing row is read first in the same
// transaction to report what changed.
func (ps *ProductStore) UpsertProduct(ctx context.Context, params ProductUpsert) (UpsertResult, error) {
	var result UpsertResult

	images, err := domain.EncodeImages(params.Images)
	if err != nil {
		return result, err
	}

	err = ps.store.withTx(ctx, func(tx *sql.Tx) error {
		before, err := scanProduct(tx.QueryRowContext(ctx, ps.store.q("SELECT "+productColumns+" FROM products WHERE slug = ?"), params.Slug))
		switch {
		case errors.Is(err, ErrNotFound):
			result.Created = true
		case err != nil:
			return fmt.Errorf("failed to look up product %s: %w", params.Slug, err)
		}

		row := tx.QueryRowContext(ctx, ps.store.q(`
			INSERT INTO products (name, slug, description, price, stock, images, category_id,
				unit, is_lot, verified, source, legacy_category_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (slug) DO UPDATE SET
				price = excluded.price,
				stock = excluded.stock,
				images = excluded.images,
				source = excluded.source,
				legacy_category_id = excluded.legacy_category_id,
				updated_at = CURRENT_TIMESTAMP
			RETURNING `+productColumns),
			params.Name, params.Slug, params.Description, params.Price, params.Stock, images, params.CategoryID,
			params.Unit, params.IsLot, params.Verified, params.Source, nullableInt(params.LegacyCategoryID))
		result.Product, err = scanProduct(row)
		if err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", params.Slug, err)
		}

		if result.Created {
			return ps.store.logCreated(ctx, tx, "product", result.Product.Slug, map[string]any{
				"name":        result.Product.Name,
				"category_id": result.Product.CategoryID,
				"price":       result.Product.Price.String(),
				"images":      len(result.Product.Images),
			})
		}

		changes := diffProduct(before, result.Product)
		for field := range changes {
			result.Changed = append(result.Changed, field)
		}
		slices.Sort(result.Changed)
		return ps.store.logUpdated(ctx, tx, "product", result.Product.Slug, changes)
	})

	return result, err
}

// ProductBySlug returns the product with the given slug or ErrNotFound.
func (ps *ProductStore) ProductBySlug(ctx context.Context, slug string) (domain.Product, error) {
	p, err := scanProduct(ps.store.db.QueryRowContext(ctx, ps.store.q("SELECT "+productColumns+" FROM products WHERE slug = ?"), slug))
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", slug, err)
	}
	return p, nil
}

// ProductsWithPlaceholder returns products whose only image is the
// placeholder, or that have no image at all, ordered by id.
func (ps *ProductStore) ProductsWithPlaceholder(ctx context.Context, placeholder string) ([]domain.Product, error) {
	encoded, err := domain.EncodeImages([]string{placeholder})
	if err != nil {
		return nil, err
	}

	rows, err := ps.store.db.QueryContext(ctx, ps.store.q(`
		SELECT `+productColumns+` FROM products
		WHERE images = ? OR images = '[]' OR images = ''
		ORDER BY id
	`), encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to query placeholder products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProductImages replaces the image list of a product.
func (ps *ProductStore) UpdateProductImages(ctx context.Context, slug string, images []string) error {
	encoded, err := domain.EncodeImages(images)
	if err != nil {
		return err
	}

	return ps.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, ps.store.q(`
			UPDATE products SET images = ?, updated_at = CURRENT_TIMESTAMP WHERE slug = ?
		`), encoded, slug)
		if err != nil {
			return fmt.Errorf("failed to update images of %s: %w", slug, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("product %s: %w", slug, ErrNotFound)
		}
		return ps.store.logUpdated(ctx, tx, "product", slug, map[string]any{"images": images})
	})
}

// CountProducts returns the number of stored products.
func (ps *ProductStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := ps.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p      domain.Product
		images string
		legacy sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Stock, &images, &p.CategoryID,
		&p.Unit, &p.IsLot, &p.Verified, &p.Source, &legacy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to scan product: %w", err)
	}
	if p.Images, err = domain.DecodeImages(images); err != nil {
		return domain.Product{}, err
	}
	if legacy.Valid {
		id := int(legacy.Int64)
		p.LegacyCategoryID = &id
	}
	return p, nil
}

// diffProduct returns the refreshed fields that differ between two versions
func diffProduct(before, after domain.Product) map[string]any {
	changes := map[string]any{}
	if !before.Price.Equal(after.Price) {
		changes["price"] = after.Price.String()
	}
	if before.Stock != after.Stock {
		changes["stock"] = after.Stock
	}
	if !slices.Equal(before.Images, after.Images) {
		changes["images"] = after.Images
	}
	if before.Source != after.Source {
		changes["source"] = after.Source
	}
	if !equalIntPtr(before.LegacyCategoryID, after.LegacyCategoryID) {
		changes["legacy_category_id"] = after.LegacyCategoryID
	}
	return changes
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
