package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stonegoods/catmig/internal/domain"
)

// CategoryStore handles category persistence operations.
type CategoryStore struct {
	store *Store
}

var _ CategoryRepository = (*CategoryStore)(nil)

const categoryColumns = "id, name, slug, description"

// UpsertCategory creates the category or refreshes its name (and its
// description when one is given). It reports whether a row was created.
func (cs *CategoryStore) UpsertCategory(ctx context.Context, params CategoryUpsert) (domain.Category, bool, error) {
	var (
		result  domain.Category
		created bool
	)

	err := cs.store.withTx(ctx, func(tx *sql.Tx) error {
		before, err := scanCategory(tx.QueryRowContext(ctx, cs.store.q("SELECT "+categoryColumns+" FROM categories WHERE slug = ?"), params.Slug))
		switch {
		case errors.Is(err, ErrNotFound):
			created = true
		case err != nil:
			return fmt.Errorf("failed to look up category %s: %w", params.Slug, err)
		}

		row := tx.QueryRowContext(ctx, cs.store.q(`
			INSERT INTO categories (name, slug, description)
			VALUES (?, ?, ?)
			ON CONFLICT (slug) DO UPDATE SET
				name = excluded.name,
				description = COALESCE(excluded.description, categories.description),
				updated_at = CURRENT_TIMESTAMP
			RETURNING `+categoryColumns), params.Name, params.Slug, params.Description)
		result, err = scanCategory(row)
		if err != nil {
			return fmt.Errorf("failed to upsert category %s: %w", params.Slug, err)
		}

		if created {
			return cs.store.logCreated(ctx, tx, "category", result.Slug, map[string]any{
				"name": result.Name,
			})
		}
		changes := map[string]any{}
		if before.Name != result.Name {
			changes["name"] = result.Name
		}
		return cs.store.logUpdated(ctx, tx, "category", result.Slug, changes)
	})

	return result, created, err
}

// CategoryBySlug returns the category with the given slug or ErrNotFound.
func (cs *CategoryStore) CategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	c, err := scanCategory(cs.store.db.QueryRowContext(ctx, cs.store.q("SELECT "+categoryColumns+" FROM categories WHERE slug = ?"), slug))
	if err != nil {
		return domain.Category{}, fmt.Errorf("category %s: %w", slug, err)
	}
	return c, nil
}

// FirstCategory returns the category with the lowest id or ErrNotFound.
func (cs *CategoryStore) FirstCategory(ctx context.Context) (domain.Category, error) {
	c, err := scanCategory(cs.store.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY id LIMIT 1"))
	if err != nil {
		return domain.Category{}, fmt.Errorf("first category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by id.
func (cs *CategoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := cs.store.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var (
		c    domain.Category
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &desc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, ErrNotFound
		}
		return domain.Category{}, fmt.Errorf("failed to scan category: %w", err)
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	return c, nil
}
