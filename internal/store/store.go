// Package store provides the catalog persistence layer. Categories and
// products are upserted by slug so repeated runs converge on one record per
// slug; each write is logged to the import log of the current run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stonegoods/catmig/internal/db"
	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/importlog"
)

// ErrNotFound is returned when a looked-up record does not exist
var ErrNotFound = errors.New("not found")

// CategoryUpsert holds the fields written when upserting a category
type CategoryUpsert struct {
	Name        string
	Slug        string
	Description *string
}

// ProductUpsert holds the fields written when upserting a product.
// Description, Unit, IsLot, Verified and CategoryID are only written when
// the product is created; the rest is refreshed on every upsert.
type ProductUpsert struct {
	Name             string
	Slug             string
	Description      string
	Price            decimal.Decimal
	Stock            int
	Images           []string
	CategoryID       int64
	Unit             string
	IsLot            bool
	Verified         bool
	Source           string
	LegacyCategoryID *int
}

// UpsertResult describes the outcome of a product upsert
type UpsertResult struct {
	Product domain.Product
	Created bool
	// Changed lists refreshed fields whose value differs from before
	Changed []string
}

// CategoryRepository is the category half of the store contract
type CategoryRepository interface {
	UpsertCategory(ctx context.Context, params CategoryUpsert) (domain.Category, bool, error)
	CategoryBySlug(ctx context.Context, slug string) (domain.Category, error)
	FirstCategory(ctx context.Context) (domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ProductRepository is the product half of the store contract
type ProductRepository interface {
	UpsertProduct(ctx context.Context, params ProductUpsert) (UpsertResult, error)
	ProductBySlug(ctx context.Context, slug string) (domain.Product, error)
	ProductsWithPlaceholder(ctx context.Context, placeholder string) ([]domain.Product, error)
	UpdateProductImages(ctx context.Context, slug string, images []string) error
	CountProducts(ctx context.Context) (int, error)
}

// Store is the root store that provides access to entity stores.
type Store struct {
	db    *db.DB
	runID string
	log   *importlog.Writer

	Categories *CategoryStore
	Products   *ProductStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database, log: importlog.NewWriter(database.Dialect())}
	s.Categories = &CategoryStore{store: s}
	s.Products = &ProductStore{store: s}
	return s
}

// ForRun returns a store that logs every write under runID.
func (s *Store) ForRun(runID string) *Store {
	rs := &Store{db: s.db, runID: runID, log: s.log}
	rs.Categories = &CategoryStore{store: rs}
	rs.Products = &ProductStore{store: rs}
	return rs
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

func (s *Store) q(query string) string {
	return s.db.Dialect().Rebind(query)
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) logCreated(ctx context.Context, tx *sql.Tx, resourceType, slug string, fields map[string]any) error {
	if s.runID == "" {
		return nil
	}
	return s.log.LogCreated(ctx, tx, s.runID, resourceType, slug, fields)
}

func (s *Store) logUpdated(ctx context.Context, tx *sql.Tx, resourceType, slug string, changes map[string]any) error {
	if s.runID == "" || len(changes) == 0 {
		return nil
	}
	return s.log.LogUpdated(ctx, tx, s.runID, resourceType, slug, changes)
}
