// Package legacy decodes the tuples of the legacy shop's SQL dumps into
// typed rows. Columns are addressed by fixed position; the dumps are
// assumed to keep the legacy schema's column order.
package legacy

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/paths"
	"github.com/stonegoods/catmig/internal/sqldump"
)

// Table names in the legacy dumps
const (
	CategoriesTable = "categories"
	ProductsTable   = "products"
)

// Column positions of the legacy categories table
const (
	CategoryColID   = 0
	CategoryColName = 1
	CategoryColSlug = 2

	MinCategoryColumns = 3
)

// Column positions of the legacy products table
const (
	ProductColName       = 3
	ProductColSlug       = 4
	ProductColCategoryID = 7
	ProductColPrice      = 35
	ProductColStock      = 42
	ProductColDetails    = 44

	MinProductColumns = 45
)

var (
	// ErrShortRow is returned for a tuple with fewer columns than required
	ErrShortRow = errors.New("row has too few columns")

	// ErrMissingField is returned when a required name or slug is empty
	ErrMissingField = errors.New("row is missing a required field")
)

// DecodeCategory decodes one tokenized categories tuple
func DecodeCategory(toks []sqldump.Token) (domain.LegacyCategoryRow, error) {
	if len(toks) < MinCategoryColumns {
		return domain.LegacyCategoryRow{}, fmt.Errorf("%w: got %d, need %d", ErrShortRow, len(toks), MinCategoryColumns)
	}

	id, err := strconv.Atoi(strings.TrimSpace(toks[CategoryColID].Value()))
	if err != nil {
		return domain.LegacyCategoryRow{}, fmt.Errorf("invalid category id %q: %w", toks[CategoryColID].Raw, err)
	}

	name := strings.TrimSpace(toks[CategoryColName].Value())
	rawSlug := toks[CategoryColSlug].Value()
	if strings.TrimSpace(rawSlug) == "" {
		rawSlug = name
	}
	slug, err := paths.NormalizeSlug(rawSlug)
	if name == "" || err != nil {
		return domain.LegacyCategoryRow{}, fmt.Errorf("%w: category %d", ErrMissingField, id)
	}

	return domain.LegacyCategoryRow{LegacyID: id, Name: name, Slug: slug}, nil
}

// DecodeProduct decodes one tokenized products tuple. Unparseable price
// and stock values decode as zero; a NULL category id decodes as zero,
// which never matches a legacy category.
func DecodeProduct(toks []sqldump.Token) (domain.LegacyProductRow, error) {
	if len(toks) < MinProductColumns {
		return domain.LegacyProductRow{}, fmt.Errorf("%w: got %d, need %d", ErrShortRow, len(toks), MinProductColumns)
	}

	name := strings.TrimSpace(toks[ProductColName].Value())
	slug, err := paths.NormalizeSlug(toks[ProductColSlug].Value())
	if name == "" || err != nil {
		return domain.LegacyProductRow{}, fmt.Errorf("%w: name=%q slug=%q", ErrMissingField, name, toks[ProductColSlug].Value())
	}

	row := domain.LegacyProductRow{
		Name:    name,
		Slug:    slug,
		Details: strings.TrimSpace(toks[ProductColDetails].Value()),
	}
	row.LegacyCategoryID, _ = strconv.Atoi(strings.TrimSpace(toks[ProductColCategoryID].Value()))
	row.Stock = parseStock(toks[ProductColStock].Value())
	if price, err := decimal.NewFromString(strings.TrimSpace(toks[ProductColPrice].Value())); err == nil {
		row.Price = price
	}

	return row, nil
}

// parseStock accepts integer and decimal stock counts; fractions truncate.
func parseStock(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return int(d.IntPart())
	}
	return 0
}

// ReadDump reads a whole dump file
func ReadDump(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read dump %s: %w", path, err)
	}
	return string(data), nil
}
