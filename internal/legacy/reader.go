package legacy

import (
	"errors"
	"fmt"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/sqldump"
)

// Stats counts the tuples seen while reading a dump and why rows were dropped
type Stats struct {
	Tuples    int `json:"tuples"`
	Malformed int `json:"malformed"`
	Short     int `json:"short"`
	Missing   int `json:"missing"`
	Invalid   int `json:"invalid"`
}

// Skipped returns the number of dropped rows
func (s Stats) Skipped() int {
	return s.Malformed + s.Short + s.Missing + s.Invalid
}

func (s *Stats) count(err error) {
	switch {
	case errors.Is(err, ErrShortRow):
		s.Short++
	case errors.Is(err, ErrMissingField):
		s.Missing++
	default:
		s.Invalid++
	}
}

// ParseCategories decodes every categories tuple of a dump. Only a dump
// without a categories INSERT, or a statement without VALUES, fails.
func ParseCategories(text string) ([]domain.LegacyCategoryRow, Stats, error) {
	var (
		rows  []domain.LegacyCategoryRow
		stats Stats
	)
	err := eachTuple(text, CategoriesTable, &stats, func(toks []sqldump.Token) error {
		row, err := DecodeCategory(toks)
		if err != nil {
			stats.count(err)
			return nil
		}
		rows = append(rows, row)
		return nil
	})
	return rows, stats, err
}

// EachProduct calls fn for every decodable products tuple in dump order.
// Rows that fail to decode are counted, not reported. An error from fn
// stops the iteration and is returned as is.
func EachProduct(text string, fn func(domain.LegacyProductRow) error) (Stats, error) {
	var stats Stats
	err := eachTuple(text, ProductsTable, &stats, func(toks []sqldump.Token) error {
		row, err := DecodeProduct(toks)
		if err != nil {
			stats.count(err)
			return nil
		}
		return fn(row)
	})
	return stats, err
}

func eachTuple(text, table string, stats *Stats, fn func([]sqldump.Token) error) error {
	stmts, err := sqldump.Statements(text, table)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		rows, err := sqldump.SplitRows(stmt.Text)
		if err != nil {
			return fmt.Errorf("%s statement %d: %w", table, stmt.Index, err)
		}
		stats.Malformed += rows.Malformed
		for _, tuple := range rows.Tuples {
			stats.Tuples++
			if err := fn(sqldump.Tokenize(tuple)); err != nil {
				return err
			}
		}
	}
	return nil
}
