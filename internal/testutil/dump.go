package testutil

import (
	"fmt"
	"strings"
)

// LegacyProduct describes one row of a synthetic legacy products dump
type LegacyProduct struct {
	Name       string
	Slug       string
	CategoryID string // raw literal, e.g. "3" or "NULL"
	Price      string // raw literal, e.g. "129.95"
	Stock      string
	Details    string
	// Columns overrides the tuple width (default 45)
	Columns int
}

// sqlQuote quotes s as a MySQL string literal with backslash escapes
func sqlQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(s) + "'"
}

// Tuple renders the product as a row tuple with the legacy column layout
func (p LegacyProduct) Tuple() string {
	cols := p.Columns
	if cols == 0 {
		cols = 45
	}
	vals := make([]string, cols)
	for i := range vals {
		vals[i] = "NULL"
	}
	set := func(i int, v string) {
		if i < cols {
			vals[i] = v
		}
	}
	set(0, "1")
	set(3, sqlQuote(p.Name))
	set(4, sqlQuote(p.Slug))
	set(7, orNull(p.CategoryID))
	set(35, orNull(p.Price))
	set(42, orNull(p.Stock))
	set(44, sqlQuote(p.Details))
	return "(" + strings.Join(vals, ",") + ")"
}

// ProductsDump renders a products dump with one INSERT statement
func ProductsDump(products ...LegacyProduct) string {
	tuples := make([]string, len(products))
	for i, p := range products {
		tuples[i] = p.Tuple()
	}
	return "-- legacy shop export\nINSERT INTO `products` VALUES " + strings.Join(tuples, ",") + ";\n"
}

// CategoriesDump renders a categories dump; each entry is {id, name, slug}
func CategoriesDump(rows ...[3]string) string {
	tuples := make([]string, len(rows))
	for i, r := range rows {
		tuples[i] = fmt.Sprintf("(%s,%s,%s,NULL)", r[0], sqlQuote(r[1]), sqlQuote(r[2]))
	}
	return "INSERT INTO `categories` (`id`,`name`,`slug`,`parent_id`) VALUES " + strings.Join(tuples, ",") + ";\n"
}

func orNull(v string) string {
	if v == "" {
		return "NULL"
	}
	return v
}
