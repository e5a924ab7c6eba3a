// Package sqldump reads hand-exported MySQL dumps without a SQL engine.
// It finds INSERT statements, splits their VALUES list into row tuples and
// splits each tuple into literal tokens. Quoting, backslash escapes and
// comments are tracked by a small state machine so that separators inside
// string literals never split a row or a value.
package sqldump

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoValues is returned when an INSERT statement has no VALUES clause
	ErrNoValues = errors.New("statement has no VALUES clause")

	// ErrNoStatement is returned when a dump holds no INSERT for the table
	ErrNoStatement = errors.New("no INSERT statement found")
)

var insertHeader = regexp.MustCompile("(?is)^INSERT\\s+(?:IGNORE\\s+)?INTO\\s+`?([A-Za-z0-9_$]+)`?")

// Statement is one INSERT statement of a dump
type Statement struct {
	Table string
	Text  string
	// Index is the position of the statement among all statements of the dump
	Index int
}

// Statements returns every INSERT INTO statement targeting table, in dump
// order. Table names compare case-insensitively.
func Statements(text, table string) ([]Statement, error) {
	var out []Statement
	for i, stmt := range splitStatements(text) {
		m := insertHeader.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		if !strings.EqualFold(m[1], table) {
			continue
		}
		out = append(out, Statement{Table: m[1], Text: stmt, Index: i})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for table %q", ErrNoStatement, table)
	}
	return out, nil
}

// splitStatements cuts text on top-level semicolons and drops comments.
// Returned statements are trimmed and never empty.
func splitStatements(text string) []string {
	var (
		stmts []string
		cur   strings.Builder
		s     scanner
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if s.state == stateCode {
			if skip := commentLen(text[i:]); skip > 0 {
				i += skip - 1
				continue
			}
			if c == ';' {
				if stmt := strings.TrimSpace(cur.String()); stmt != "" {
					stmts = append(stmts, stmt)
				}
				cur.Reset()
				continue
			}
		}
		s.step(text, &i, &cur)
	}
	if stmt := strings.TrimSpace(cur.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

// commentLen returns the length of a comment starting at s, or 0.
// MySQL conditional comments (/*!...*/) are dropped like plain ones.
func commentLen(s string) int {
	switch {
	case strings.HasPrefix(s, "-- "), strings.HasPrefix(s, "--\n"), strings.HasPrefix(s, "#"):
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			return nl + 1
		}
		return len(s)
	case strings.HasPrefix(s, "/*"):
		if end := strings.Index(s[2:], "*/"); end >= 0 {
			return end + 4
		}
		return len(s)
	}
	return 0
}
