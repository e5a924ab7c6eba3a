package sqldump

import "strings"

// Rows is the result of splitting the VALUES list of one statement
type Rows struct {
	// Tuples holds the body of each row tuple without its parentheses
	Tuples []string
	// Malformed counts tuples that were dropped because they never closed
	// or because stray text sat between tuples
	Malformed int
}

// SplitRows splits the VALUES list of an INSERT statement into row tuples.
// Row boundaries are the top-level parentheses, so a "),(" sequence inside
// a quoted value stays part of that value. A statement without VALUES
// returns ErrNoValues.
func SplitRows(stmt string) (Rows, error) {
	start := valuesOffset(stmt)
	if start < 0 {
		return Rows{}, ErrNoValues
	}

	var (
		res   Rows
		s     scanner
		depth int
		begin int
		stray bool
	)
	for i := start; i < len(stmt); i++ {
		if s.state != stateCode {
			s.step(stmt, &i, nil)
			continue
		}

		c := stmt[i]
		switch {
		case c == '(':
			if depth == 0 {
				begin = i + 1
				stray = false
			}
			depth++
		case c == ')' && depth > 0:
			depth--
			if depth == 0 {
				res.Tuples = append(res.Tuples, stmt[begin:i])
			}
		case depth == 0 && (c == ',' || c == ';' || isSpace(c)):
		case depth == 0:
			if !stray {
				res.Malformed++
				stray = true
			}
		}
		s.step(stmt, &i, nil)
	}
	if depth > 0 {
		res.Malformed++
	}
	return res, nil
}

// valuesOffset returns the index just past the top-level VALUES keyword,
// or -1 if the statement has none.
func valuesOffset(stmt string) int {
	const kw = "VALUES"
	var s scanner
	for i := 0; i < len(stmt); i++ {
		if s.state == stateCode && i+len(kw) <= len(stmt) && strings.EqualFold(stmt[i:i+len(kw)], kw) {
			before := i == 0 || !isIdent(stmt[i-1])
			after := i+len(kw) == len(stmt) || !isIdent(stmt[i+len(kw)])
			if before && after {
				return i + len(kw)
			}
		}
		s.step(stmt, &i, nil)
	}
	return -1
}
