package sqldump

import "strings"

type scanState int

const (
	stateCode scanState = iota
	stateQuote
	stateEscape
)

// scanner tracks whether the current byte is SQL code, inside a quoted
// literal, or directly after a backslash inside a literal.
type scanner struct {
	state scanState
	quote byte
}

// step consumes text[*i] and advances the state. A doubled quote inside a
// literal is consumed as one pair. Consumed bytes are copied to out when it
// is non-nil.
func (s *scanner) step(text string, i *int, out *strings.Builder) {
	c := text[*i]
	if out != nil {
		out.WriteByte(c)
	}

	switch s.state {
	case stateCode:
		if c == '\'' || c == '"' || c == '`' {
			s.state = stateQuote
			s.quote = c
		}
	case stateQuote:
		switch {
		case c == '\\' && s.quote != '`':
			s.state = stateEscape
		case c == s.quote:
			if *i+1 < len(text) && text[*i+1] == s.quote {
				*i++
				if out != nil {
					out.WriteByte(text[*i])
				}
				return
			}
			s.state = stateCode
		}
	case stateEscape:
		s.state = stateQuote
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
