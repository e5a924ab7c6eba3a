package sqldump

import (
	"regexp"
	"strings"
)

// Kind classifies a literal token
type Kind int

const (
	KindBare Kind = iota
	KindString
	KindNull
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	default:
		return "bare"
	}
}

var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Token is one literal of a row tuple
type Token struct {
	Kind Kind
	// Raw is the literal as written in the dump, trimmed
	Raw string
}

// IsNull reports whether the token is the NULL literal
func (t Token) IsNull() bool {
	return t.Kind == KindNull
}

// Value returns the literal's value: strings are unquoted and unescaped,
// NULL yields "", anything else is returned as written.
func (t Token) Value() string {
	switch t.Kind {
	case KindString:
		return unescape(t.Raw[1:len(t.Raw)-1], t.Raw[0])
	case KindNull:
		return ""
	default:
		return t.Raw
	}
}

// Tokenize splits one row tuple into its literals, in column order. The
// tuple may be given with or without its enclosing parentheses. Values that
// are neither strings, NULL nor numbers (function calls, hex literals) are
// kept as KindBare so column positions never shift.
func Tokenize(row string) []Token {
	row = stripEnclosing(strings.TrimSpace(row))
	if strings.TrimSpace(row) == "" {
		return nil
	}

	var (
		toks  []Token
		s     scanner
		depth int
		begin int
	)
	for i := 0; i < len(row); i++ {
		if s.state == stateCode {
			switch row[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					toks = append(toks, newToken(row[begin:i]))
					begin = i + 1
					continue
				}
			}
		}
		s.step(row, &i, nil)
	}
	return append(toks, newToken(row[begin:]))
}

func newToken(raw string) Token {
	raw = strings.TrimSpace(raw)
	switch {
	case len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0]:
		return Token{Kind: KindString, Raw: raw}
	case strings.EqualFold(raw, "NULL"):
		return Token{Kind: KindNull, Raw: raw}
	case numberPattern.MatchString(raw):
		return Token{Kind: KindNumber, Raw: raw}
	default:
		return Token{Kind: KindBare, Raw: raw}
	}
}

// stripEnclosing removes one pair of parentheses wrapping the whole text.
func stripEnclosing(text string) string {
	if len(text) < 2 || text[0] != '(' || text[len(text)-1] != ')' {
		return text
	}
	var s scanner
	depth := 0
	for i := 0; i < len(text); i++ {
		if s.state == stateCode {
			switch text[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 && i != len(text)-1 {
					return text
				}
			}
		}
		s.step(text, &i, nil)
	}
	return text[1 : len(text)-1]
}

// unescape resolves MySQL backslash escapes and doubled quotes.
func unescape(body string, quote byte) string {
	if !strings.ContainsAny(body, `\`+string(quote)) {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			i++
			switch e := body[i]; e {
			case '0':
				b.WriteByte(0)
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'Z':
				b.WriteByte(0x1a)
			case '%', '_':
				b.WriteByte('\\')
				b.WriteByte(e)
			default:
				b.WriteByte(e)
			}
		case c == quote && i+1 < len(body) && body[i+1] == quote:
			b.WriteByte(quote)
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
