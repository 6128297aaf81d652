// Package token splits WebAssembly text into tokens.
package token

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type Type int

const (
	LParen Type = iota
	RParen
	Keyword
	ID
	String
	Number
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Keyword:
		return "keyword"
	case ID:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	}
	return "unknown"
}

// Token is one lexical token. Value of a String token holds the decoded
// bytes; ID tokens keep their leading '$'.
type Token struct {
	Value string
	Type  Type
	Line  int
	Col   int
}

// Error is a lexical error at a 1-based line and byte column.
type Error struct {
	Msg  string
	Line int
	Col  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

// Tokenize splits input into tokens, skipping whitespace and comments.
func Tokenize(input string) ([]Token, error) {
	lx := &lexer{src: input, line: 1, col: 1}
	var tokens []Token
	for {
		if err := lx.skip(); err != nil {
			return nil, err
		}
		if lx.pos >= len(lx.src) {
			return tokens, nil
		}
		line, col := lx.line, lx.col
		c := lx.src[lx.pos]
		switch {
		case c == '(':
			lx.advance(1)
			tokens = append(tokens, Token{Value: "(", Type: LParen, Line: line, Col: col})
		case c == ')':
			lx.advance(1)
			tokens = append(tokens, Token{Value: ")", Type: RParen, Line: line, Col: col})
		case c == '"':
			s, err := lx.str()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Value: s, Type: String, Line: line, Col: col})
		case isIDChar(c):
			start := lx.pos
			for lx.pos < len(lx.src) && isIDChar(lx.src[lx.pos]) {
				lx.advance(1)
			}
			word := lx.src[start:lx.pos]
			if lx.pos < len(lx.src) && lx.src[lx.pos] == '"' {
				return nil, lx.errorf(line, col, "unexpected string after %q", word)
			}
			tokens = append(tokens, Token{Value: word, Type: classify(word), Line: line, Col: col})
		default:
			r, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])
			return nil, lx.errorf(line, col, "unexpected character %q", r)
		}
	}
}

func (lx *lexer) errorf(line, col int, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Line: line, Col: col}
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.pos < len(lx.src); i++ {
		if lx.src[lx.pos] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.pos++
	}
}

func (lx *lexer) at(prefix string) bool {
	return strings.HasPrefix(lx.src[lx.pos:], prefix)
}

// skip consumes whitespace, line comments and nested block comments.
func (lx *lexer) skip() error {
	for lx.pos < len(lx.src) {
		switch c := lx.src[lx.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			lx.advance(1)
		case lx.at(";;"):
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance(1)
			}
		case lx.at("(;"):
			line, col := lx.line, lx.col
			lx.advance(2)
			depth := 1
			for depth > 0 {
				switch {
				case lx.pos >= len(lx.src):
					return lx.errorf(line, col, "unterminated block comment")
				case lx.at("(;"):
					depth++
					lx.advance(2)
				case lx.at(";)"):
					depth--
					lx.advance(2)
				default:
					lx.advance(1)
				}
			}
		default:
			return nil
		}
	}
	return nil
}

// str reads a string literal and decodes its escapes.
func (lx *lexer) str() (string, error) {
	line, col := lx.line, lx.col
	lx.advance(1)
	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return "", lx.errorf(line, col, "unterminated string")
		}
		c := lx.src[lx.pos]
		switch {
		case c == '"':
			lx.advance(1)
			return b.String(), nil
		case c == '\\':
			if err := lx.escape(&b); err != nil {
				return "", err
			}
		case c < 0x20 || c == 0x7F:
			return "", lx.errorf(lx.line, lx.col, "invalid character in string")
		default:
			b.WriteByte(c)
			lx.advance(1)
		}
	}
}

func (lx *lexer) escape(b *strings.Builder) error {
	line, col := lx.line, lx.col
	if lx.pos+1 >= len(lx.src) {
		return lx.errorf(line, col, "unterminated string")
	}
	c := lx.src[lx.pos+1]
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '"', '\'', '\\':
		b.WriteByte(c)
	case 'u':
		rest := lx.src[lx.pos+2:]
		end := strings.IndexByte(rest, '}')
		if !strings.HasPrefix(rest, "{") || end < 2 {
			return lx.errorf(line, col, "malformed unicode escape")
		}
		v, err := strconv.ParseUint(strings.ReplaceAll(rest[1:end], "_", ""), 16, 32)
		if err != nil || v > utf8.MaxRune || (v >= 0xD800 && v < 0xE000) {
			return lx.errorf(line, col, "malformed unicode escape")
		}
		b.WriteRune(rune(v))
		lx.advance(2 + end + 1)
		return nil
	default:
		if lx.pos+2 < len(lx.src) && isHex(c) && isHex(lx.src[lx.pos+2]) {
			b.WriteByte(hexVal(c)<<4 | hexVal(lx.src[lx.pos+2]))
			lx.advance(3)
			return nil
		}
		return lx.errorf(line, col, "invalid escape \\%c", c)
	}
	lx.advance(2)
	return nil
}

func classify(word string) Type {
	switch c := word[0]; {
	case c == '$':
		return ID
	case c >= '0' && c <= '9':
		return Number
	case c == '+' || c == '-':
		if len(word) > 1 && (word[1] >= '0' && word[1] <= '9' || isSpecialFloat(word[1:])) {
			return Number
		}
		return Keyword
	}
	if isSpecialFloat(word) {
		return Number
	}
	return Keyword
}

func isSpecialFloat(s string) bool {
	return s == "inf" || s == "nan" || strings.HasPrefix(s, "nan:0x")
}

func isIDChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	}
	return strings.IndexByte("!#$%&'*+-./:<=>?@\\^_`|~", c) >= 0
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return c - 'A' + 10
}
