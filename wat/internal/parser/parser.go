// Package parser builds a wasm.Module from WebAssembly text tokens.
package parser

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/token"
)

// Parser holds the state of one module parse. Symbolic names are resolved
// in two passes: declare assigns indices to every named item, then the
// fields are parsed in order.
type Parser struct {
	mod    *wasm.Module
	source string
	tokens []token.Token
	pos    int

	// ids maps "$name" to an index per module-level space.
	ids [wasm.SpaceData + 1]map[string]uint32

	diags    errors.Diagnostics
	usesData bool
}

// New returns a parser over tokens. Source labels diagnostics.
func New(source string, tokens []token.Token) *Parser {
	p := &Parser{source: source, tokens: tokens, mod: &wasm.Module{}}
	for i := range p.ids {
		p.ids[i] = map[string]uint32{}
	}
	return p
}

// Parse tokenizes and parses a module.
func Parse(source, text string) (*wasm.Module, error) {
	tokens, err := token.Tokenize(text)
	if err != nil {
		if lexErr, ok := err.(*token.Error); ok {
			return nil, errors.Syntax(source, lexErr.Line, lexErr.Col, lexErr.Msg)
		}
		return nil, err
	}
	return New(source, tokens).Parse()
}

// Parse parses the module. Syntax errors stop the parse; unresolved and
// duplicate names are collected and reported together.
func (p *Parser) Parse() (*wasm.Module, error) {
	fields, err := p.parseModuleHeader()
	if err != nil {
		return nil, err
	}
	if err := p.declare(fields); err != nil {
		return nil, p.fail(err)
	}
	for _, f := range fields {
		if err := p.parseField(f); err != nil {
			return nil, p.fail(err)
		}
	}
	if p.usesData {
		n := uint32(len(p.mod.Data))
		p.mod.DataCount = &n
	}
	if err := p.diags.Err(); err != nil {
		return nil, err
	}
	return p.mod, nil
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

// peekAt returns the token n positions ahead.
func (p *Parser) peekAt(n int) *token.Token {
	if p.pos+n >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+n]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, p.errEOF()
	}
	if t.Type != typ {
		return nil, p.errAt(t, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *Parser) closeParen() error {
	_, err := p.expect(token.RParen)
	return err
}

// atKeyword reports whether the next token is the keyword kw.
func (p *Parser) atKeyword(kw string) bool {
	t := p.peek()
	return t != nil && t.Type == token.Keyword && t.Value == kw
}

// atClause reports whether the next tokens open a clause "(kw".
func (p *Parser) atClause(kw string) bool {
	t, k := p.peek(), p.peekAt(1)
	return t != nil && k != nil && t.Type == token.LParen && k.Type == token.Keyword && k.Value == kw
}

// atID reports whether the next token is a $name.
func (p *Parser) atID() bool {
	t := p.peek()
	return t != nil && t.Type == token.ID
}

// atIndex reports whether the next token is a $name or a number.
func (p *Parser) atIndex() bool {
	t := p.peek()
	return t != nil && (t.Type == token.ID || t.Type == token.Number)
}

// optID consumes an optional $name and returns it without the '$'.
func (p *Parser) optID() (string, *token.Token) {
	if !p.atID() {
		return "", nil
	}
	t := p.next()
	return strings.TrimPrefix(t.Value, "$"), t
}

// skipList skips a balanced list whose '(' has been consumed.
func (p *Parser) skipList() error {
	depth := 1
	for depth > 0 {
		t := p.next()
		if t == nil {
			return p.errEOF()
		}
		switch t.Type {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
		}
	}
	return nil
}

func (p *Parser) errAt(t *token.Token, format string, args ...any) error {
	return errors.Syntax(p.source, t.Line, t.Col, fmt.Sprintf(format, args...))
}

func (p *Parser) errEOF() error {
	line, col := 1, 1
	if n := len(p.tokens); n > 0 {
		last := p.tokens[n-1]
		line, col = last.Line, last.Col+len(last.Value)
	}
	return errors.Syntax(p.source, line, col, "unexpected end of input")
}

func (p *Parser) unsupported(t *token.Token, what string) error {
	return errors.New(errors.PhaseParse, errors.KindUnsupported).
		Source(p.source).
		At(t.Line, t.Col).
		Detail("unsupported: %s", what).
		Build()
}

// fail appends a fatal error to the diagnostics collected so far.
func (p *Parser) fail(err error) error {
	p.diags.Add(err)
	return p.diags.Err()
}

// report records a non-fatal diagnostic.
func (p *Parser) report(t *token.Token, kind errors.Kind, format string, args ...any) {
	p.diags.Add(errors.New(errors.PhaseParse, kind).
		Source(p.source).
		At(t.Line, t.Col).
		Detail(format, args...).
		Build())
}

func (p *Parser) names() *wasm.Names {
	return p.mod.EnsureNames()
}
