package parser

import (
	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/token"
)

// typeUse is a parsed "(type x)? (param ...)* (result ...)*".
type typeUse struct {
	tok      *token.Token
	ft       wasm.FuncType
	params   []string // parameter names without '$', "" when unnamed
	paramTok []*token.Token
	idx      uint32
	explicit bool // (type x) present
	bound    bool // x was a $name
}

func (p *Parser) parseTypeUse() (typeUse, error) {
	var tu typeUse
	if p.atClause("type") {
		tu.tok = p.peekAt(1)
		p.pos += 2
		idx, sym, err := p.index(wasm.SpaceType)
		if err != nil {
			return tu, err
		}
		tu.idx, tu.explicit, tu.bound = idx, true, sym
		if err := p.closeParen(); err != nil {
			return tu, err
		}
	}
	for p.atClause("param") {
		p.pos += 2
		if name, t := p.optID(); t != nil {
			vt, err := p.valType()
			if err != nil {
				return tu, err
			}
			tu.ft.Params = append(tu.ft.Params, vt)
			tu.params = append(tu.params, name)
			tu.paramTok = append(tu.paramTok, t)
			if err := p.closeParen(); err != nil {
				return tu, err
			}
			continue
		}
		types, err := p.valTypeList()
		if err != nil {
			return tu, err
		}
		for _, vt := range types {
			tu.ft.Params = append(tu.ft.Params, vt)
			tu.params = append(tu.params, "")
			tu.paramTok = append(tu.paramTok, nil)
		}
	}
	for p.atClause("result") {
		p.pos += 2
		types, err := p.valTypeList()
		if err != nil {
			return tu, err
		}
		tu.ft.Results = append(tu.ft.Results, types...)
	}
	return tu, nil
}

// resolveTypeUse returns the type index of a type use. Without an explicit
// index the first structurally equal type is used, or a new type is
// appended. With one, inline params and results must match it.
func (p *Parser) resolveTypeUse(tu *typeUse) uint32 {
	if !tu.explicit {
		return p.mod.AddType(tu.ft)
	}
	ft := p.mod.TypeAt(tu.idx)
	if ft == nil {
		p.report(tu.tok, errors.KindUnresolved, "type index %d out of range", tu.idx)
		return tu.idx
	}
	if len(tu.ft.Params)+len(tu.ft.Results) == 0 {
		tu.ft = *ft
		tu.params = make([]string, len(ft.Params))
		tu.paramTok = make([]*token.Token, len(ft.Params))
		return tu.idx
	}
	if !ft.Equal(tu.ft) {
		p.report(tu.tok, errors.KindInvalid, "type mismatch in type use: inline signature differs from type %d", tu.idx)
	}
	return tu.idx
}

// funcSignature binds the type use of function fn and records its
// parameter names. Names also go into locals when non-nil.
func (p *Parser) funcSignature(fn uint32, tu *typeUse, locals map[string]uint32) {
	if tu.bound {
		p.names().Bind(wasm.Ref{Site: wasm.SiteFuncType, Owner: fn})
	}
	seen := map[string]bool{}
	for i, name := range tu.params {
		if name == "" {
			continue
		}
		if seen[name] {
			p.report(tu.paramTok[i], errors.KindSyntax, "redefinition of local %q", "$"+name)
			continue
		}
		seen[name] = true
		p.names().SetIn(wasm.SpaceLocal, fn, uint32(i), name)
		if locals != nil {
			locals[name] = uint32(i)
		}
	}
}

// parseFunc parses a function definition or a function import written in
// the abbreviated "(func (import ...))" form.
func (p *Parser) parseFunc() error {
	fn := uint32(p.mod.NumFuncs())
	p.optID()
	if err := p.inlineExports(wasm.KindFunc, fn); err != nil {
		return err
	}
	module, name, imported, err := p.inlineImport()
	if err != nil {
		return err
	}
	if imported {
		if err := p.importDesc("func", module, name); err != nil {
			return err
		}
		return p.closeParen()
	}

	tu, err := p.parseTypeUse()
	if err != nil {
		return err
	}
	typeIdx := p.resolveTypeUse(&tu)
	b := &body{fn: int64(fn), locals: map[string]uint32{}}
	p.funcSignature(fn, &tu, b.locals)

	numLocals := uint32(len(tu.ft.Params))
	var locals []wasm.LocalEntry
	for p.atClause("local") {
		p.pos += 2
		if name, t := p.optID(); t != nil {
			vt, err := p.valType()
			if err != nil {
				return err
			}
			if _, dup := b.locals[name]; dup {
				p.report(t, errors.KindSyntax, "redefinition of local %q", t.Value)
			} else {
				b.locals[name] = numLocals
				p.names().SetIn(wasm.SpaceLocal, fn, numLocals, name)
			}
			locals = addLocal(locals, vt)
			numLocals++
			if err := p.closeParen(); err != nil {
				return err
			}
			continue
		}
		types, err := p.valTypeList()
		if err != nil {
			return err
		}
		for _, vt := range types {
			locals = addLocal(locals, vt)
			numLocals++
		}
	}

	if err := p.parseInstrs(b); err != nil {
		return err
	}
	if len(b.labels) > 0 {
		return p.errAt(p.peek(), "unexpected ')', expected end")
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	b.emit(wasm.Instruction{Opcode: wasm.OpEnd})

	p.mod.Funcs = append(p.mod.Funcs, typeIdx)
	p.mod.Code = append(p.mod.Code, wasm.FuncBody{
		Locals: locals,
		Code:   p.finish(b, wasm.SiteCode, fn, -1),
	})
	return nil
}

func addLocal(locals []wasm.LocalEntry, vt wasm.ValType) []wasm.LocalEntry {
	if n := len(locals); n > 0 && locals[n-1].ValType == vt {
		locals[n-1].Count++
		return locals
	}
	return append(locals, wasm.LocalEntry{Count: 1, ValType: vt})
}

// finish encodes a body and binds its symbolic operands. Operands are
// located by instruction offset, or by entry when entry is not negative.
func (p *Parser) finish(b *body, site wasm.Site, owner uint32, entry int) []byte {
	code := wasm.EncodeInstructions(b.instrs)
	for _, bd := range b.binds {
		pos := uint32(b.instrs[bd.instr].Offset)
		if entry >= 0 {
			pos = uint32(entry)
		}
		p.names().Bind(wasm.Ref{Site: site, Slot: bd.slot, Owner: owner, Pos: pos})
	}
	return code
}

// constExpr parses instructions up to the closing paren of the enclosing
// list, which is left unconsumed.
func (p *Parser) constExpr(site wasm.Site, owner uint32, entry int) ([]byte, error) {
	b := &body{fn: -1}
	if err := p.parseInstrs(b); err != nil {
		return nil, err
	}
	if len(b.labels) > 0 {
		return nil, p.errAt(p.peek(), "unexpected ')', expected end")
	}
	b.emit(wasm.Instruction{Opcode: wasm.OpEnd})
	return p.finish(b, site, owner, entry), nil
}

// foldedConstExpr parses a single folded instruction as a constant
// expression.
func (p *Parser) foldedConstExpr(site wasm.Site, owner uint32, entry int) ([]byte, error) {
	b := &body{fn: -1}
	if err := p.parseFolded(b); err != nil {
		return nil, err
	}
	b.emit(wasm.Instruction{Opcode: wasm.OpEnd})
	return p.finish(b, site, owner, entry), nil
}
