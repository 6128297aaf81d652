package parser

import (
	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/token"
)

// field is one top-level module field. Start is the index of its '('.
type field struct {
	tok   *token.Token
	kw    string
	start int
}

// parseModuleHeader accepts "(module $id? field*)" or a bare field list and
// returns the field boundaries.
func (p *Parser) parseModuleHeader() ([]field, error) {
	wrapped := p.atClause("module")
	if wrapped {
		p.pos += 2
		if name, _ := p.optID(); name != "" {
			p.names().Module = name
		}
		if t := p.peek(); t != nil && t.Type == token.Keyword && (t.Value == "binary" || t.Value == "quote") {
			return nil, p.unsupported(t, "module "+t.Value)
		}
	}

	var fields []field
	for {
		t := p.peek()
		if t == nil {
			if wrapped {
				return nil, p.errEOF()
			}
			return fields, nil
		}
		if t.Type == token.RParen {
			if !wrapped {
				return nil, p.errAt(t, "unexpected ')'")
			}
			p.next()
			if extra := p.peek(); extra != nil {
				return nil, p.errAt(extra, "unexpected token %q after module", extra.Value)
			}
			return fields, nil
		}
		if t.Type != token.LParen {
			return nil, p.errAt(t, "unexpected token %q, expected a module field", t.Value)
		}
		kw := p.peekAt(1)
		if kw == nil {
			return nil, p.errEOF()
		}
		if kw.Type != token.Keyword {
			return nil, p.errAt(kw, "unexpected token %q, expected a module field", kw.Value)
		}
		start := p.pos
		p.pos += 2
		if err := p.skipList(); err != nil {
			return nil, err
		}
		fields = append(fields, field{tok: kw, kw: kw.Value, start: start})
	}
}

// declare assigns indices to every definition and records their names so
// later references may point forward. Types are parsed here in full.
func (p *Parser) declare(fields []field) error {
	var counts [wasm.SpaceData + 1]uint32
	defined := false

	for _, f := range fields {
		p.pos = f.start + 2
		var space wasm.Space
		switch f.kw {
		case "type":
			if err := p.parseType(); err != nil {
				return err
			}
			continue
		case "import":
			if _, err := p.name(); err != nil {
				return err
			}
			if _, err := p.name(); err != nil {
				return err
			}
			if _, err := p.expect(token.LParen); err != nil {
				return err
			}
			kind, err := p.expect(token.Keyword)
			if err != nil {
				return err
			}
			sp, err := p.importSpace(kind)
			if err != nil {
				return err
			}
			if defined {
				return p.errAt(f.tok, "imports must occur before all non-import definitions")
			}
			p.declareID(sp, counts[sp])
			counts[sp]++
			continue
		case "func":
			space = wasm.SpaceFunc
		case "table":
			space = wasm.SpaceTable
		case "memory":
			space = wasm.SpaceMemory
		case "global":
			space = wasm.SpaceGlobal
		case "elem":
			space = wasm.SpaceElem
		case "data":
			space = wasm.SpaceData
		case "export", "start":
			continue
		case "tag":
			return p.unsupported(f.tok, "exception handling")
		default:
			return p.errAt(f.tok, "unexpected module field %q", f.kw)
		}

		p.declareID(space, counts[space])
		counts[space]++
		if space == wasm.SpaceElem || space == wasm.SpaceData {
			continue
		}
		if err := p.skipInlineExports(); err != nil {
			return err
		}
		if p.atClause("import") {
			if defined {
				return p.errAt(f.tok, "imports must occur before all non-import definitions")
			}
			continue
		}
		defined = true

		// Inline segments take the next elem or data index.
		switch space {
		case wasm.SpaceTable:
			if t := p.peek(); t != nil && t.Type == token.Keyword {
				p.next()
				if p.atClause("elem") {
					counts[wasm.SpaceElem]++
				}
			}
		case wasm.SpaceMemory:
			if p.atClause("data") {
				counts[wasm.SpaceData]++
			}
		}
	}
	return nil
}

func (p *Parser) importSpace(kind *token.Token) (wasm.Space, error) {
	switch kind.Value {
	case "func":
		return wasm.SpaceFunc, nil
	case "table":
		return wasm.SpaceTable, nil
	case "memory":
		return wasm.SpaceMemory, nil
	case "global":
		return wasm.SpaceGlobal, nil
	case "tag":
		return 0, p.unsupported(kind, "exception handling")
	}
	return 0, p.errAt(kind, "unexpected import kind %q", kind.Value)
}

// declareID records an optional $name for index idx of space.
func (p *Parser) declareID(space wasm.Space, idx uint32) {
	name, t := p.optID()
	if t == nil {
		return
	}
	if _, dup := p.ids[space][name]; dup {
		p.report(t, errors.KindSyntax, "redefinition of %s %q", space, t.Value)
		return
	}
	p.ids[space][name] = idx
	p.names().Set(space, idx, name)
}

func (p *Parser) skipInlineExports() error {
	for p.atClause("export") {
		p.pos += 2
		if err := p.skipList(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseField(f field) error {
	p.pos = f.start + 2
	switch f.kw {
	case "type":
		return nil
	case "import":
		return p.parseImport()
	case "func":
		return p.parseFunc()
	case "table":
		return p.parseTable()
	case "memory":
		return p.parseMemory()
	case "global":
		return p.parseGlobal()
	case "export":
		return p.parseExport()
	case "start":
		return p.parseStart(f.tok)
	case "elem":
		return p.parseElem()
	case "data":
		return p.parseData()
	}
	return p.errAt(f.tok, "unexpected module field %q", f.kw)
}

// parseType parses "(type $id? (func (param ...)* (result ...)*))".
func (p *Parser) parseType() error {
	p.declareID(wasm.SpaceType, uint32(len(p.mod.Types)))
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kw, err := p.expect(token.Keyword)
	if err != nil {
		return err
	}
	switch kw.Value {
	case "func":
	case "struct", "array", "sub", "rec":
		return p.unsupported(kw, "GC types")
	default:
		return p.errAt(kw, "unexpected %q, expected func", kw.Value)
	}
	tu, err := p.parseTypeUse()
	if err != nil {
		return err
	}
	if tu.explicit {
		return p.errAt(tu.tok, "unexpected type use in type definition")
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	p.mod.Types = append(p.mod.Types, tu.ft)
	return p.closeParen()
}

// inlineExports parses "(export "name")*" after a definition's $id.
func (p *Parser) inlineExports(kind byte, idx uint32) error {
	for p.atClause("export") {
		p.pos += 2
		name, err := p.name()
		if err != nil {
			return err
		}
		p.mod.Exports = append(p.mod.Exports, wasm.Export{Name: name, Kind: kind, Idx: idx})
		if err := p.closeParen(); err != nil {
			return err
		}
	}
	return nil
}

// inlineImport parses an optional "(import "module" "name")".
func (p *Parser) inlineImport() (module, name string, ok bool, err error) {
	if !p.atClause("import") {
		return "", "", false, nil
	}
	p.pos += 2
	if module, err = p.name(); err != nil {
		return
	}
	if name, err = p.name(); err != nil {
		return
	}
	if err = p.closeParen(); err != nil {
		return
	}
	return module, name, true, nil
}

func (p *Parser) parseImport() error {
	module, err := p.name()
	if err != nil {
		return err
	}
	name, err := p.name()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kind := p.next()
	p.optID()
	if err := p.importDesc(kind.Value, module, name); err != nil {
		return err
	}
	if err := p.closeParen(); err != nil {
		return err
	}
	return p.closeParen()
}

// importDesc parses the descriptor of an import whose kind keyword and $id
// have been consumed, and appends the import.
func (p *Parser) importDesc(kind, module, name string) error {
	imp := wasm.Import{Module: module, Name: name}
	switch kind {
	case "func":
		fn := uint32(p.mod.NumFuncs())
		tu, err := p.parseTypeUse()
		if err != nil {
			return err
		}
		imp.Desc = wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: p.resolveTypeUse(&tu)}
		p.funcSignature(fn, &tu, nil)
	case "table":
		tt, err := p.tableType()
		if err != nil {
			return err
		}
		imp.Desc = wasm.ImportDesc{Kind: wasm.KindTable, Table: &tt}
	case "memory":
		mt, err := p.memoryType()
		if err != nil {
			return err
		}
		imp.Desc = wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &mt}
	case "global":
		gt, err := p.globalType()
		if err != nil {
			return err
		}
		imp.Desc = wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &gt}
	}
	p.mod.Imports = append(p.mod.Imports, imp)
	return nil
}

func (p *Parser) limits() (wasm.Limits, error) {
	if t := p.peek(); t != nil && t.Type == token.Keyword && t.Value == "i64" {
		return wasm.Limits{}, p.unsupported(t, "memory64")
	}
	minimum, err := p.u32()
	if err != nil {
		return wasm.Limits{}, err
	}
	l := wasm.Limits{Min: minimum}
	if t := p.peek(); t != nil && t.Type == token.Number {
		maximum, err := p.u32()
		if err != nil {
			return wasm.Limits{}, err
		}
		l.Max = &maximum
	}
	return l, nil
}

func (p *Parser) tableType() (wasm.TableType, error) {
	l, err := p.limits()
	if err != nil {
		return wasm.TableType{}, err
	}
	rt, err := p.refType()
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{Limits: l, ElemType: rt}, nil
}

func (p *Parser) memoryType() (wasm.MemoryType, error) {
	l, err := p.limits()
	if err != nil {
		return wasm.MemoryType{}, err
	}
	if t := p.peek(); t != nil && t.Type == token.Keyword && t.Value == "shared" {
		return wasm.MemoryType{}, p.unsupported(t, "shared memory")
	}
	return wasm.MemoryType{Limits: l}, nil
}

func (p *Parser) globalType() (wasm.GlobalType, error) {
	if p.atClause("mut") {
		p.pos += 2
		vt, err := p.valType()
		if err != nil {
			return wasm.GlobalType{}, err
		}
		return wasm.GlobalType{ValType: vt, Mutable: true}, p.closeParen()
	}
	vt, err := p.valType()
	return wasm.GlobalType{ValType: vt}, err
}

func (p *Parser) parseTable() error {
	idx := uint32(p.mod.NumTables())
	p.optID()
	if err := p.inlineExports(wasm.KindTable, idx); err != nil {
		return err
	}
	module, name, imported, err := p.inlineImport()
	if err != nil {
		return err
	}
	if imported {
		if err := p.importDesc("table", module, name); err != nil {
			return err
		}
		return p.closeParen()
	}

	// "reftype (elem ...)" declares the table together with its contents.
	if t := p.peek(); t != nil && t.Type == token.Keyword {
		rt, err := p.refType()
		if err != nil {
			return err
		}
		if !p.atClause("elem") {
			return p.errAt(t, "expected table limits")
		}
		p.pos += 2
		seg := wasm.Element{Mode: wasm.SegmentActive, TableIdx: idx, Type: rt, Offset: i32Zero()}
		segIdx := uint32(len(p.mod.Elements))
		if t := p.peek(); t != nil && t.Type == token.LParen {
			err = p.exprEntries(&seg, segIdx)
		} else {
			err = p.funcIdxEntries(&seg, segIdx)
		}
		if err != nil {
			return err
		}
		if err := p.closeParen(); err != nil {
			return err
		}
		n := uint32(seg.Len())
		p.mod.Tables = append(p.mod.Tables, wasm.TableType{Limits: wasm.Limits{Min: n, Max: &n}, ElemType: rt})
		p.mod.Elements = append(p.mod.Elements, seg)
		return p.closeParen()
	}

	tt, err := p.tableType()
	if err != nil {
		return err
	}
	p.mod.Tables = append(p.mod.Tables, tt)
	return p.closeParen()
}

func (p *Parser) parseMemory() error {
	idx := uint32(p.mod.NumMemories())
	p.optID()
	if err := p.inlineExports(wasm.KindMemory, idx); err != nil {
		return err
	}
	module, name, imported, err := p.inlineImport()
	if err != nil {
		return err
	}
	if imported {
		if err := p.importDesc("memory", module, name); err != nil {
			return err
		}
		return p.closeParen()
	}

	if p.atClause("data") {
		p.pos += 2
		init := p.dataString()
		if err := p.closeParen(); err != nil {
			return err
		}
		pages := (uint32(len(init)) + wasm.PageSize - 1) / wasm.PageSize
		p.mod.Memories = append(p.mod.Memories, wasm.MemoryType{Limits: wasm.Limits{Min: pages, Max: &pages}})
		p.mod.Data = append(p.mod.Data, wasm.DataSegment{
			Mode:   wasm.SegmentActive,
			MemIdx: idx,
			Offset: i32Zero(),
			Init:   init,
		})
		return p.closeParen()
	}

	mt, err := p.memoryType()
	if err != nil {
		return err
	}
	p.mod.Memories = append(p.mod.Memories, mt)
	return p.closeParen()
}

func (p *Parser) parseGlobal() error {
	idx := uint32(p.mod.NumGlobals())
	p.optID()
	if err := p.inlineExports(wasm.KindGlobal, idx); err != nil {
		return err
	}
	module, name, imported, err := p.inlineImport()
	if err != nil {
		return err
	}
	if imported {
		if err := p.importDesc("global", module, name); err != nil {
			return err
		}
		return p.closeParen()
	}

	gt, err := p.globalType()
	if err != nil {
		return err
	}
	init, err := p.constExpr(wasm.SiteGlobalInit, idx, -1)
	if err != nil {
		return err
	}
	p.mod.Globals = append(p.mod.Globals, wasm.Global{Type: gt, Init: init})
	return p.closeParen()
}

func (p *Parser) parseExport() error {
	name, err := p.name()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kw, err := p.expect(token.Keyword)
	if err != nil {
		return err
	}
	var kind byte
	var space wasm.Space
	switch kw.Value {
	case "func":
		kind, space = wasm.KindFunc, wasm.SpaceFunc
	case "table":
		kind, space = wasm.KindTable, wasm.SpaceTable
	case "memory":
		kind, space = wasm.KindMemory, wasm.SpaceMemory
	case "global":
		kind, space = wasm.KindGlobal, wasm.SpaceGlobal
	case "tag":
		return p.unsupported(kw, "exception handling")
	default:
		return p.errAt(kw, "unexpected export kind %q", kw.Value)
	}
	idx, sym, err := p.index(space)
	if err != nil {
		return err
	}
	if sym {
		p.names().Bind(wasm.Ref{Site: wasm.SiteExport, Owner: uint32(len(p.mod.Exports))})
	}
	p.mod.Exports = append(p.mod.Exports, wasm.Export{Name: name, Kind: kind, Idx: idx})
	if err := p.closeParen(); err != nil {
		return err
	}
	return p.closeParen()
}

func (p *Parser) parseStart(kw *token.Token) error {
	if p.mod.Start != nil {
		return p.errAt(kw, "multiple start sections")
	}
	idx, sym, err := p.index(wasm.SpaceFunc)
	if err != nil {
		return err
	}
	if sym {
		p.names().Bind(wasm.Ref{Site: wasm.SiteStart})
	}
	p.mod.Start = &idx
	return p.closeParen()
}

// index reads a $name or a number naming an item of a module-level space.
// It reports whether the reference was symbolic. Unknown names are recorded
// as diagnostics and resolve to 0.
func (p *Parser) index(space wasm.Space) (uint32, bool, error) {
	t := p.next()
	if t == nil {
		return 0, false, p.errEOF()
	}
	switch t.Type {
	case token.ID:
		idx, ok := p.ids[space][t.Value[1:]]
		if !ok {
			p.report(t, errors.KindUnresolved, "undefined %s variable %q", space, t.Value)
			return 0, false, nil
		}
		return idx, true, nil
	case token.Number:
		v, err := parseNat(t.Value, 32)
		if err != nil {
			return 0, false, p.errAt(t, "%v: %s", err, t.Value)
		}
		return uint32(v), false, nil
	}
	return 0, false, p.errAt(t, "unexpected token %q, expected %s index", t.Value, space)
}

func i32Zero() []byte {
	return wasm.ConstExpr(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{}})
}
