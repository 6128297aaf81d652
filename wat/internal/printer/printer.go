// Package printer renders a wasm.Module in the WebAssembly text format.
//
// Definitions always carry their name, or an index comment when unnamed.
// Reference sites print a name only when the module records the reference
// as bound to it.
package printer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-wat/wasm"
)

// Options controls the layout of the output.
type Options struct {
	// FoldExprs nests operands under the instruction consuming them.
	FoldExprs bool
	// InlineExport writes exports inside the definition they export.
	InlineExport bool
	// InlineImport writes imports as definitions carrying (import ...).
	InlineImport bool
}

type exportKey struct {
	kind byte
	idx  uint32
}

type printer struct {
	m     *wasm.Module
	opts  Options
	names *wasm.Names
	syms  *symbols

	// inline maps a definition to the exports written inside it.
	inline  map[exportKey][]int
	inlined []bool

	buf  bytes.Buffer
	open bool
}

// Print writes m to w.
func Print(w io.Writer, m *wasm.Module, opts Options) error {
	p := &printer{
		m:      m,
		opts:   opts,
		names:  m.Names,
		syms:   newSymbols(m.Names),
		inline: map[exportKey][]int{},
	}
	p.planExports()
	if err := p.module(); err != nil {
		return err
	}
	_, err := w.Write(p.buf.Bytes())
	return err
}

// String renders m as a string.
func String(m *wasm.Module, opts Options) (string, error) {
	var b strings.Builder
	if err := Print(&b, m, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// line starts a new line at the given nesting depth.
func (p *printer) line(depth int, s string) {
	if p.open {
		p.buf.WriteByte('\n')
	}
	p.open = true
	for i := 0; i < depth; i++ {
		p.buf.WriteString("  ")
	}
	p.buf.WriteString(s)
}

// add appends to the current line.
func (p *printer) add(s string) {
	p.buf.WriteString(s)
}

// planExports decides which exports are written inline. Imports keep their
// exports separate unless they are themselves written inline.
func (p *printer) planExports() {
	p.inlined = make([]bool, len(p.m.Exports))
	if !p.opts.InlineExport {
		return
	}
	for i, e := range p.m.Exports {
		var imported int
		switch e.Kind {
		case wasm.KindFunc:
			imported = p.m.NumImportedFuncs()
		case wasm.KindTable:
			imported = p.m.NumImportedTables()
		case wasm.KindMemory:
			imported = p.m.NumImportedMemories()
		case wasm.KindGlobal:
			imported = p.m.NumImportedGlobals()
		default:
			continue
		}
		if int(e.Idx) < imported && !p.opts.InlineImport {
			continue
		}
		key := exportKey{kind: e.Kind, idx: e.Idx}
		p.inline[key] = append(p.inline[key], i)
		p.inlined[i] = true
	}
}

func (p *printer) inlineExports(kind byte, idx uint32) string {
	var b strings.Builder
	for _, i := range p.inline[exportKey{kind: kind, idx: idx}] {
		b.WriteString(" (export ")
		b.WriteString(quote([]byte(p.m.Exports[i].Name)))
		b.WriteByte(')')
	}
	return b.String()
}

// defName returns "$name" for a named definition and an index comment
// otherwise.
func (p *printer) defName(space wasm.Space, idx uint32) string {
	if name, ok := p.syms.name(space, idx); ok {
		return "$" + name
	}
	return "(;" + strconv.FormatUint(uint64(idx), 10) + ";)"
}

// ref renders an index operand.
func (p *printer) ref(r wasm.Ref, space wasm.Space, idx uint32) string {
	if p.names.IsBound(r) {
		if name, ok := p.syms.name(space, idx); ok {
			return "$" + name
		}
	}
	return strconv.FormatUint(uint64(idx), 10)
}

func (p *printer) module() error {
	head := "(module"
	if p.names != nil {
		if id := sanitize(p.names.Module); id != "" {
			head += " $" + id
		}
	}
	p.line(0, head)

	for i, ft := range p.m.Types {
		p.line(1, "(type "+p.defName(wasm.SpaceType, uint32(i))+" (func"+p.signature(ft, -1)+"))")
	}
	if err := p.imports(); err != nil {
		return err
	}
	if err := p.funcs(); err != nil {
		return err
	}

	base := uint32(p.m.NumImportedTables())
	for i, tt := range p.m.Tables {
		idx := base + uint32(i)
		p.line(1, "(table "+p.defName(wasm.SpaceTable, idx)+p.inlineExports(wasm.KindTable, idx)+" "+tableType(tt)+")")
	}
	base = uint32(p.m.NumImportedMemories())
	for i, mt := range p.m.Memories {
		idx := base + uint32(i)
		p.line(1, "(memory "+p.defName(wasm.SpaceMemory, idx)+p.inlineExports(wasm.KindMemory, idx)+" "+limits(mt.Limits)+")")
	}
	base = uint32(p.m.NumImportedGlobals())
	for i, g := range p.m.Globals {
		idx := base + uint32(i)
		init, err := p.constExpr(g.Init, wasm.SiteGlobalInit, idx, -1, false)
		if err != nil {
			return fmt.Errorf("global %d: %w", idx, err)
		}
		p.line(1, "(global "+p.defName(wasm.SpaceGlobal, idx)+p.inlineExports(wasm.KindGlobal, idx)+" "+globalType(g.Type)+" "+init+")")
	}

	for i, e := range p.m.Exports {
		if p.inlined[i] {
			continue
		}
		kw, space, ok := externKind(e.Kind)
		if !ok {
			return fmt.Errorf("export %q: unknown kind %d", e.Name, e.Kind)
		}
		target := p.ref(wasm.Ref{Site: wasm.SiteExport, Owner: uint32(i)}, space, e.Idx)
		p.line(1, "(export "+quote([]byte(e.Name))+" ("+kw+" "+target+"))")
	}
	if p.m.Start != nil {
		p.line(1, "(start "+p.ref(wasm.Ref{Site: wasm.SiteStart}, wasm.SpaceFunc, *p.m.Start)+")")
	}
	if err := p.elements(); err != nil {
		return err
	}
	if err := p.data(); err != nil {
		return err
	}

	p.add(")")
	p.buf.WriteByte('\n')
	return nil
}

func (p *printer) imports() error {
	var funcs, tables, memories, globals uint32
	for _, imp := range p.m.Imports {
		kw, _, ok := externKind(imp.Desc.Kind)
		if !ok {
			return fmt.Errorf("import %s.%s: unknown kind %d", imp.Module, imp.Name, imp.Desc.Kind)
		}
		var space wasm.Space
		var idx uint32
		var desc string
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			space, idx = wasm.SpaceFunc, funcs
			funcs++
			use, err := p.typeUse(idx, imp.Desc.TypeIdx)
			if err != nil {
				return fmt.Errorf("import %s.%s: %w", imp.Module, imp.Name, err)
			}
			desc = use
		case wasm.KindTable:
			space, idx = wasm.SpaceTable, tables
			tables++
			desc = " " + tableType(*imp.Desc.Table)
		case wasm.KindMemory:
			space, idx = wasm.SpaceMemory, memories
			memories++
			desc = " " + limits(imp.Desc.Memory.Limits)
		case wasm.KindGlobal:
			space, idx = wasm.SpaceGlobal, globals
			globals++
			desc = " " + globalType(*imp.Desc.Global)
		}

		from := quote([]byte(imp.Module)) + " " + quote([]byte(imp.Name))
		if p.opts.InlineImport {
			p.line(1, "("+kw+" "+p.defName(space, idx)+p.inlineExports(imp.Desc.Kind, idx)+" (import "+from+")"+desc+")")
			continue
		}
		p.line(1, "(import "+from+" ("+kw+" "+p.defName(space, idx)+desc+"))")
	}
	return nil
}

// typeUse renders "(type x)" followed by the signature of function fn.
func (p *printer) typeUse(fn, typeIdx uint32) (string, error) {
	ft := p.m.TypeAt(typeIdx)
	if ft == nil {
		return "", fmt.Errorf("type index %d out of range", typeIdx)
	}
	ref := p.ref(wasm.Ref{Site: wasm.SiteFuncType, Owner: fn}, wasm.SpaceType, typeIdx)
	return " (type " + ref + ")" + p.signature(*ft, int64(fn)), nil
}

// signature renders params and results with a leading space. Params of
// function fn carry their local names; fn is negative for type definitions.
func (p *printer) signature(ft wasm.FuncType, fn int64) string {
	var b strings.Builder
	p.valueDecls(&b, "param", ft.Params, fn, 0)
	if len(ft.Results) > 0 {
		b.WriteString(" (result")
		for _, vt := range ft.Results {
			b.WriteByte(' ')
			b.WriteString(vt.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// valueDecls writes param or local declarations starting at local index
// first. Named entries are written one per clause, unnamed runs grouped.
func (p *printer) valueDecls(b *strings.Builder, kw string, types []wasm.ValType, fn int64, first uint32) {
	grouped := false
	for i, vt := range types {
		var name string
		var named bool
		if fn >= 0 {
			name, named = p.syms.local(uint32(fn), first+uint32(i))
		}
		if named {
			if grouped {
				b.WriteByte(')')
				grouped = false
			}
			b.WriteString(" (" + kw + " $" + name + " " + vt.String() + ")")
			continue
		}
		if !grouped {
			b.WriteString(" (" + kw)
			grouped = true
		}
		b.WriteByte(' ')
		b.WriteString(vt.String())
	}
	if grouped {
		b.WriteByte(')')
	}
}

func (p *printer) funcs() error {
	if len(p.m.Code) != len(p.m.Funcs) {
		return fmt.Errorf("function and code counts differ: %d != %d", len(p.m.Funcs), len(p.m.Code))
	}
	imported := uint32(p.m.NumImportedFuncs())
	for i, typeIdx := range p.m.Funcs {
		fn := imported + uint32(i)
		if err := p.function(fn, typeIdx, &p.m.Code[i]); err != nil {
			return fmt.Errorf("function %d: %w", fn, err)
		}
	}
	return nil
}

func (p *printer) function(fn, typeIdx uint32, body *wasm.FuncBody) error {
	use, err := p.typeUse(fn, typeIdx)
	if err != nil {
		return err
	}
	p.line(1, "(func "+p.defName(wasm.SpaceFunc, fn)+p.inlineExports(wasm.KindFunc, fn)+use)

	ft := p.m.TypeAt(typeIdx)
	var locals []wasm.ValType
	for _, l := range body.Locals {
		for i := uint32(0); i < l.Count; i++ {
			locals = append(locals, l.ValType)
		}
	}
	if len(locals) > 0 {
		var b strings.Builder
		p.valueDecls(&b, "local", locals, int64(fn), uint32(len(ft.Params)))
		p.line(2, strings.TrimPrefix(b.String(), " "))
	}

	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return err
	}
	if n := len(instrs); n == 0 || instrs[n-1].Opcode != wasm.OpEnd {
		return fmt.Errorf("body does not end with end")
	}
	instrs = instrs[:len(instrs)-1]

	fc := &funcCtx{fn: fn, results: len(ft.Results)}
	if p.opts.FoldExprs {
		err = p.foldedBody(instrs, fc)
	} else {
		err = p.flatBody(instrs, fc)
	}
	if err != nil {
		return err
	}
	p.add(")")
	return nil
}

func (p *printer) flatBody(instrs []wasm.Instruction, fc *funcCtx) error {
	for i := range instrs {
		in := &instrs[i]
		depth := 2 + len(fc.labels)
		switch in.Opcode {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			head, err := p.blockHead(in, fc)
			if err != nil {
				return err
			}
			if fc.top().name == "" {
				head += "  ;; label = @" + strconv.Itoa(len(fc.labels))
			}
			p.line(depth, head)
		case wasm.OpElse:
			if len(fc.labels) == 0 || fc.top().op != wasm.OpIf {
				return fmt.Errorf("else outside if at offset %d", in.Offset)
			}
			p.line(depth-1, "else")
		case wasm.OpEnd:
			if len(fc.labels) == 0 {
				return fmt.Errorf("unbalanced end at offset %d", in.Offset)
			}
			fc.pop()
			p.line(depth-1, "end")
		default:
			text, err := p.instr(in, wasm.SiteCode, fc.fn, uint32(in.Offset), fc)
			if err != nil {
				return err
			}
			p.line(depth, text)
		}
	}
	if len(fc.labels) != 0 {
		return fmt.Errorf("unterminated block")
	}
	return nil
}

func (p *printer) elements() error {
	for i := range p.m.Elements {
		seg := &p.m.Elements[i]
		owner := uint32(i)
		var b strings.Builder
		b.WriteString("(elem ")
		b.WriteString(p.defName(wasm.SpaceElem, owner))
		switch seg.Mode {
		case wasm.SegmentDeclarative:
			b.WriteString(" declare")
		case wasm.SegmentActive:
			tableRef := wasm.Ref{Site: wasm.SiteElemTable, Owner: owner}
			if seg.TableIdx != 0 || p.names.IsBound(tableRef) {
				b.WriteString(" (table " + p.ref(tableRef, wasm.SpaceTable, seg.TableIdx) + ")")
			}
			off, err := p.offsetExpr(seg.Offset, wasm.SiteElemOffset, owner)
			if err != nil {
				return fmt.Errorf("element segment %d: %w", i, err)
			}
			b.WriteString(" " + off)
		}

		if seg.UsesExprs() {
			b.WriteString(" " + seg.Type.String())
			for j, expr := range seg.Exprs {
				item, err := p.constExpr(expr, wasm.SiteElemExpr, owner, j, true)
				if err != nil {
					return fmt.Errorf("element segment %d: %w", i, err)
				}
				b.WriteString(" " + item)
			}
		} else {
			b.WriteString(" func")
			for j, f := range seg.FuncIdxs {
				b.WriteString(" " + p.ref(wasm.Ref{Site: wasm.SiteElem, Owner: owner, Pos: uint32(j)}, wasm.SpaceFunc, f))
			}
		}
		b.WriteByte(')')
		p.line(1, b.String())
	}
	return nil
}

func (p *printer) data() error {
	for i := range p.m.Data {
		seg := &p.m.Data[i]
		owner := uint32(i)
		var b strings.Builder
		b.WriteString("(data ")
		b.WriteString(p.defName(wasm.SpaceData, owner))
		if seg.Mode == wasm.SegmentActive {
			memRef := wasm.Ref{Site: wasm.SiteDataMemory, Owner: owner}
			if seg.MemIdx != 0 || p.names.IsBound(memRef) {
				b.WriteString(" (memory " + p.ref(memRef, wasm.SpaceMemory, seg.MemIdx) + ")")
			}
			off, err := p.offsetExpr(seg.Offset, wasm.SiteDataOffset, owner)
			if err != nil {
				return fmt.Errorf("data segment %d: %w", i, err)
			}
			b.WriteString(" " + off)
		}
		b.WriteString(" " + quote(seg.Init) + ")")
		p.line(1, b.String())
	}
	return nil
}

// offsetExpr renders a segment offset: a single folded instruction, or an
// (offset ...) clause for longer expressions.
func (p *printer) offsetExpr(expr []byte, site wasm.Site, owner uint32) (string, error) {
	texts, err := p.constTexts(expr, site, owner, -1)
	if err != nil {
		return "", err
	}
	if len(texts) == 1 {
		return "(" + texts[0] + ")", nil
	}
	return "(offset " + strings.Join(texts, " ") + ")", nil
}

// constExpr renders a constant expression as folded instructions. Element
// items with more than one instruction use an (item ...) clause.
func (p *printer) constExpr(expr []byte, site wasm.Site, owner uint32, entry int, item bool) (string, error) {
	texts, err := p.constTexts(expr, site, owner, entry)
	if err != nil {
		return "", err
	}
	if item && len(texts) != 1 {
		return "(item " + strings.Join(texts, " ") + ")", nil
	}
	for i, t := range texts {
		texts[i] = "(" + t + ")"
	}
	return strings.Join(texts, " "), nil
}

func (p *printer) constTexts(expr []byte, site wasm.Site, owner uint32, entry int) ([]string, error) {
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return nil, err
	}
	if n := len(instrs); n == 0 || instrs[n-1].Opcode != wasm.OpEnd {
		return nil, fmt.Errorf("constant expression does not end with end")
	}
	texts := make([]string, 0, len(instrs)-1)
	for i := range instrs[:len(instrs)-1] {
		in := &instrs[i]
		pos := uint32(in.Offset)
		if entry >= 0 {
			pos = uint32(entry)
		}
		text, err := p.instr(in, site, owner, pos, nil)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func externKind(kind byte) (string, wasm.Space, bool) {
	switch kind {
	case wasm.KindFunc:
		return "func", wasm.SpaceFunc, true
	case wasm.KindTable:
		return "table", wasm.SpaceTable, true
	case wasm.KindMemory:
		return "memory", wasm.SpaceMemory, true
	case wasm.KindGlobal:
		return "global", wasm.SpaceGlobal, true
	}
	return "", 0, false
}

func limits(l wasm.Limits) string {
	s := strconv.FormatUint(uint64(l.Min), 10)
	if l.Max != nil {
		s += " " + strconv.FormatUint(uint64(*l.Max), 10)
	}
	return s
}

func tableType(tt wasm.TableType) string {
	return limits(tt.Limits) + " " + tt.ElemType.String()
}

func globalType(gt wasm.GlobalType) string {
	if gt.Mutable {
		return "(mut " + gt.ValType.String() + ")"
	}
	return gt.ValType.String()
}
