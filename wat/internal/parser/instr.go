package parser

import (
	"math"
	"math/bits"
	"strings"

	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/opcode"
	"github.com/wippyai/wasm-wat/wat/internal/token"
)

// label is an open block. Ordinal counts block, loop and if instructions
// in the order their opcodes appear in the function.
type label struct {
	name    string
	ordinal uint32
	op      byte
	folded  bool
	sawElse bool
}

// bind marks operand slot of instruction instr as written by name.
type bind struct {
	instr int
	slot  uint8
}

// body accumulates the instructions of a function or constant expression.
type body struct {
	locals map[string]uint32
	labels []label
	instrs []wasm.Instruction
	binds  []bind
	fn     int64 // -1 outside functions
	next   uint32
}

func (b *body) emit(in wasm.Instruction, slots ...uint8) {
	for _, s := range slots {
		b.binds = append(b.binds, bind{instr: len(b.instrs), slot: s})
	}
	b.instrs = append(b.instrs, in)
}

func (b *body) top() *label {
	if len(b.labels) == 0 {
		return nil
	}
	return &b.labels[len(b.labels)-1]
}

func (p *Parser) openBlock(b *body, name string, op byte, folded bool) {
	ordinal := b.next
	b.next++
	if name != "" && b.fn >= 0 {
		p.names().SetIn(wasm.SpaceLabel, uint32(b.fn), ordinal, name)
	}
	b.labels = append(b.labels, label{name: name, ordinal: ordinal, op: op, folded: folded})
}

func (b *body) closeBlock() {
	b.labels = b.labels[:len(b.labels)-1]
}

// parseInstrs parses plain and folded instructions up to, but not
// including, the closing paren of the enclosing list.
func (p *Parser) parseInstrs(b *body) error {
	for {
		t := p.peek()
		if t == nil {
			return p.errEOF()
		}
		var err error
		switch t.Type {
		case token.RParen:
			return nil
		case token.LParen:
			err = p.parseFolded(b)
		case token.Keyword:
			err = p.parsePlain(b)
		default:
			err = p.errAt(t, "unexpected %v %q, expected an instruction", t.Type, t.Value)
		}
		if err != nil {
			return err
		}
	}
}

var blockOps = map[string]byte{"block": wasm.OpBlock, "loop": wasm.OpLoop, "if": wasm.OpIf}

func (p *Parser) parsePlain(b *body) error {
	t := p.next()
	if op, ok := blockOps[t.Value]; ok {
		name, _ := p.optID()
		bt, bound, err := p.blockType()
		if err != nil {
			return err
		}
		p.openBlock(b, name, op, false)
		b.emit(wasm.Instruction{Opcode: op, Imm: bt}, slotIf(0, bound)...)
		return nil
	}

	switch t.Value {
	case "else":
		top := b.top()
		if top == nil || top.folded || top.op != wasm.OpIf || top.sawElse {
			return p.errAt(t, "unexpected else")
		}
		if err := p.matchLabel(top); err != nil {
			return err
		}
		top.sawElse = true
		b.emit(wasm.Instruction{Opcode: wasm.OpElse})
		return nil
	case "end":
		top := b.top()
		if top == nil || top.folded {
			return p.errAt(t, "unexpected end")
		}
		if err := p.matchLabel(top); err != nil {
			return err
		}
		b.closeBlock()
		b.emit(wasm.Instruction{Opcode: wasm.OpEnd})
		return nil
	}

	in, slots, err := p.instr(t, b)
	if err != nil {
		return err
	}
	b.emit(in, slots...)
	return nil
}

// matchLabel consumes the optional $id after else or end, which must name
// the block being continued.
func (p *Parser) matchLabel(l *label) error {
	name, t := p.optID()
	if t != nil && name != l.name {
		return p.errAt(t, "mismatching label %q", t.Value)
	}
	return nil
}

func (p *Parser) parseFolded(b *body) error {
	p.next() // '('
	t, err := p.expect(token.Keyword)
	if err != nil {
		return err
	}

	switch t.Value {
	case "block", "loop":
		op := blockOps[t.Value]
		name, _ := p.optID()
		bt, bound, err := p.blockType()
		if err != nil {
			return err
		}
		p.openBlock(b, name, op, true)
		b.emit(wasm.Instruction{Opcode: op, Imm: bt}, slotIf(0, bound)...)
		if err := p.parseInstrs(b); err != nil {
			return err
		}
		if len(b.labels) == 0 || !b.top().folded {
			return p.errAt(p.peek(), "unexpected ')', expected end")
		}
		b.closeBlock()
		b.emit(wasm.Instruction{Opcode: wasm.OpEnd})
		return p.closeParen()

	case "if":
		name, _ := p.optID()
		bt, bound, err := p.blockType()
		if err != nil {
			return err
		}
		for !p.atClause("then") {
			c := p.peek()
			if c == nil {
				return p.errEOF()
			}
			if c.Type != token.LParen {
				return p.errAt(c, "unexpected token %q, expected (then ...)", c.Value)
			}
			if err := p.parseFolded(b); err != nil {
				return err
			}
		}
		p.openBlock(b, name, wasm.OpIf, true)
		b.emit(wasm.Instruction{Opcode: wasm.OpIf, Imm: bt}, slotIf(0, bound)...)
		p.pos += 2
		if err := p.foldedArm(b); err != nil {
			return err
		}
		if p.atClause("else") {
			p.pos += 2
			b.emit(wasm.Instruction{Opcode: wasm.OpElse})
			if err := p.foldedArm(b); err != nil {
				return err
			}
		}
		b.closeBlock()
		b.emit(wasm.Instruction{Opcode: wasm.OpEnd})
		return p.closeParen()
	}

	in, slots, err := p.instr(t, b)
	if err != nil {
		return err
	}
	for {
		c := p.peek()
		if c == nil {
			return p.errEOF()
		}
		if c.Type == token.RParen {
			p.next()
			break
		}
		if c.Type != token.LParen {
			return p.errAt(c, "unexpected token %q, expected folded operand", c.Value)
		}
		if err := p.parseFolded(b); err != nil {
			return err
		}
	}
	b.emit(in, slots...)
	return nil
}

// foldedArm parses the body of a (then ...) or (else ...) clause.
func (p *Parser) foldedArm(b *body) error {
	depth := len(b.labels)
	if err := p.parseInstrs(b); err != nil {
		return err
	}
	if len(b.labels) != depth {
		return p.errAt(p.peek(), "unexpected ')', expected end")
	}
	return p.closeParen()
}

// blockType parses the type of a block, loop or if. A single result with
// no params uses the short value type form; anything else a type index.
func (p *Parser) blockType() (wasm.BlockImm, bool, error) {
	tu, err := p.parseTypeUse()
	if err != nil {
		return wasm.BlockImm{}, false, err
	}
	if !tu.explicit && len(tu.ft.Params) == 0 && len(tu.ft.Results) <= 1 {
		if len(tu.ft.Results) == 0 {
			return wasm.BlockImm{Type: wasm.BlockTypeVoid}, false, nil
		}
		return wasm.BlockImm{Type: int32(tu.ft.Results[0]) - 0x80}, false, nil
	}
	idx := p.resolveTypeUse(&tu)
	return wasm.BlockImm{Type: int32(idx)}, tu.bound, nil
}

func slotIf(slot uint8, ok bool) []uint8 {
	if ok {
		return []uint8{slot}
	}
	return nil
}

// instr parses the immediates of a non-block instruction whose mnemonic t
// has been consumed.
func (p *Parser) instr(t *token.Token, b *body) (wasm.Instruction, []uint8, error) {
	info, ok := opcode.Lookup(t.Value)
	if !ok {
		if feature, ok := opcode.Unsupported(t.Value); ok {
			return wasm.Instruction{}, nil, p.unsupported(t, feature)
		}
		return wasm.Instruction{}, nil, p.errAt(t, "unexpected token %q, expected an instruction", t.Value)
	}

	in := wasm.Instruction{Opcode: info.Op}
	var slots []uint8
	mark := func(slot uint8, sym bool) {
		if sym {
			slots = append(slots, slot)
		}
	}
	var operands []uint32
	var err error

	switch info.Imm {
	case wasm.ImmNone:
		if info.Op == wasm.OpSelect && p.atClause("result") {
			var types []wasm.ValType
			for p.atClause("result") {
				p.pos += 2
				vts, err := p.valTypeList()
				if err != nil {
					return in, nil, err
				}
				types = append(types, vts...)
			}
			in.Opcode = wasm.OpSelectType
			in.Imm = wasm.SelectTypeImm{Types: types}
		}

	case wasm.ImmLabel:
		var depth uint32
		var sym bool
		depth, sym, err = p.labelIndex(b)
		in.Imm = wasm.BranchImm{LabelIdx: depth}
		mark(0, sym)

	case wasm.ImmBrTable:
		var labels []uint32
		anySym := false
		for p.atIndex() {
			depth, sym, err := p.labelIndex(b)
			if err != nil {
				return in, nil, err
			}
			labels = append(labels, depth)
			anySym = anySym || sym
		}
		if len(labels) == 0 {
			return in, nil, p.errAt(t, "br_table requires at least one label")
		}
		in.Imm = wasm.BrTableImm{Labels: labels[:len(labels)-1], Default: labels[len(labels)-1]}
		mark(0, anySym)

	case wasm.ImmFunc:
		var idx uint32
		var sym bool
		idx, sym, err = p.index(wasm.SpaceFunc)
		in.Imm = wasm.CallImm{FuncIdx: idx}
		mark(0, sym)

	case wasm.ImmCallIndirect:
		var table uint32
		if p.atIndex() {
			var sym bool
			if table, sym, err = p.index(wasm.SpaceTable); err != nil {
				return in, nil, err
			}
			mark(1, sym)
		}
		tu, err := p.parseTypeUse()
		if err != nil {
			return in, nil, err
		}
		in.Imm = wasm.CallIndirectImm{TypeIdx: p.resolveTypeUse(&tu), TableIdx: table}
		mark(0, tu.bound)

	case wasm.ImmLocal:
		var idx uint32
		var sym bool
		idx, sym, err = p.localIndex(b)
		in.Imm = wasm.LocalImm{LocalIdx: idx}
		mark(0, sym)

	case wasm.ImmGlobal:
		var idx uint32
		var sym bool
		idx, sym, err = p.index(wasm.SpaceGlobal)
		in.Imm = wasm.GlobalImm{GlobalIdx: idx}
		mark(0, sym)

	case wasm.ImmTable:
		var idx uint32
		if p.atIndex() {
			var sym bool
			idx, sym, err = p.index(wasm.SpaceTable)
			mark(0, sym)
		}
		operands = []uint32{idx}
		in.Imm = wasm.TableImm{TableIdx: idx}

	case wasm.ImmMemArg:
		var imm wasm.MemoryImm
		var sym bool
		imm, sym, err = p.memArg(info)
		in.Imm = imm
		mark(0, sym)

	case wasm.ImmMemory:
		var idx uint32
		if p.atIndex() {
			var sym bool
			idx, sym, err = p.index(wasm.SpaceMemory)
			mark(0, sym)
		}
		operands = []uint32{idx}
		in.Imm = wasm.MemoryIdxImm{MemIdx: idx}

	case wasm.ImmI32, wasm.ImmI64:
		bitSize := 32
		if info.Imm == wasm.ImmI64 {
			bitSize = 64
		}
		lit, err := p.expect(token.Number)
		if err != nil {
			return in, nil, err
		}
		v, perr := parseInt(lit.Value, bitSize)
		if perr != nil {
			return in, nil, p.errAt(lit, "%v: %s", perr, lit.Value)
		}
		if bitSize == 32 {
			in.Imm = wasm.I32Imm{Value: int32(uint32(v))}
		} else {
			in.Imm = wasm.I64Imm{Value: int64(v)}
		}

	case wasm.ImmF32, wasm.ImmF64:
		bitSize := 32
		if info.Imm == wasm.ImmF64 {
			bitSize = 64
		}
		lit, err := p.expect(token.Number)
		if err != nil {
			return in, nil, err
		}
		v, perr := parseFloat(lit.Value, bitSize)
		if perr != nil {
			return in, nil, p.errAt(lit, "%v: %s", perr, lit.Value)
		}
		if bitSize == 32 {
			in.Imm = wasm.F32Imm{Bits: uint32(v)}
		} else {
			in.Imm = wasm.F64Imm{Bits: v}
		}

	case wasm.ImmRefNull:
		ht, err := p.expect(token.Keyword)
		if err != nil {
			return in, nil, err
		}
		switch ht.Value {
		case "func", "funcref":
			in.Imm = wasm.RefNullImm{Type: wasm.ValFuncRef}
		case "extern", "externref":
			in.Imm = wasm.RefNullImm{Type: wasm.ValExtern}
		default:
			return in, nil, p.errAt(ht, "unexpected heap type %q", ht.Value)
		}

	case wasm.ImmMemoryInit:
		p.usesData = true
		var mem, data uint32
		var memSym, dataSym bool
		if p.atIndex() && isIndex(p.peekAt(1)) {
			if mem, memSym, err = p.index(wasm.SpaceMemory); err != nil {
				return in, nil, err
			}
		}
		data, dataSym, err = p.index(wasm.SpaceData)
		operands = []uint32{data, mem}
		mark(0, dataSym)
		mark(1, memSym)

	case wasm.ImmData:
		p.usesData = true
		var data uint32
		var sym bool
		data, sym, err = p.index(wasm.SpaceData)
		operands = []uint32{data}
		mark(0, sym)

	case wasm.ImmMemoryCopy:
		operands, err = p.indexPair(wasm.SpaceMemory, mark)

	case wasm.ImmTableInit:
		var table, elem uint32
		var tableSym, elemSym bool
		if p.atIndex() && isIndex(p.peekAt(1)) {
			if table, tableSym, err = p.index(wasm.SpaceTable); err != nil {
				return in, nil, err
			}
		}
		elem, elemSym, err = p.index(wasm.SpaceElem)
		operands = []uint32{elem, table}
		mark(0, elemSym)
		mark(1, tableSym)

	case wasm.ImmElem:
		var elem uint32
		var sym bool
		elem, sym, err = p.index(wasm.SpaceElem)
		operands = []uint32{elem}
		mark(0, sym)

	case wasm.ImmTableCopy:
		operands, err = p.indexPair(wasm.SpaceTable, mark)

	default:
		return in, nil, p.errAt(t, "unexpected instruction %q", t.Value)
	}
	if err != nil {
		return in, nil, err
	}

	if info.Prefixed {
		in.Imm = wasm.MiscImm{SubOpcode: info.Sub, Operands: operands}
	}
	return in, slots, nil
}

func isIndex(t *token.Token) bool {
	return t != nil && (t.Type == token.ID || t.Type == token.Number)
}

// indexPair parses an optional "dst src" pair; both default to 0.
func (p *Parser) indexPair(space wasm.Space, mark func(uint8, bool)) ([]uint32, error) {
	if !p.atIndex() {
		return []uint32{0, 0}, nil
	}
	dst, dstSym, err := p.index(space)
	if err != nil {
		return nil, err
	}
	src, srcSym, err := p.index(space)
	if err != nil {
		return nil, err
	}
	mark(0, dstSym)
	mark(1, srcSym)
	return []uint32{dst, src}, nil
}

func (p *Parser) labelIndex(b *body) (uint32, bool, error) {
	t := p.next()
	if t == nil {
		return 0, false, p.errEOF()
	}
	switch t.Type {
	case token.ID:
		name := t.Value[1:]
		for i := len(b.labels) - 1; i >= 0; i-- {
			if b.labels[i].name == name {
				return uint32(len(b.labels) - 1 - i), true, nil
			}
		}
		p.report(t, errors.KindUnresolved, "undefined label variable %q", t.Value)
		return 0, false, nil
	case token.Number:
		v, err := parseNat(t.Value, 32)
		if err != nil {
			return 0, false, p.errAt(t, "%v: %s", err, t.Value)
		}
		return uint32(v), false, nil
	}
	return 0, false, p.errAt(t, "unexpected token %q, expected label", t.Value)
}

func (p *Parser) localIndex(b *body) (uint32, bool, error) {
	t := p.next()
	if t == nil {
		return 0, false, p.errEOF()
	}
	if b.fn < 0 {
		return 0, false, p.errAt(t, "local variable outside of a function")
	}
	switch t.Type {
	case token.ID:
		idx, ok := b.locals[t.Value[1:]]
		if !ok {
			p.report(t, errors.KindUnresolved, "undefined local variable %q", t.Value)
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
	return 0, false, p.errAt(t, "unexpected token %q, expected local", t.Value)
}

// memArg parses "memidx? offset=N? align=N?". Align is stored as log2 and
// defaults to the natural alignment.
func (p *Parser) memArg(info *wasm.OpInfo) (wasm.MemoryImm, bool, error) {
	imm := wasm.MemoryImm{Align: uint32(info.Align)}
	var sym bool
	if p.atIndex() {
		var err error
		if imm.MemIdx, sym, err = p.index(wasm.SpaceMemory); err != nil {
			return imm, false, err
		}
	}
	if t := p.peek(); t != nil && t.Type == token.Keyword && strings.HasPrefix(t.Value, "offset=") {
		p.next()
		v, err := parseNat(t.Value[len("offset="):], 64)
		if err != nil {
			return imm, false, p.errAt(t, "%v: %s", err, t.Value)
		}
		if v > math.MaxUint32 {
			return imm, false, p.unsupported(t, "memory64 offset")
		}
		imm.Offset = v
	}
	if t := p.peek(); t != nil && t.Type == token.Keyword && strings.HasPrefix(t.Value, "align=") {
		p.next()
		v, err := parseNat(t.Value[len("align="):], 32)
		if err != nil {
			return imm, false, p.errAt(t, "%v: %s", err, t.Value)
		}
		if v == 0 || v&(v-1) != 0 {
			return imm, false, p.errAt(t, "alignment must be a power of two")
		}
		imm.Align = uint32(bits.TrailingZeros64(v))
	}
	return imm, sym, nil
}
