package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-wat/wasm"
)

// label is an open block while a body is printed.
type label struct {
	name    string
	ordinal uint32
	op      byte
	arity   int // values a branch to this label carries
}

// funcCtx tracks the open blocks of the function being printed.
type funcCtx struct {
	fn      uint32
	results int
	labels  []label
	next    uint32
}

func (fc *funcCtx) top() *label {
	return &fc.labels[len(fc.labels)-1]
}

func (fc *funcCtx) pop() {
	fc.labels = fc.labels[:len(fc.labels)-1]
}

// labelArity returns the branch arity of the label at depth. Depths past
// the open blocks target the function itself.
func (fc *funcCtx) labelArity(depth uint32) int {
	if int(depth) < len(fc.labels) {
		return fc.labels[len(fc.labels)-1-int(depth)].arity
	}
	return fc.results
}

// blockHead renders a block, loop or if and opens its label.
func (p *printer) blockHead(in *wasm.Instruction, fc *funcCtx) (string, error) {
	imm, ok := in.Imm.(wasm.BlockImm)
	if !ok {
		return "", fmt.Errorf("malformed block at offset %d", in.Offset)
	}
	params, results, err := p.blockArity(imm)
	if err != nil {
		return "", fmt.Errorf("offset %d: %w", in.Offset, err)
	}

	l := label{ordinal: fc.next, op: in.Opcode, arity: results}
	if in.Opcode == wasm.OpLoop {
		l.arity = params
	}
	fc.next++
	l.name, _ = p.syms.label(fc.fn, l.ordinal)
	fc.labels = append(fc.labels, l)

	var b strings.Builder
	b.WriteString(in.Info().Name)
	if l.name != "" {
		b.WriteString(" $" + l.name)
	}
	switch {
	case imm.Type == wasm.BlockTypeVoid:
	case imm.Type < 0:
		b.WriteString(" (result " + wasm.ValType(imm.Type+0x80).String() + ")")
	default:
		r := wasm.Ref{Site: wasm.SiteCode, Owner: fc.fn, Pos: uint32(in.Offset)}
		b.WriteString(" (type " + p.ref(r, wasm.SpaceType, uint32(imm.Type)) + ")")
	}
	return b.String(), nil
}

func (p *printer) blockArity(imm wasm.BlockImm) (params, results int, err error) {
	switch {
	case imm.Type == wasm.BlockTypeVoid:
		return 0, 0, nil
	case imm.Type < 0:
		return 0, 1, nil
	}
	ft := p.m.TypeAt(uint32(imm.Type))
	if ft == nil {
		return 0, 0, fmt.Errorf("block type index %d out of range", imm.Type)
	}
	return len(ft.Params), len(ft.Results), nil
}

// instr renders a non-block instruction with its immediates. Operands are
// looked up as Ref{site, slot, owner, pos}. fc is nil outside functions.
func (p *printer) instr(in *wasm.Instruction, site wasm.Site, owner, pos uint32, fc *funcCtx) (string, error) {
	info := in.Info()
	if info == nil {
		return "", fmt.Errorf("unknown opcode 0x%02x at offset %d", in.Opcode, in.Offset)
	}
	at := func(slot uint8) wasm.Ref {
		return wasm.Ref{Site: site, Slot: slot, Owner: owner, Pos: pos}
	}

	var b strings.Builder
	b.WriteString(info.Name)
	arg := func(s string) {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	// optional writes an index that may be omitted when it is 0.
	optional := func(slot uint8, space wasm.Space, idx uint32) {
		if idx != 0 || p.names.IsBound(at(slot)) {
			arg(p.ref(at(slot), space, idx))
		}
	}

	switch imm := in.Imm.(type) {
	case nil:
	case wasm.BranchImm:
		arg(p.labelRef(fc, at(0), imm.LabelIdx))
	case wasm.BrTableImm:
		for _, l := range imm.Labels {
			arg(p.labelRef(fc, at(0), l))
		}
		arg(p.labelRef(fc, at(0), imm.Default))
	case wasm.CallImm:
		arg(p.ref(at(0), wasm.SpaceFunc, imm.FuncIdx))
	case wasm.CallIndirectImm:
		optional(1, wasm.SpaceTable, imm.TableIdx)
		arg("(type " + p.ref(at(0), wasm.SpaceType, imm.TypeIdx) + ")")
	case wasm.LocalImm:
		arg(p.localRef(fc, at(0), imm.LocalIdx))
	case wasm.GlobalImm:
		arg(p.ref(at(0), wasm.SpaceGlobal, imm.GlobalIdx))
	case wasm.TableImm:
		arg(p.ref(at(0), wasm.SpaceTable, imm.TableIdx))
	case wasm.MemoryImm:
		optional(0, wasm.SpaceMemory, imm.MemIdx)
		if imm.Offset != 0 {
			arg("offset=" + strconv.FormatUint(imm.Offset, 10))
		}
		if imm.Align != uint32(info.Align) {
			arg("align=" + strconv.FormatUint(1<<imm.Align, 10))
		}
	case wasm.MemoryIdxImm:
		optional(0, wasm.SpaceMemory, imm.MemIdx)
	case wasm.I32Imm:
		arg(strconv.FormatInt(int64(imm.Value), 10))
	case wasm.I64Imm:
		arg(strconv.FormatInt(imm.Value, 10))
	case wasm.F32Imm:
		arg(formatF32(imm.Bits))
	case wasm.F64Imm:
		arg(formatF64(imm.Bits))
	case wasm.RefNullImm:
		switch imm.Type {
		case wasm.ValFuncRef:
			arg("func")
		case wasm.ValExtern:
			arg("extern")
		default:
			return "", fmt.Errorf("ref.null: unsupported heap type 0x%02x", byte(imm.Type))
		}
	case wasm.SelectTypeImm:
		if len(imm.Types) > 0 {
			types := make([]string, len(imm.Types))
			for i, vt := range imm.Types {
				types[i] = vt.String()
			}
			arg("(result " + strings.Join(types, " ") + ")")
		}
	case wasm.MiscImm:
		ops := imm.Operands
		spaces := wasm.ImmSpaces(info.Imm)
		if len(ops) < len(spaces) {
			return "", fmt.Errorf("%s: missing operands at offset %d", info.Name, in.Offset)
		}
		switch info.Imm {
		case wasm.ImmMemoryInit, wasm.ImmTableInit:
			// Written as "x? y" with the optional memory or table first.
			optional(1, spaces[1], ops[1])
			arg(p.ref(at(0), spaces[0], ops[0]))
		case wasm.ImmMemoryCopy, wasm.ImmTableCopy:
			if ops[0] != 0 || ops[1] != 0 || p.names.IsBound(at(0)) || p.names.IsBound(at(1)) {
				arg(p.ref(at(0), spaces[0], ops[0]))
				arg(p.ref(at(1), spaces[1], ops[1]))
			}
		case wasm.ImmMemory:
			optional(0, wasm.SpaceMemory, ops[0])
		default:
			for slot, space := range spaces {
				arg(p.ref(at(uint8(slot)), space, ops[slot]))
			}
		}
	default:
		return "", fmt.Errorf("%s: unexpected immediate %T", info.Name, in.Imm)
	}
	return b.String(), nil
}

// labelRef renders a branch target. A bound target prints its name unless
// an inner block shadows it.
func (p *printer) labelRef(fc *funcCtx, r wasm.Ref, depth uint32) string {
	num := strconv.FormatUint(uint64(depth), 10)
	if fc == nil || int(depth) >= len(fc.labels) || !p.names.IsBound(r) {
		return num
	}
	target := len(fc.labels) - 1 - int(depth)
	name := fc.labels[target].name
	if name == "" {
		return num
	}
	for _, inner := range fc.labels[target+1:] {
		if inner.name == name {
			return num
		}
	}
	return "$" + name
}

func (p *printer) localRef(fc *funcCtx, r wasm.Ref, idx uint32) string {
	if fc != nil && p.names.IsBound(r) {
		if name, ok := p.syms.local(fc.fn, idx); ok {
			return "$" + name
		}
	}
	return strconv.FormatUint(uint64(idx), 10)
}

// arity returns the operand stack effect of a non-block instruction.
// Pushes is -1 when unknown.
func (p *printer) arity(in *wasm.Instruction, fc *funcCtx) (pops, pushes int) {
	info := in.Info()
	if !info.Variable() {
		return int(info.Pops), int(info.Pushes)
	}
	switch imm := in.Imm.(type) {
	case wasm.CallImm:
		ft := p.m.GetFuncType(imm.FuncIdx)
		if ft == nil {
			return 0, -1
		}
		if in.Opcode == wasm.OpReturnCall {
			return len(ft.Params), 0
		}
		return len(ft.Params), len(ft.Results)
	case wasm.CallIndirectImm:
		ft := p.m.TypeAt(imm.TypeIdx)
		if ft == nil {
			return 0, -1
		}
		if in.Opcode == wasm.OpReturnCallIndirect {
			return len(ft.Params) + 1, 0
		}
		return len(ft.Params) + 1, len(ft.Results)
	case wasm.BranchImm:
		n := fc.labelArity(imm.LabelIdx)
		if in.Opcode == wasm.OpBrIf {
			return n + 1, n
		}
		return n, 0
	case wasm.BrTableImm:
		return fc.labelArity(imm.Default) + 1, 0
	}
	if in.Opcode == wasm.OpReturn {
		return fc.results, 0
	}
	return 0, -1
}
