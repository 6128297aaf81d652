package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-wat/wasm/internal/binary"
)

// Instruction represents a decoded WebAssembly instruction.
type Instruction struct {
	Imm    any
	Offset int // byte offset of the opcode within the decoded code
	Opcode byte
}

// BlockImm holds the block type for block, loop and if.
type BlockImm struct {
	Type int32 // -64 void, negative value type, or a type index
}

// BranchImm holds the label index for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call, return_call and ref.func.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint64
	Align  uint32
	MemIdx uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the raw bits of an f32.const so NaN payloads survive.
type F32Imm struct {
	Bits uint32
}

// F64Imm holds the raw bits of an f64.const.
type F64Imm struct {
	Bits uint64
}

// RefNullImm holds the reference type of ref.null.
type RefNullImm struct {
	Type ValType
}

// SelectTypeImm holds the result types of a typed select.
type SelectTypeImm struct {
	Types []ValType
}

// MiscImm holds the sub-opcode and index operands of 0xFC instructions.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// Multi-memory memarg bit flag
const memArgMultiMemBit = 0x40

// UnsupportedError reports an instruction outside the supported feature set.
type UnsupportedError struct {
	What   string
	Offset int
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s", e.What)
}

// DecodeInstructions decodes a code sequence.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	return decodeInstructions(binary.NewReader(code), 0)
}

func decodeInstructions(r *binary.Reader, base int) ([]Instruction, error) {
	instrs := make([]Instruction, 0, r.Len()/2)
	for !r.EOF() {
		instr, err := decodeInstruction(r, base)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeInstruction(r *binary.Reader, base int) (Instruction, error) {
	start := r.Offset()
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	instr := Instruction{Opcode: op, Offset: start - base}

	var info *OpInfo
	if op == OpPrefixMisc {
		sub, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		var ok bool
		if info, ok = LookupMisc(sub); !ok {
			return Instruction{}, malformedAt(start, "unknown 0xFC sub-opcode 0x%02x", sub)
		}
		imm := MiscImm{SubOpcode: sub}
		for n := miscOperandCount(info.Imm); n > 0; n-- {
			v, err := r.ReadU32()
			if err != nil {
				return Instruction{}, err
			}
			imm.Operands = append(imm.Operands, v)
		}
		instr.Imm = imm
		return instr, nil
	}

	info, ok := LookupOpcode(op)
	if !ok {
		switch op {
		case OpPrefixSIMD:
			return Instruction{}, &UnsupportedError{What: "SIMD instruction", Offset: start}
		case OpPrefixAtomic:
			return Instruction{}, &UnsupportedError{What: "atomic instruction", Offset: start}
		case OpPrefixGC:
			return Instruction{}, &UnsupportedError{What: "GC instruction", Offset: start}
		case 0x06, 0x07, 0x08, 0x09, 0x0A, 0x18, 0x19, 0x1F:
			return Instruction{}, &UnsupportedError{What: "exception handling instruction", Offset: start}
		}
		return Instruction{}, malformedAt(start, "unknown opcode 0x%02x", op)
	}

	switch info.Imm {
	case ImmNone:
	case ImmBlock:
		bt, err := r.ReadS33()
		if err != nil {
			return Instruction{}, err
		}
		if bt < 0 && !blockValType(int32(bt)) {
			return Instruction{}, malformedAt(start, "invalid block type %d", bt)
		}
		instr.Imm = BlockImm{Type: int32(bt)}
	case ImmLabel:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BranchImm{LabelIdx: idx}
	case ImmBrTable:
		count, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		if int(count) > r.Len() {
			return Instruction{}, fmt.Errorf("br_table length %d exceeds code size", count)
		}
		labels := make([]uint32, count)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return Instruction{}, err
			}
		}
		def, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = BrTableImm{Labels: labels, Default: def}
	case ImmFunc:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallImm{FuncIdx: idx}
	case ImmCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}
	case ImmLocal:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = LocalImm{LocalIdx: idx}
	case ImmGlobal:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = GlobalImm{GlobalIdx: idx}
	case ImmTable:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = TableImm{TableIdx: idx}
	case ImmMemArg:
		imm, err := readMemArg(r)
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = imm
	case ImmMemory:
		idx, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = MemoryIdxImm{MemIdx: idx}
	case ImmI32:
		v, err := r.ReadS32()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = I32Imm{Value: v}
	case ImmI64:
		v, err := r.ReadS64()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = I64Imm{Value: v}
	case ImmF32:
		v, err := r.ReadU32LE()
		if err != nil {
			return Instruction{}, err
		}
		instr.Imm = F32Imm{Bits: v}
	case ImmF64:
		b, err := r.ReadBytes(8)
		if err != nil {
			return Instruction{}, err
		}
		var bits uint64
		for i := 7; i >= 0; i-- {
			bits = bits<<8 | uint64(b[i])
		}
		instr.Imm = F64Imm{Bits: bits}
	case ImmRefNull:
		t, err := r.ReadByte()
		if err != nil {
			return Instruction{}, err
		}
		if !ValType(t).IsRef() {
			return Instruction{}, malformedAt(start, "invalid reference type 0x%02x", t)
		}
		instr.Imm = RefNullImm{Type: ValType(t)}
	case ImmSelectTypes:
		count, err := r.ReadU32()
		if err != nil {
			return Instruction{}, err
		}
		if count != 1 {
			return Instruction{}, malformedAt(start, "invalid typed select arity %d", count)
		}
		t, err := r.ReadByte()
		if err != nil {
			return Instruction{}, err
		}
		if !ValType(t).Supported() {
			return Instruction{}, malformedAt(start, "invalid value type 0x%02x", t)
		}
		instr.Imm = SelectTypeImm{Types: []ValType{ValType(t)}}
	}
	return instr, nil
}

func blockValType(bt int32) bool {
	if bt == BlockTypeVoid {
		return true
	}
	return ValType(byte(bt & 0x7F)).Supported()
}

func miscOperandCount(kind ImmKind) int {
	switch kind {
	case ImmMemoryInit, ImmMemoryCopy, ImmTableInit, ImmTableCopy:
		return 2
	case ImmData, ImmElem, ImmMemory, ImmTable:
		return 1
	}
	return 0
}

// readMemArg reads a memarg with multi-memory support.
// If bit 6 of align is set, a separate memidx LEB128 follows.
func readMemArg(r *binary.Reader) (MemoryImm, error) {
	alignRaw, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}

	var memIdx uint32
	if alignRaw&memArgMultiMemBit != 0 {
		memIdx, err = r.ReadU32()
		if err != nil {
			return MemoryImm{}, err
		}
	}

	offset, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}

	return MemoryImm{
		Align:  alignRaw &^ memArgMultiMemBit,
		Offset: uint64(offset),
		MemIdx: memIdx,
	}, nil
}

// writeMemArg writes a memarg with multi-memory support.
func writeMemArg(w *binary.Writer, imm MemoryImm) {
	alignRaw := imm.Align
	if imm.MemIdx != 0 {
		alignRaw |= memArgMultiMemBit
	}
	w.WriteU32(alignRaw)
	if imm.MemIdx != 0 {
		w.WriteU32(imm.MemIdx)
	}
	w.WriteU64(imm.Offset)
}

// relocHook receives each relocatable immediate and its offset in the output.
type relocHook func(kind RelocType, index uint32, offset int)

// EncodeInstructionTo writes a single instruction.
func EncodeInstructionTo(w *binary.Writer, instr *Instruction) {
	encodeInstruction(w, instr, nil)
}

// EncodeInstructions encodes instructions to bytes and sets each Offset to
// the instruction's position in the output.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		instrs[i].Offset = w.Len()
		encodeInstruction(w, &instrs[i], nil)
	}
	return w.Bytes()
}

// encodeInstruction writes instr. When reloc is non-nil, function, type and
// global indices are written as padded LEBs and reported through reloc with
// their offset in w.
func encodeInstruction(w *binary.Writer, instr *Instruction, reloc relocHook) {
	w.Byte(instr.Opcode)

	index := func(kind RelocType, v uint32) {
		if reloc == nil {
			w.WriteU32(v)
			return
		}
		reloc(kind, v, w.Len())
		w.WriteU32Padded(v)
	}

	switch imm := instr.Imm.(type) {
	case nil:
	case BlockImm:
		w.WriteS32(imm.Type)
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		index(RelocFunctionIndexLEB, imm.FuncIdx)
	case CallIndirectImm:
		index(RelocTypeIndexLEB, imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		index(RelocGlobalIndexLEB, imm.GlobalIdx)
	case TableImm:
		w.WriteU32(imm.TableIdx)
	case MemoryImm:
		writeMemArg(w, imm)
	case MemoryIdxImm:
		w.WriteU32(imm.MemIdx)
	case I32Imm:
		w.WriteS32(imm.Value)
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteU32LE(imm.Bits)
	case F64Imm:
		for i := 0; i < 8; i++ {
			w.Byte(byte(imm.Bits >> (8 * i)))
		}
	case RefNullImm:
		w.Byte(byte(imm.Type))
	case SelectTypeImm:
		w.WriteU32(uint32(len(imm.Types)))
		for _, t := range imm.Types {
			w.Byte(byte(t))
		}
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, v := range imm.Operands {
			w.WriteU32(v)
		}
	}
}

// ConstExpr builds a constant expression (with trailing end) from instrs.
func ConstExpr(instrs ...Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i], nil)
	}
	w.Byte(OpEnd)
	return w.Bytes()
}
