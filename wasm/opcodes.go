package wasm

// ImmKind describes the immediate operands that follow an opcode.
type ImmKind uint8

const (
	ImmNone        ImmKind = iota
	ImmBlock               // block type
	ImmLabel               // label index
	ImmBrTable             // label vector and default
	ImmFunc                // function index
	ImmCallIndirect        // type index, table index
	ImmLocal               // local index
	ImmGlobal              // global index
	ImmTable               // table index
	ImmMemArg              // alignment, offset (and memory index)
	ImmMemory              // memory index
	ImmI32                 // i32 literal
	ImmI64                 // i64 literal
	ImmF32                 // f32 literal
	ImmF64                 // f64 literal
	ImmRefNull             // reference type
	ImmSelectTypes         // result type vector
	ImmMemoryInit          // data index, memory index
	ImmData                // data index
	ImmMemoryCopy          // destination memory, source memory
	ImmTableInit           // element index, table index
	ImmElem                // element index
	ImmTableCopy           // destination table, source table
)

// OpInfo describes one instruction.
type OpInfo struct {
	Name     string
	Sub      uint32 // sub-opcode when Prefixed
	Op       byte
	Prefixed bool
	Imm      ImmKind
	Align    uint8 // natural alignment (log2) for memory accesses

	// Pops and Pushes give the operand stack effect. Pops is -1 when the
	// effect depends on an immediate or on the enclosing block.
	Pops   int8
	Pushes int8
}

// Variable reports whether the stack effect depends on context.
func (o *OpInfo) Variable() bool {
	return o.Pops < 0
}

func plain(op byte, name string, pops, pushes int8) OpInfo {
	return OpInfo{Op: op, Name: name, Pops: pops, Pushes: pushes}
}

func withImm(op byte, name string, imm ImmKind, pops, pushes int8) OpInfo {
	return OpInfo{Op: op, Name: name, Imm: imm, Pops: pops, Pushes: pushes}
}

func load(op byte, name string, align uint8) OpInfo {
	return OpInfo{Op: op, Name: name, Imm: ImmMemArg, Align: align, Pops: 1, Pushes: 1}
}

func store(op byte, name string, align uint8) OpInfo {
	return OpInfo{Op: op, Name: name, Imm: ImmMemArg, Align: align, Pops: 2}
}

func misc(sub uint32, name string, imm ImmKind, pops, pushes int8) OpInfo {
	return OpInfo{Op: OpPrefixMisc, Prefixed: true, Sub: sub, Name: name, Imm: imm, Pops: pops, Pushes: pushes}
}

func unary(op byte, name string) OpInfo { return plain(op, name, 1, 1) }
func binaryOp(op byte, name string) OpInfo { return plain(op, name, 2, 1) }

var catalogue = []OpInfo{
	// Control
	plain(0x00, "unreachable", 0, 0),
	plain(0x01, "nop", 0, 0),
	withImm(0x02, "block", ImmBlock, -1, -1),
	withImm(0x03, "loop", ImmBlock, -1, -1),
	withImm(0x04, "if", ImmBlock, -1, -1),
	plain(0x05, "else", -1, -1),
	plain(0x0B, "end", -1, -1),
	withImm(0x0C, "br", ImmLabel, -1, -1),
	withImm(0x0D, "br_if", ImmLabel, -1, -1),
	withImm(0x0E, "br_table", ImmBrTable, -1, -1),
	plain(0x0F, "return", -1, -1),
	withImm(0x10, "call", ImmFunc, -1, -1),
	withImm(0x11, "call_indirect", ImmCallIndirect, -1, -1),
	withImm(0x12, "return_call", ImmFunc, -1, -1),
	withImm(0x13, "return_call_indirect", ImmCallIndirect, -1, -1),

	// Parametric
	plain(0x1A, "drop", 1, 0),
	plain(0x1B, "select", 3, 1),
	withImm(0x1C, "select", ImmSelectTypes, 3, 1),

	// Variables
	withImm(0x20, "local.get", ImmLocal, 0, 1),
	withImm(0x21, "local.set", ImmLocal, 1, 0),
	withImm(0x22, "local.tee", ImmLocal, 1, 1),
	withImm(0x23, "global.get", ImmGlobal, 0, 1),
	withImm(0x24, "global.set", ImmGlobal, 1, 0),

	// Tables
	withImm(0x25, "table.get", ImmTable, 1, 1),
	withImm(0x26, "table.set", ImmTable, 2, 0),

	// Memory
	load(0x28, "i32.load", 2),
	load(0x29, "i64.load", 3),
	load(0x2A, "f32.load", 2),
	load(0x2B, "f64.load", 3),
	load(0x2C, "i32.load8_s", 0),
	load(0x2D, "i32.load8_u", 0),
	load(0x2E, "i32.load16_s", 1),
	load(0x2F, "i32.load16_u", 1),
	load(0x30, "i64.load8_s", 0),
	load(0x31, "i64.load8_u", 0),
	load(0x32, "i64.load16_s", 1),
	load(0x33, "i64.load16_u", 1),
	load(0x34, "i64.load32_s", 2),
	load(0x35, "i64.load32_u", 2),
	store(0x36, "i32.store", 2),
	store(0x37, "i64.store", 3),
	store(0x38, "f32.store", 2),
	store(0x39, "f64.store", 3),
	store(0x3A, "i32.store8", 0),
	store(0x3B, "i32.store16", 1),
	store(0x3C, "i64.store8", 0),
	store(0x3D, "i64.store16", 1),
	store(0x3E, "i64.store32", 2),
	withImm(0x3F, "memory.size", ImmMemory, 0, 1),
	withImm(0x40, "memory.grow", ImmMemory, 1, 1),

	// Constants
	withImm(0x41, "i32.const", ImmI32, 0, 1),
	withImm(0x42, "i64.const", ImmI64, 0, 1),
	withImm(0x43, "f32.const", ImmF32, 0, 1),
	withImm(0x44, "f64.const", ImmF64, 0, 1),

	// i32 comparison
	unary(0x45, "i32.eqz"),
	binaryOp(0x46, "i32.eq"),
	binaryOp(0x47, "i32.ne"),
	binaryOp(0x48, "i32.lt_s"),
	binaryOp(0x49, "i32.lt_u"),
	binaryOp(0x4A, "i32.gt_s"),
	binaryOp(0x4B, "i32.gt_u"),
	binaryOp(0x4C, "i32.le_s"),
	binaryOp(0x4D, "i32.le_u"),
	binaryOp(0x4E, "i32.ge_s"),
	binaryOp(0x4F, "i32.ge_u"),

	// i64 comparison
	unary(0x50, "i64.eqz"),
	binaryOp(0x51, "i64.eq"),
	binaryOp(0x52, "i64.ne"),
	binaryOp(0x53, "i64.lt_s"),
	binaryOp(0x54, "i64.lt_u"),
	binaryOp(0x55, "i64.gt_s"),
	binaryOp(0x56, "i64.gt_u"),
	binaryOp(0x57, "i64.le_s"),
	binaryOp(0x58, "i64.le_u"),
	binaryOp(0x59, "i64.ge_s"),
	binaryOp(0x5A, "i64.ge_u"),

	// f32 comparison
	binaryOp(0x5B, "f32.eq"),
	binaryOp(0x5C, "f32.ne"),
	binaryOp(0x5D, "f32.lt"),
	binaryOp(0x5E, "f32.gt"),
	binaryOp(0x5F, "f32.le"),
	binaryOp(0x60, "f32.ge"),

	// f64 comparison
	binaryOp(0x61, "f64.eq"),
	binaryOp(0x62, "f64.ne"),
	binaryOp(0x63, "f64.lt"),
	binaryOp(0x64, "f64.gt"),
	binaryOp(0x65, "f64.le"),
	binaryOp(0x66, "f64.ge"),

	// i32 arithmetic
	unary(0x67, "i32.clz"),
	unary(0x68, "i32.ctz"),
	unary(0x69, "i32.popcnt"),
	binaryOp(0x6A, "i32.add"),
	binaryOp(0x6B, "i32.sub"),
	binaryOp(0x6C, "i32.mul"),
	binaryOp(0x6D, "i32.div_s"),
	binaryOp(0x6E, "i32.div_u"),
	binaryOp(0x6F, "i32.rem_s"),
	binaryOp(0x70, "i32.rem_u"),
	binaryOp(0x71, "i32.and"),
	binaryOp(0x72, "i32.or"),
	binaryOp(0x73, "i32.xor"),
	binaryOp(0x74, "i32.shl"),
	binaryOp(0x75, "i32.shr_s"),
	binaryOp(0x76, "i32.shr_u"),
	binaryOp(0x77, "i32.rotl"),
	binaryOp(0x78, "i32.rotr"),

	// i64 arithmetic
	unary(0x79, "i64.clz"),
	unary(0x7A, "i64.ctz"),
	unary(0x7B, "i64.popcnt"),
	binaryOp(0x7C, "i64.add"),
	binaryOp(0x7D, "i64.sub"),
	binaryOp(0x7E, "i64.mul"),
	binaryOp(0x7F, "i64.div_s"),
	binaryOp(0x80, "i64.div_u"),
	binaryOp(0x81, "i64.rem_s"),
	binaryOp(0x82, "i64.rem_u"),
	binaryOp(0x83, "i64.and"),
	binaryOp(0x84, "i64.or"),
	binaryOp(0x85, "i64.xor"),
	binaryOp(0x86, "i64.shl"),
	binaryOp(0x87, "i64.shr_s"),
	binaryOp(0x88, "i64.shr_u"),
	binaryOp(0x89, "i64.rotl"),
	binaryOp(0x8A, "i64.rotr"),

	// f32 arithmetic
	unary(0x8B, "f32.abs"),
	unary(0x8C, "f32.neg"),
	unary(0x8D, "f32.ceil"),
	unary(0x8E, "f32.floor"),
	unary(0x8F, "f32.trunc"),
	unary(0x90, "f32.nearest"),
	unary(0x91, "f32.sqrt"),
	binaryOp(0x92, "f32.add"),
	binaryOp(0x93, "f32.sub"),
	binaryOp(0x94, "f32.mul"),
	binaryOp(0x95, "f32.div"),
	binaryOp(0x96, "f32.min"),
	binaryOp(0x97, "f32.max"),
	binaryOp(0x98, "f32.copysign"),

	// f64 arithmetic
	unary(0x99, "f64.abs"),
	unary(0x9A, "f64.neg"),
	unary(0x9B, "f64.ceil"),
	unary(0x9C, "f64.floor"),
	unary(0x9D, "f64.trunc"),
	unary(0x9E, "f64.nearest"),
	unary(0x9F, "f64.sqrt"),
	binaryOp(0xA0, "f64.add"),
	binaryOp(0xA1, "f64.sub"),
	binaryOp(0xA2, "f64.mul"),
	binaryOp(0xA3, "f64.div"),
	binaryOp(0xA4, "f64.min"),
	binaryOp(0xA5, "f64.max"),
	binaryOp(0xA6, "f64.copysign"),

	// Conversions
	unary(0xA7, "i32.wrap_i64"),
	unary(0xA8, "i32.trunc_f32_s"),
	unary(0xA9, "i32.trunc_f32_u"),
	unary(0xAA, "i32.trunc_f64_s"),
	unary(0xAB, "i32.trunc_f64_u"),
	unary(0xAC, "i64.extend_i32_s"),
	unary(0xAD, "i64.extend_i32_u"),
	unary(0xAE, "i64.trunc_f32_s"),
	unary(0xAF, "i64.trunc_f32_u"),
	unary(0xB0, "i64.trunc_f64_s"),
	unary(0xB1, "i64.trunc_f64_u"),
	unary(0xB2, "f32.convert_i32_s"),
	unary(0xB3, "f32.convert_i32_u"),
	unary(0xB4, "f32.convert_i64_s"),
	unary(0xB5, "f32.convert_i64_u"),
	unary(0xB6, "f32.demote_f64"),
	unary(0xB7, "f64.convert_i32_s"),
	unary(0xB8, "f64.convert_i32_u"),
	unary(0xB9, "f64.convert_i64_s"),
	unary(0xBA, "f64.convert_i64_u"),
	unary(0xBB, "f64.promote_f32"),
	unary(0xBC, "i32.reinterpret_f32"),
	unary(0xBD, "i64.reinterpret_f64"),
	unary(0xBE, "f32.reinterpret_i32"),
	unary(0xBF, "f64.reinterpret_i64"),

	// Sign extension
	unary(0xC0, "i32.extend8_s"),
	unary(0xC1, "i32.extend16_s"),
	unary(0xC2, "i64.extend8_s"),
	unary(0xC3, "i64.extend16_s"),
	unary(0xC4, "i64.extend32_s"),

	// Reference types
	withImm(0xD0, "ref.null", ImmRefNull, 0, 1),
	plain(0xD1, "ref.is_null", 1, 1),
	withImm(0xD2, "ref.func", ImmFunc, 0, 1),

	// Saturating truncation, bulk memory and table operations (0xFC)
	misc(0x00, "i32.trunc_sat_f32_s", ImmNone, 1, 1),
	misc(0x01, "i32.trunc_sat_f32_u", ImmNone, 1, 1),
	misc(0x02, "i32.trunc_sat_f64_s", ImmNone, 1, 1),
	misc(0x03, "i32.trunc_sat_f64_u", ImmNone, 1, 1),
	misc(0x04, "i64.trunc_sat_f32_s", ImmNone, 1, 1),
	misc(0x05, "i64.trunc_sat_f32_u", ImmNone, 1, 1),
	misc(0x06, "i64.trunc_sat_f64_s", ImmNone, 1, 1),
	misc(0x07, "i64.trunc_sat_f64_u", ImmNone, 1, 1),
	misc(MiscMemoryInit, "memory.init", ImmMemoryInit, 3, 0),
	misc(MiscDataDrop, "data.drop", ImmData, 0, 0),
	misc(MiscMemoryCopy, "memory.copy", ImmMemoryCopy, 3, 0),
	misc(MiscMemoryFill, "memory.fill", ImmMemory, 3, 0),
	misc(MiscTableInit, "table.init", ImmTableInit, 3, 0),
	misc(MiscElemDrop, "elem.drop", ImmElem, 0, 0),
	misc(MiscTableCopy, "table.copy", ImmTableCopy, 3, 0),
	misc(MiscTableGrow, "table.grow", ImmTable, 2, 1),
	misc(MiscTableSize, "table.size", ImmTable, 0, 1),
	misc(MiscTableFill, "table.fill", ImmTable, 3, 0),
}

type opKey struct {
	sub      uint32
	op       byte
	prefixed bool
}

var (
	byCode = map[opKey]*OpInfo{}
	byName = map[string]*OpInfo{}
)

func init() {
	for i := range catalogue {
		info := &catalogue[i]
		byCode[opKey{op: info.Op, sub: info.Sub, prefixed: info.Prefixed}] = info
		// The typed select shares its mnemonic with the untyped form.
		if info.Op == OpSelectType {
			continue
		}
		byName[info.Name] = info
	}
}

// LookupOpcode returns the description of a single-byte opcode.
func LookupOpcode(op byte) (*OpInfo, bool) {
	info, ok := byCode[opKey{op: op}]
	return info, ok
}

// LookupMisc returns the description of a 0xFC-prefixed opcode.
func LookupMisc(sub uint32) (*OpInfo, bool) {
	info, ok := byCode[opKey{op: OpPrefixMisc, sub: sub, prefixed: true}]
	return info, ok
}

// LookupName returns the description of an instruction mnemonic.
func LookupName(name string) (*OpInfo, bool) {
	info, ok := byName[name]
	return info, ok
}

// Info returns the description of a decoded instruction.
func (i *Instruction) Info() *OpInfo {
	if i.Opcode == OpPrefixMisc {
		if imm, ok := i.Imm.(MiscImm); ok {
			info, _ := LookupMisc(imm.SubOpcode)
			return info
		}
		return nil
	}
	info, _ := LookupOpcode(i.Opcode)
	return info
}
