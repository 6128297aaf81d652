package wasm

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ValidationError reports one validation failure.
type ValidationError struct {
	Func   int // function index, -1 for module-level failures
	Offset int // instruction offset within the body, -1 when not applicable
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Func < 0 {
		return e.Msg
	}
	if e.Offset < 0 {
		return fmt.Sprintf("func %d: %s", e.Func, e.Msg)
	}
	return fmt.Sprintf("func %d at 0x%x: %s", e.Func, e.Offset, e.Msg)
}

// Validate checks the module for validity. Every failure is reported; the
// returned error combines them (see multierr.Errors).
func (m *Module) Validate() error {
	var errs error
	add := func(err error) { errs = multierr.Append(errs, err) }

	add(m.validateTypeIndices())
	add(m.validateLimits())
	add(m.validateGlobals())
	add(m.validateExports())
	add(m.validateStart())
	add(m.validateElements())
	add(m.validateData())
	add(m.validateCode())
	return errs
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func moduleErr(format string, args ...any) error {
	return &ValidationError{Func: -1, Offset: -1, Msg: fmt.Sprintf(format, args...)}
}

func (m *Module) validateTypeIndices() error {
	var errs error
	numTypes := uint32(len(m.Types))
	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			errs = multierr.Append(errs, moduleErr("function %d: type index out of range: %d", m.NumImportedFuncs()+i, typeIdx))
		}
	}
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= numTypes {
			errs = multierr.Append(errs, moduleErr("import %d (%s.%s): type index out of range: %d", i, imp.Module, imp.Name, imp.Desc.TypeIdx))
		}
	}
	return errs
}

func checkLimits(l Limits, bound uint64, what string) error {
	var errs error
	if uint64(l.Min) > bound {
		errs = multierr.Append(errs, moduleErr("%s: initial size %d exceeds %d", what, l.Min, bound))
	}
	if l.Max != nil {
		if uint64(*l.Max) > bound {
			errs = multierr.Append(errs, moduleErr("%s: max size %d exceeds %d", what, *l.Max, bound))
		}
		if l.Min > *l.Max {
			errs = multierr.Append(errs, moduleErr("%s: max size %d must be >= initial size %d", what, *l.Max, l.Min))
		}
	}
	return errs
}

func (m *Module) validateLimits() error {
	var errs error
	for i := 0; i < m.NumMemories(); i++ {
		mt := m.memoryAt(uint32(i))
		errs = multierr.Append(errs, checkLimits(mt.Limits, uint64(MemoryMaxPages), fmt.Sprintf("memory %d", i)))
	}
	for i := 0; i < m.NumTables(); i++ {
		tt, _ := m.TableTypeAt(uint32(i))
		errs = multierr.Append(errs, checkLimits(tt.Limits, 1<<32-1, fmt.Sprintf("table %d", i)))
	}
	return errs
}

func (m *Module) memoryAt(idx uint32) MemoryType {
	if i, ok := m.ImportIndex(KindMemory, idx); ok {
		return *m.Imports[i].Desc.Memory
	}
	return m.Memories[int(idx)-m.NumImportedMemories()]
}

func (m *Module) validateGlobals() error {
	var errs error
	imported := m.NumImportedGlobals()
	for i, g := range m.Globals {
		if err := m.checkConstExpr(g.Init, g.Type.ValType, imported); err != nil {
			errs = multierr.Append(errs, moduleErr("global %d: %v", imported+i, err))
		}
	}
	return errs
}

// checkConstExpr validates a constant expression producing want. Only the
// first visibleGlobals globals may be read.
func (m *Module) checkConstExpr(expr []byte, want ValType, visibleGlobals int) error {
	instrs, err := DecodeInstructions(expr)
	if err != nil {
		return err
	}
	if len(instrs) != 2 || instrs[1].Opcode != OpEnd {
		return errors.New("constant expression must be a single constant instruction")
	}
	var got ValType
	switch imm := instrs[0].Imm.(type) {
	case I32Imm:
		got = ValI32
	case I64Imm:
		got = ValI64
	case F32Imm:
		got = ValF32
	case F64Imm:
		got = ValF64
	case RefNullImm:
		got = imm.Type
	case CallImm:
		if instrs[0].Opcode != OpRefFunc {
			return errors.New("invalid instruction in constant expression")
		}
		if int(imm.FuncIdx) >= m.NumFuncs() {
			return fmt.Errorf("function index out of range: %d", imm.FuncIdx)
		}
		got = ValFuncRef
	case GlobalImm:
		if int(imm.GlobalIdx) >= visibleGlobals {
			return fmt.Errorf("initializer expression can only reference an imported global: %d", imm.GlobalIdx)
		}
		gt, _ := m.GlobalTypeAt(imm.GlobalIdx)
		if gt.Mutable {
			return errors.New("initializer expression cannot reference a mutable global")
		}
		got = gt.ValType
	default:
		return fmt.Errorf("invalid instruction in constant expression: %s", instrs[0].Info().Name)
	}
	if got != want {
		return fmt.Errorf("type mismatch in constant expression: expected %s, got %s", want, got)
	}
	return nil
}

func (m *Module) validateExports() error {
	var errs error
	seen := make(map[string]bool)
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			errs = multierr.Append(errs, moduleErr("duplicate export %q", exp.Name))
		}
		seen[exp.Name] = true

		var limit int
		switch exp.Kind {
		case KindFunc:
			limit = m.NumFuncs()
		case KindTable:
			limit = m.NumTables()
		case KindMemory:
			limit = m.NumMemories()
		case KindGlobal:
			limit = m.NumGlobals()
		}
		if int(exp.Idx) >= limit {
			errs = multierr.Append(errs, moduleErr("export %d (%s): index out of range: %d", i, exp.Name, exp.Idx))
		}
	}
	return errs
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}
	ft := m.GetFuncType(*m.Start)
	if ft == nil {
		return moduleErr("start function index out of range: %d", *m.Start)
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return moduleErr("start function must have type [] -> []")
	}
	return nil
}

func (m *Module) validateElements() error {
	var errs error
	for i, elem := range m.Elements {
		if elem.Mode == SegmentActive {
			tt, ok := m.TableTypeAt(elem.TableIdx)
			switch {
			case !ok:
				errs = multierr.Append(errs, moduleErr("elem %d: table index out of range: %d", i, elem.TableIdx))
			case tt.ElemType != elem.Type:
				errs = multierr.Append(errs, moduleErr("elem %d: type mismatch: table holds %s, segment holds %s", i, tt.ElemType, elem.Type))
			}
			if err := m.checkConstExpr(elem.Offset, ValI32, m.NumImportedGlobals()); err != nil {
				errs = multierr.Append(errs, moduleErr("elem %d offset: %v", i, err))
			}
		}
		for j, f := range elem.FuncIdxs {
			if int(f) >= m.NumFuncs() {
				errs = multierr.Append(errs, moduleErr("elem %d entry %d: function index out of range: %d", i, j, f))
			}
		}
		for j, expr := range elem.Exprs {
			if err := m.checkConstExpr(expr, elem.Type, m.NumImportedGlobals()); err != nil {
				errs = multierr.Append(errs, moduleErr("elem %d entry %d: %v", i, j, err))
			}
		}
	}
	return errs
}

func (m *Module) validateData() error {
	var errs error
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		errs = multierr.Append(errs, moduleErr("data segment count does not equal count in DataCount section"))
	}
	for i, seg := range m.Data {
		if seg.Mode != SegmentActive {
			continue
		}
		if int(seg.MemIdx) >= m.NumMemories() {
			errs = multierr.Append(errs, moduleErr("data %d: memory index out of range: %d", i, seg.MemIdx))
		}
		if err := m.checkConstExpr(seg.Offset, ValI32, m.NumImportedGlobals()); err != nil {
			errs = multierr.Append(errs, moduleErr("data %d offset: %v", i, err))
		}
	}
	return errs
}

func (m *Module) validateCode() error {
	if len(m.Code) != len(m.Funcs) {
		return moduleErr("function count %d does not match body count %d", len(m.Funcs), len(m.Code))
	}
	var errs error
	imported := m.NumImportedFuncs()
	for i := range m.Code {
		ft := m.TypeAt(m.Funcs[i])
		if ft == nil {
			continue // reported by validateTypeIndices
		}
		v := funcValidator{m: m, fn: imported + i, typ: ft, body: &m.Code[i]}
		errs = multierr.Append(errs, v.run())
	}
	return errs
}

// valUnknown is the type of an operand produced in unreachable code. It
// matches every expected type.
const valUnknown ValType = 0

// ctrlFrame tracks one enclosing block. height is the operand stack size
// at block entry.
type ctrlFrame struct {
	params      []ValType
	results     []ValType
	height      int
	op          byte
	unreachable bool
	sawElse     bool
}

func (f *ctrlFrame) labelTypes() []ValType {
	if f.op == OpLoop {
		return f.params
	}
	return f.results
}

type funcValidator struct {
	m      *Module
	fn     int
	typ    *FuncType
	body   *FuncBody
	frames []ctrlFrame
	stack  []ValType
	offset int
	errs   error
}

func (v *funcValidator) fail(format string, args ...any) {
	v.errs = multierr.Append(v.errs, &ValidationError{Func: v.fn, Offset: v.offset, Msg: fmt.Sprintf(format, args...)})
}

func typesMatch(got, want ValType) bool {
	return got == want || got == valUnknown || want == valUnknown
}

func (v *funcValidator) push(types ...ValType) {
	v.stack = append(v.stack, types...)
}

// popType pops one operand and checks it against want. It returns the
// operand type, or want when the operand is unknown.
func (v *funcValidator) popType(want ValType, what string) ValType {
	top := &v.frames[len(v.frames)-1]
	if len(v.stack) == top.height {
		if !top.unreachable {
			v.fail("type mismatch in %s, expected [%s] but got []", what, want)
		}
		return want
	}
	got := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	if !typesMatch(got, want) {
		v.fail("type mismatch in %s, expected [%s] but got [%s]", what, want, got)
	}
	if got == valUnknown {
		return want
	}
	return got
}

// popTypes pops len(want) operands, the last one first. A short stack is
// reported once.
func (v *funcValidator) popTypes(want []ValType, what string) {
	top := &v.frames[len(v.frames)-1]
	if have := len(v.stack) - top.height; have < len(want) && !top.unreachable {
		v.fail("type mismatch in %s, expected %d operands but got %d", what, len(want), have)
		v.stack = v.stack[:top.height]
		return
	}
	for i := len(want) - 1; i >= 0; i-- {
		v.popType(want[i], what)
	}
}

func (v *funcValidator) setUnreachable() {
	top := &v.frames[len(v.frames)-1]
	v.stack = v.stack[:top.height]
	top.unreachable = true
}

func (v *funcValidator) blockSig(bt int32) ([]ValType, []ValType) {
	switch {
	case bt == BlockTypeVoid:
		return nil, nil
	case bt < 0:
		return nil, []ValType{ValType(byte(bt & 0x7F))}
	}
	ft := v.m.TypeAt(uint32(bt))
	if ft == nil {
		v.fail("block type index out of range: %d", bt)
		return nil, nil
	}
	return ft.Params, ft.Results
}

func (v *funcValidator) label(depth uint32) *ctrlFrame {
	if int(depth) >= len(v.frames) {
		v.fail("invalid depth: %d (max %d)", depth, len(v.frames)-1)
		return nil
	}
	return &v.frames[len(v.frames)-1-int(depth)]
}

func (v *funcValidator) checkIndex(idx uint32, limit int, what string) bool {
	if int(idx) >= limit {
		v.fail("%s index out of range: %d", what, idx)
		return false
	}
	return true
}

// localType returns the type of a parameter or declared local.
func (v *funcValidator) localType(idx uint32) (ValType, bool) {
	if int(idx) < len(v.typ.Params) {
		return v.typ.Params[idx], true
	}
	rest := uint64(idx) - uint64(len(v.typ.Params))
	for _, l := range v.body.Locals {
		if rest < uint64(l.Count) {
			return l.ValType, true
		}
		rest -= uint64(l.Count)
	}
	return valUnknown, false
}

func (v *funcValidator) run() error {
	instrs, err := DecodeInstructions(v.body.Code)
	if err != nil {
		return &ValidationError{Func: v.fn, Offset: -1, Msg: err.Error()}
	}
	numLocals := uint64(len(v.typ.Params)) + v.body.NumLocals()
	v.frames = []ctrlFrame{{op: OpBlock, results: v.typ.Results}}

	for i := range instrs {
		in := &instrs[i]
		v.offset = in.Offset
		if len(v.frames) == 0 {
			v.fail("instructions after function end")
			break
		}
		info := in.Info()

		switch in.Opcode {
		case OpUnreachable:
			v.setUnreachable()
		case OpBlock, OpLoop, OpIf:
			if in.Opcode == OpIf {
				v.popType(ValI32, "if condition")
			}
			params, results := v.blockSig(in.Imm.(BlockImm).Type)
			v.popTypes(params, info.Name)
			v.frames = append(v.frames, ctrlFrame{op: in.Opcode, params: params, results: results, height: len(v.stack)})
			v.push(params...)
		case OpElse:
			top := &v.frames[len(v.frames)-1]
			if top.op != OpIf || top.sawElse {
				v.fail("else does not match an if")
				continue
			}
			v.checkFrameEnd(top, "if true branch")
			v.stack = append(v.stack[:top.height], top.params...)
			top.sawElse = true
			top.unreachable = false
		case OpEnd:
			top := v.frames[len(v.frames)-1]
			v.checkFrameEnd(&top, "block end")
			if top.op == OpIf && !top.sawElse && !sameTypes(top.params, top.results) {
				v.fail("if without else must leave its parameters unchanged")
			}
			v.frames = v.frames[:len(v.frames)-1]
			v.stack = append(v.stack[:top.height], top.results...)
		case OpBr:
			if f := v.label(in.Imm.(BranchImm).LabelIdx); f != nil {
				v.popTypes(f.labelTypes(), "br")
			}
			v.setUnreachable()
		case OpBrIf:
			v.popType(ValI32, "br_if condition")
			if f := v.label(in.Imm.(BranchImm).LabelIdx); f != nil {
				types := f.labelTypes()
				v.popTypes(types, "br_if")
				v.push(types...)
			}
		case OpBrTable:
			imm := in.Imm.(BrTableImm)
			v.popType(ValI32, "br_table index")
			var types []ValType
			known := false
			if f := v.label(imm.Default); f != nil {
				types, known = f.labelTypes(), true
			}
			for _, l := range imm.Labels {
				if f := v.label(l); f != nil && known && !sameTypes(f.labelTypes(), types) {
					v.fail("br_table labels have inconsistent types")
				}
			}
			v.popTypes(types, "br_table")
			v.setUnreachable()
		case OpReturn:
			v.popTypes(v.typ.Results, "return")
			v.setUnreachable()
		case OpCall, OpReturnCall:
			idx := in.Imm.(CallImm).FuncIdx
			ft := v.m.GetFuncType(idx)
			if ft == nil {
				v.fail("function index out of range: %d", idx)
				break
			}
			v.popTypes(ft.Params, info.Name)
			if in.Opcode == OpReturnCall {
				v.checkTailResults(ft)
				v.setUnreachable()
				break
			}
			v.push(ft.Results...)
		case OpCallIndirect, OpReturnCallIndirect:
			imm := in.Imm.(CallIndirectImm)
			v.checkIndex(imm.TableIdx, v.m.NumTables(), "table")
			v.popType(ValI32, info.Name+" index")
			ft := v.m.TypeAt(imm.TypeIdx)
			if ft == nil {
				v.fail("type index out of range: %d", imm.TypeIdx)
				break
			}
			v.popTypes(ft.Params, info.Name)
			if in.Opcode == OpReturnCallIndirect {
				v.checkTailResults(ft)
				v.setUnreachable()
				break
			}
			v.push(ft.Results...)
		case OpSelect:
			v.popType(ValI32, "select condition")
			t1 := v.popType(valUnknown, "select")
			t2 := v.popType(t1, "select")
			if t1.IsRef() || t2.IsRef() {
				v.fail("type mismatch in select, untyped select needs numeric operands")
			}
			if t1 == valUnknown {
				t1 = t2
			}
			v.push(t1)
		case OpRefIsNull:
			if t := v.popType(valUnknown, "ref.is_null"); t != valUnknown && !t.IsRef() {
				v.fail("type mismatch in ref.is_null, expected reference but got [%s]", t)
			}
			v.push(ValI32)
		default:
			v.checkImmediate(in, info, numLocals)
			pops, pushes := v.signature(in, info)
			v.popTypes(pops, info.Name)
			v.push(pushes...)
		}
	}

	if len(v.frames) != 0 {
		v.offset = len(v.body.Code)
		v.fail("function body must end with end opcode")
	}
	return v.errs
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v *funcValidator) checkFrameEnd(f *ctrlFrame, what string) {
	have := len(v.stack) - f.height
	want := len(f.results)
	switch {
	case have < want && !f.unreachable:
		v.fail("type mismatch in %s, expected %d results but got %d", what, want, have)
		return
	case have > want:
		v.fail("type mismatch in %s, %d values remain on the stack", what, have-want)
		return
	}
	n := min(have, want)
	for i := 0; i < n; i++ {
		got := v.stack[len(v.stack)-n+i]
		exp := f.results[want-n+i]
		if !typesMatch(got, exp) {
			v.fail("type mismatch in %s, expected [%s] but got [%s]", what, exp, got)
			return
		}
	}
}

func (v *funcValidator) checkTailResults(callee *FuncType) {
	if !sameTypes(callee.Results, v.typ.Results) {
		v.fail("tail call results %v do not match caller results %v", callee.Results, v.typ.Results)
	}
}

// signature returns the operand types an instruction with a fixed stack
// effect pops and pushes. Numeric instructions are typed by their mnemonic:
// "i64.extend_i32_s" pops an i32 and pushes an i64.
func (v *funcValidator) signature(in *Instruction, info *OpInfo) ([]ValType, []ValType) {
	any1 := []ValType{valUnknown}
	switch imm := in.Imm.(type) {
	case LocalImm:
		t, _ := v.localType(imm.LocalIdx)
		switch in.Opcode {
		case OpLocalGet:
			return nil, []ValType{t}
		case OpLocalSet:
			return []ValType{t}, nil
		}
		return []ValType{t}, []ValType{t}
	case GlobalImm:
		gt, _ := v.m.GlobalTypeAt(imm.GlobalIdx)
		if in.Opcode == OpGlobalGet {
			return nil, []ValType{gt.ValType}
		}
		return []ValType{gt.ValType}, nil
	case TableImm:
		tt, _ := v.m.TableTypeAt(imm.TableIdx)
		if info.Name == "table.get" {
			return []ValType{ValI32}, []ValType{tt.ElemType}
		}
		return []ValType{ValI32, tt.ElemType}, nil
	case RefNullImm:
		return nil, []ValType{imm.Type}
	case SelectTypeImm:
		if len(imm.Types) != 1 {
			v.fail("invalid result arity for typed select: %d", len(imm.Types))
			return []ValType{valUnknown, valUnknown, ValI32}, any1
		}
		t := imm.Types[0]
		return []ValType{t, t, ValI32}, []ValType{t}
	case CallImm: // ref.func
		return nil, []ValType{ValFuncRef}
	case MiscImm:
		if sig, ok := v.miscSignature(imm); ok {
			return sig[0], sig[1]
		}
	}

	if in.Opcode == OpDrop {
		return any1, nil
	}
	return numericSignature(info)
}

func (v *funcValidator) miscSignature(imm MiscImm) ([2][]ValType, bool) {
	i32x3 := []ValType{ValI32, ValI32, ValI32}
	switch imm.SubOpcode {
	case MiscMemoryInit, MiscMemoryCopy, MiscMemoryFill, MiscTableInit, MiscTableCopy:
		return [2][]ValType{i32x3, nil}, true
	case MiscDataDrop, MiscElemDrop:
		return [2][]ValType{}, true
	case MiscTableGrow, MiscTableSize, MiscTableFill:
		var elem ValType
		if len(imm.Operands) > 0 {
			tt, _ := v.m.TableTypeAt(imm.Operands[0])
			elem = tt.ElemType
		}
		switch imm.SubOpcode {
		case MiscTableGrow:
			return [2][]ValType{{elem, ValI32}, {ValI32}}, true
		case MiscTableSize:
			return [2][]ValType{nil, {ValI32}}, true
		}
		return [2][]ValType{{ValI32, elem, ValI32}, nil}, true
	}
	return [2][]ValType{}, false
}

var valTypeNames = map[string]ValType{"i32": ValI32, "i64": ValI64, "f32": ValF32, "f64": ValF64}

// numericSignature types loads, stores, constants, memory.size/grow and
// the numeric operators from the opcode catalogue.
func numericSignature(info *OpInfo) ([]ValType, []ValType) {
	switch info.Name {
	case "memory.size":
		return nil, []ValType{ValI32}
	case "memory.grow":
		return []ValType{ValI32}, []ValType{ValI32}
	case "nop":
		return nil, nil
	}

	prefix, op, ok := strings.Cut(info.Name, ".")
	t, known := valTypeNames[prefix]
	if !ok || !known {
		return untypedSignature(info)
	}

	switch {
	case info.Imm == ImmMemArg && info.Pushes == 1:
		return []ValType{ValI32}, []ValType{t}
	case info.Imm == ImmMemArg:
		return []ValType{ValI32, t}, nil
	case op == "const":
		return nil, []ValType{t}
	case info.Pops == 1:
		if op == "eqz" {
			return []ValType{t}, []ValType{ValI32}
		}
		src := t
		for _, part := range strings.Split(op, "_") {
			if st, ok := valTypeNames[part]; ok {
				src = st
			}
		}
		return []ValType{src}, []ValType{t}
	case info.Pops == 2:
		if isComparison(op) {
			return []ValType{t, t}, []ValType{ValI32}
		}
		return []ValType{t, t}, []ValType{t}
	}
	return untypedSignature(info)
}

func isComparison(op string) bool {
	switch op {
	case "eq", "ne", "lt", "gt", "le", "ge", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u":
		return true
	}
	return false
}

// untypedSignature falls back to the catalogue's operand counts.
func untypedSignature(info *OpInfo) ([]ValType, []ValType) {
	var pops, pushes []ValType
	for i := 0; i < int(info.Pops); i++ {
		pops = append(pops, valUnknown)
	}
	for i := 0; i < int(info.Pushes); i++ {
		pushes = append(pushes, valUnknown)
	}
	return pops, pushes
}

func (v *funcValidator) checkImmediate(in *Instruction, info *OpInfo, numLocals uint64) {
	m := v.m
	switch imm := in.Imm.(type) {
	case LocalImm:
		if uint64(imm.LocalIdx) >= numLocals {
			v.fail("local variable out of range (max %d): %d", numLocals, imm.LocalIdx)
		}
	case GlobalImm:
		gt, ok := m.GlobalTypeAt(imm.GlobalIdx)
		if !ok {
			v.fail("global variable out of range: %d", imm.GlobalIdx)
			break
		}
		if in.Opcode == OpGlobalSet && !gt.Mutable {
			v.fail("can't global.set on immutable global at index %d", imm.GlobalIdx)
		}
	case CallImm: // ref.func
		v.checkIndex(imm.FuncIdx, m.NumFuncs(), "function")
	case TableImm:
		v.checkIndex(imm.TableIdx, m.NumTables(), "table")
	case MemoryImm:
		if v.checkIndex(imm.MemIdx, m.NumMemories(), "memory") && imm.Align > uint32(info.Align) {
			v.fail("alignment must not be larger than natural alignment (%d)", 1<<info.Align)
		}
	case MemoryIdxImm:
		v.checkIndex(imm.MemIdx, m.NumMemories(), "memory")
	case MiscImm:
		v.checkMisc(imm, info)
	}
}

func (v *funcValidator) checkMisc(imm MiscImm, info *OpInfo) {
	m := v.m
	switch info.Imm {
	case ImmMemoryInit:
		v.checkData(imm.Operands[0])
		v.checkIndex(imm.Operands[1], m.NumMemories(), "memory")
	case ImmData:
		v.checkData(imm.Operands[0])
	case ImmMemoryCopy:
		v.checkIndex(imm.Operands[0], m.NumMemories(), "memory")
		v.checkIndex(imm.Operands[1], m.NumMemories(), "memory")
	case ImmMemory:
		v.checkIndex(imm.Operands[0], m.NumMemories(), "memory")
	case ImmTableInit:
		v.checkIndex(imm.Operands[0], len(m.Elements), "elem segment")
		v.checkIndex(imm.Operands[1], m.NumTables(), "table")
	case ImmElem:
		v.checkIndex(imm.Operands[0], len(m.Elements), "elem segment")
	case ImmTableCopy:
		v.checkIndex(imm.Operands[0], m.NumTables(), "table")
		v.checkIndex(imm.Operands[1], m.NumTables(), "table")
	case ImmTable:
		v.checkIndex(imm.Operands[0], m.NumTables(), "table")
	}
}

func (v *funcValidator) checkData(idx uint32) {
	if v.m.DataCount == nil {
		v.fail("data count section required")
		return
	}
	v.checkIndex(idx, len(v.m.Data), "data segment")
}
