package wasm

import "slices"

// Module is the in-memory representation of a WebAssembly module shared by
// the binary and text codecs.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element

	// DataCount holds the count from the DataCount section (ID 12).
	// Required when data indices appear in code (bulk memory operations).
	DataCount *uint32

	Code []FuncBody
	Data []DataSegment

	// CustomSections keeps custom sections other than "name" in input order.
	CustomSections []CustomSection

	// Names holds debug names and the set of references bound to them.
	// Nil until a name section is read or a name is recorded.
	Names *Names
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (ft FuncType) Equal(other FuncType) bool {
	return slices.Equal(ft.Params, other.Params) && slices.Equal(ft.Results, other.Results)
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// IsRef reports whether v is a reference type.
func (v ValType) IsRef() bool {
	return v == ValFuncRef || v == ValExtern
}

// Supported reports whether v is a value type the codecs handle.
func (v ValType) Supported() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExtern:
		return true
	}
	return false
}

// Import represents an imported function, table, memory or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Exactly one of the pointer fields is
// set for table, memory and global imports; function imports use TypeIdx.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table's element type and size limits.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory's size limits in pages.
type MemoryType struct {
	Limits Limits
}

// Limits holds the minimum and optional maximum size.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a defined global with its constant initializer.
type Global struct {
	Type GlobalType
	Init []byte // constant expression including the trailing end
}

// Export names a module item for external access.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// SegmentMode says how an element or data segment is initialized.
type SegmentMode byte

const (
	SegmentActive SegmentMode = iota
	SegmentPassive
	SegmentDeclarative // element segments only
)

// Element is an element segment. Entries are either function indices
// (FuncIdxs) or constant expressions (Exprs), never both.
type Element struct {
	Offset   []byte // active only, constant expression including end
	FuncIdxs []uint32
	Exprs    [][]byte
	Mode     SegmentMode
	TableIdx uint32
	Type     ValType
}

// UsesExprs reports whether entries are encoded as expressions.
func (e *Element) UsesExprs() bool {
	return e.Exprs != nil
}

// Len returns the number of entries.
func (e *Element) Len() int {
	if e.UsesExprs() {
		return len(e.Exprs)
	}
	return len(e.FuncIdxs)
}

// FuncBody holds a function's local declarations and instruction bytes.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // instructions including the trailing end
}

// NumLocals returns the number of declared locals, excluding params.
func (b *FuncBody) NumLocals() uint64 {
	var n uint64
	for _, l := range b.Locals {
		n += uint64(l.Count)
	}
	return n
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is a data segment.
type DataSegment struct {
	Offset []byte // active only, constant expression including end
	Init   []byte
	Mode   SegmentMode
	MemIdx uint32
}

// CustomSection is an uninterpreted custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	return m.countImports(KindFunc)
}

// NumImportedGlobals returns the number of imported globals
func (m *Module) NumImportedGlobals() int {
	return m.countImports(KindGlobal)
}

// NumImportedTables returns the number of imported tables
func (m *Module) NumImportedTables() int {
	return m.countImports(KindTable)
}

// NumImportedMemories returns the number of imported memories
func (m *Module) NumImportedMemories() int {
	return m.countImports(KindMemory)
}

func (m *Module) countImports(kind byte) int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			count++
		}
	}
	return count
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int { return m.NumImportedFuncs() + len(m.Funcs) }

// NumTables returns the size of the table index space.
func (m *Module) NumTables() int { return m.NumImportedTables() + len(m.Tables) }

// NumMemories returns the size of the memory index space.
func (m *Module) NumMemories() int { return m.NumImportedMemories() + len(m.Memories) }

// NumGlobals returns the size of the global index space.
func (m *Module) NumGlobals() int { return m.NumImportedGlobals() + len(m.Globals) }

// FuncTypeIdx returns the type index of a function by its index in the
// function index space.
func (m *Module) FuncTypeIdx(funcIdx uint32) (uint32, bool) {
	if i, ok := m.ImportIndex(KindFunc, funcIdx); ok {
		return m.Imports[i].Desc.TypeIdx, true
	}
	local := int(funcIdx) - m.NumImportedFuncs()
	if local < 0 || local >= len(m.Funcs) {
		return 0, false
	}
	return m.Funcs[local], true
}

// GetFuncType returns the type of a function by its index
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	typeIdx, ok := m.FuncTypeIdx(funcIdx)
	if !ok {
		return nil
	}
	return m.TypeAt(typeIdx)
}

// TypeAt returns the function type at typeIdx, or nil when out of range.
func (m *Module) TypeAt(typeIdx uint32) *FuncType {
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// GlobalTypeAt returns the type of a global in the global index space.
func (m *Module) GlobalTypeAt(idx uint32) (GlobalType, bool) {
	if i, ok := m.ImportIndex(KindGlobal, idx); ok {
		return *m.Imports[i].Desc.Global, true
	}
	local := int(idx) - m.NumImportedGlobals()
	if local < 0 || local >= len(m.Globals) {
		return GlobalType{}, false
	}
	return m.Globals[local].Type, true
}

// TableTypeAt returns the type of a table in the table index space.
func (m *Module) TableTypeAt(idx uint32) (TableType, bool) {
	if i, ok := m.ImportIndex(KindTable, idx); ok {
		return *m.Imports[i].Desc.Table, true
	}
	local := int(idx) - m.NumImportedTables()
	if local < 0 || local >= len(m.Tables) {
		return TableType{}, false
	}
	return m.Tables[local], true
}

// ImportIndex returns the position in m.Imports of the idx-th import of the
// given kind.
func (m *Module) ImportIndex(kind byte, idx uint32) (int, bool) {
	for i, imp := range m.Imports {
		if imp.Desc.Kind != kind {
			continue
		}
		if idx == 0 {
			return i, true
		}
		idx--
	}
	return 0, false
}

// AddType adds a function type and returns its index, reusing existing if equal
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	idx := uint32(len(m.Types))
	m.Types = append(m.Types, ft)
	return idx
}

// EnsureNames returns m.Names, allocating it when nil.
func (m *Module) EnsureNames() *Names {
	if m.Names == nil {
		m.Names = NewNames()
	}
	return m.Names
}
