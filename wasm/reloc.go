package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-wat/wasm/internal/binary"
)

// RelocType is a relocation entry type of the tool-conventions linking format.
type RelocType byte

const (
	RelocFunctionIndexLEB RelocType = 0
	RelocTypeIndexLEB     RelocType = 6
	RelocGlobalIndexLEB   RelocType = 7
)

func (t RelocType) String() string {
	switch t {
	case RelocFunctionIndexLEB:
		return "R_WASM_FUNCTION_INDEX_LEB"
	case RelocTypeIndexLEB:
		return "R_WASM_TYPE_INDEX_LEB"
	case RelocGlobalIndexLEB:
		return "R_WASM_GLOBAL_INDEX_LEB"
	}
	return fmt.Sprintf("reloc(%d)", byte(t))
}

// Relocation is one entry of a reloc.* section. Offset is relative to the
// start of the target section payload. Index is a symbol index, except for
// type relocations where it is the type index.
type Relocation struct {
	Type   RelocType
	Offset uint32
	Index  uint32
}

const (
	linkingVersion     = 2
	linkingSymbolTable = 8

	symKindFunction = 0
	symKindGlobal   = 2

	symBindingLocal  = 0x02
	symUndefined     = 0x10
	symExplicitName  = 0x40
	codeRelocSection = RelocSectionPrefix + "CODE"
)

// symbolTable assigns one symbol per function followed by one per global.
type symbolTable struct {
	m *Module
}

func (s symbolTable) index(kind RelocType, idx uint32) uint32 {
	if kind == RelocGlobalIndexLEB {
		return uint32(s.m.NumFuncs()) + idx
	}
	return idx
}

// encodeLinking writes the payload of the "linking" custom section.
func (s symbolTable) encodeLinking() []byte {
	m := s.m
	exported := map[[2]uint32]string{}
	for _, e := range m.Exports {
		key := [2]uint32{uint32(e.Kind), e.Idx}
		if _, ok := exported[key]; !ok {
			exported[key] = e.Name
		}
	}

	body := binary.NewWriter()
	numFuncs, numGlobals := m.NumFuncs(), m.NumGlobals()
	body.WriteU32(uint32(numFuncs + numGlobals))

	writeSym := func(kind, externKind byte, space Space, idx uint32, importIdx int, imported bool) {
		body.Byte(kind)
		prefix := "f"
		if kind == symKindGlobal {
			prefix = "g"
		}
		name, named := m.Names.Get(space, idx)
		exportName, isExported := exported[[2]uint32{uint32(externKind), idx}]

		if imported {
			if named && name != m.Imports[importIdx].Name {
				body.WriteU32(symUndefined | symExplicitName)
				body.WriteU32(idx)
				body.WriteName(name)
				return
			}
			body.WriteU32(symUndefined)
			body.WriteU32(idx)
			return
		}

		var flags uint32
		switch {
		case named:
		case isExported:
			name = exportName
		default:
			name = fmt.Sprintf("%s%d", prefix, idx)
		}
		if !isExported {
			flags |= symBindingLocal
		}
		body.WriteU32(flags)
		body.WriteU32(idx)
		body.WriteName(name)
	}

	imported := m.NumImportedFuncs()
	for i := 0; i < numFuncs; i++ {
		importIdx, _ := m.ImportIndex(KindFunc, uint32(i))
		writeSym(symKindFunction, KindFunc, SpaceFunc, uint32(i), importIdx, i < imported)
	}
	imported = m.NumImportedGlobals()
	for i := 0; i < numGlobals; i++ {
		importIdx, _ := m.ImportIndex(KindGlobal, uint32(i))
		writeSym(symKindGlobal, KindGlobal, SpaceGlobal, uint32(i), importIdx, i < imported)
	}

	w := binary.NewWriter()
	w.WriteU32(linkingVersion)
	w.Byte(linkingSymbolTable)
	w.WriteU32(uint32(body.Len()))
	w.WriteBytes(body.Bytes())
	return w.Bytes()
}

// encodeReloc writes the payload of a reloc.* custom section targeting the
// section at position target in the output.
func encodeReloc(target uint32, relocs []Relocation) []byte {
	w := binary.NewWriter()
	w.WriteU32(target)
	w.WriteU32(uint32(len(relocs)))
	for _, r := range relocs {
		w.Byte(byte(r.Type))
		w.WriteU32(r.Offset)
		w.WriteU32(r.Index)
	}
	return w.Bytes()
}
