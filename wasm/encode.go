package wasm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wippyai/wasm-wat/wasm/internal/binary"
)

// Encoder writes a Module in the binary format.
type Encoder struct {
	// CanonicalizeLEBs writes section and body sizes in their shortest form.
	// Otherwise sizes are padded to five bytes.
	CanonicalizeLEBs bool
	// WriteDebugNames emits the "name" section.
	WriteDebugNames bool
	// Relocatable emits a "linking" section and a "reloc.CODE" section so
	// the output can be consumed by a static linker.
	Relocatable bool
}

// Encode encodes the module with canonical sizes and debug names.
func (m *Module) Encode() ([]byte, error) {
	e := Encoder{CanonicalizeLEBs: true, WriteDebugNames: true}
	return e.Encode(m)
}

// Encode encodes m.
func (e *Encoder) Encode(m *Module) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil module")
	}
	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function count %d does not match body count %d", len(m.Funcs), len(m.Code))
	}

	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	var sections uint32
	section := func(id byte, data []byte) {
		e.writeSection(w, id, data)
		sections++
	}

	// Type section
	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		section(SectionType, sec.Bytes())
	}

	// Import section
	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for i, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(imp.Desc.Kind)
			switch {
			case imp.Desc.Kind == KindFunc:
				sec.WriteU32(imp.Desc.TypeIdx)
			case imp.Desc.Kind == KindTable && imp.Desc.Table != nil:
				writeTableType(sec, *imp.Desc.Table)
			case imp.Desc.Kind == KindMemory && imp.Desc.Memory != nil:
				writeMemoryType(sec, *imp.Desc.Memory)
			case imp.Desc.Kind == KindGlobal && imp.Desc.Global != nil:
				writeGlobalType(sec, *imp.Desc.Global)
			default:
				return nil, fmt.Errorf("import %d: incomplete descriptor of kind %d", i, imp.Desc.Kind)
			}
		}
		section(SectionImport, sec.Bytes())
	}

	// Function section
	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		section(SectionFunction, sec.Bytes())
	}

	// Table section
	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(sec, t)
		}
		section(SectionTable, sec.Bytes())
	}

	// Memory section
	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeMemoryType(sec, mem)
		}
		section(SectionMemory, sec.Bytes())
	}

	// Global section
	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(sec, g.Type)
			sec.WriteBytes(g.Init)
		}
		section(SectionGlobal, sec.Bytes())
	}

	// Export section
	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		section(SectionExport, sec.Bytes())
	}

	// Start section
	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		section(SectionStart, sec.Bytes())
	}

	// Element section
	if len(m.Elements) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Elements)))
		for i := range m.Elements {
			if err := writeElement(sec, &m.Elements[i]); err != nil {
				return nil, fmt.Errorf("element segment %d: %w", i, err)
			}
		}
		section(SectionElement, sec.Bytes())
	}

	// DataCount section (must appear before Code section if present)
	if m.DataCount != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.DataCount)
		section(SectionDataCount, sec.Bytes())
	}

	// Code section
	var relocs []Relocation
	codeSection := sections
	if len(m.Code) > 0 {
		syms := symbolTable{m: m}
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for i, body := range m.Code {
			bodyBuf := binary.NewWriter()
			bodyBuf.WriteU32(uint32(len(body.Locals)))
			for _, local := range body.Locals {
				bodyBuf.WriteU32(local.Count)
				bodyBuf.Byte(byte(local.ValType))
			}

			var bodyRelocs []Relocation
			if e.Relocatable {
				instrs, err := DecodeInstructions(body.Code)
				if err != nil {
					return nil, fmt.Errorf("function body %d: %w", i, err)
				}
				hook := func(kind RelocType, index uint32, offset int) {
					if kind != RelocTypeIndexLEB {
						index = syms.index(kind, index)
					}
					bodyRelocs = append(bodyRelocs, Relocation{Type: kind, Offset: uint32(offset), Index: index})
				}
				for j := range instrs {
					encodeInstruction(bodyBuf, &instrs[j], hook)
				}
			} else {
				bodyBuf.WriteBytes(body.Code)
			}

			e.writeSize(sec, bodyBuf.Len())
			base := uint32(sec.Len())
			for _, r := range bodyRelocs {
				r.Offset += base
				relocs = append(relocs, r)
			}
			sec.WriteBytes(bodyBuf.Bytes())
		}
		section(SectionCode, sec.Bytes())
	}

	// Data section
	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			switch {
			case d.Mode == SegmentPassive:
				sec.WriteU32(1)
			case d.MemIdx != 0:
				sec.WriteU32(2)
				sec.WriteU32(d.MemIdx)
				sec.WriteBytes(d.Offset)
			default:
				sec.WriteU32(0)
				sec.WriteBytes(d.Offset)
			}
			sec.WriteU32(uint32(len(d.Init)))
			sec.WriteBytes(d.Init)
		}
		section(SectionData, sec.Bytes())
	}

	// Custom sections (at end). Linking metadata from the input is stale once
	// the module has been rewritten, so it is never copied.
	for _, cs := range m.CustomSections {
		if cs.Name == LinkingSectionName || strings.HasPrefix(cs.Name, RelocSectionPrefix) {
			continue
		}
		if cs.Name == NameSectionName && (m.Names != nil || !e.WriteDebugNames) {
			continue
		}
		e.writeCustom(w, cs.Name, cs.Data)
	}

	if e.WriteDebugNames {
		if data := encodeNames(m.Names); len(data) > 0 {
			e.writeCustom(w, NameSectionName, data)
		}
	}

	if e.Relocatable {
		e.writeCustom(w, LinkingSectionName, symbolTable{m: m}.encodeLinking())
		if len(relocs) > 0 {
			e.writeCustom(w, codeRelocSection, encodeReloc(codeSection, relocs))
		}
	}

	return w.Bytes(), nil
}

func (e *Encoder) writeSize(w *binary.Writer, n int) {
	if e.CanonicalizeLEBs {
		w.WriteU32(uint32(n))
		return
	}
	w.WriteU32Padded(uint32(n))
}

func (e *Encoder) writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	e.writeSize(w, len(data))
	w.WriteBytes(data)
}

func (e *Encoder) writeCustom(w *binary.Writer, name string, data []byte) {
	sec := binary.NewWriter()
	sec.WriteName(name)
	sec.WriteBytes(data)
	e.writeSection(w, SectionCustom, sec.Bytes())
}

// writeElement picks the most compact flags encoding the segment allows.
func writeElement(w *binary.Writer, elem *Element) error {
	usesExprs := elem.UsesExprs()
	if !usesExprs && elem.Type != ValFuncRef && elem.Type != 0 {
		return fmt.Errorf("%s segment needs expression entries", elem.Type)
	}

	var flags uint32
	switch elem.Mode {
	case SegmentPassive:
		flags = 0x01
	case SegmentDeclarative:
		flags = 0x03
	default:
		if elem.TableIdx != 0 || (usesExprs && elem.Type != ValFuncRef) {
			flags = 0x02
		}
	}
	if usesExprs {
		flags |= 0x04
	}
	w.WriteU32(flags)

	if flags&0x02 != 0 && flags&0x01 == 0 {
		w.WriteU32(elem.TableIdx)
	}
	if flags&0x01 == 0 {
		w.WriteBytes(elem.Offset)
	}
	if flags&0x03 != 0 {
		if usesExprs {
			w.Byte(byte(elem.Type))
		} else {
			w.Byte(0x00)
		}
	}

	if usesExprs {
		w.WriteU32(uint32(len(elem.Exprs)))
		for _, expr := range elem.Exprs {
			w.WriteBytes(expr)
		}
		return nil
	}
	w.WriteU32(uint32(len(elem.FuncIdxs)))
	for _, idx := range elem.FuncIdxs {
		w.WriteU32(idx)
	}
	return nil
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max == nil {
		w.Byte(LimitsNoMax)
		w.WriteU32(l.Min)
		return
	}
	w.Byte(LimitsHasMax)
	w.WriteU32(l.Min)
	w.WriteU32(*l.Max)
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeMemoryType(w *binary.Writer, m MemoryType) {
	writeLimits(w, m.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
