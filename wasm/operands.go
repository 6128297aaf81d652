package wasm

import "fmt"

// Operand is one index operand of a module.
type Operand struct {
	Ref   Ref
	Space Space
	// Index is the referenced item. For SpaceLabel it is the ordinal of the
	// target block within its function; for SpaceLocal the local index.
	Index uint32
}

// ImmSpaces returns the index spaces of the immediates of an instruction kind,
// in encoding order. Slot i of a Ref refers to element i.
func ImmSpaces(kind ImmKind) []Space {
	switch kind {
	case ImmBlock:
		return []Space{SpaceType}
	case ImmLabel, ImmBrTable:
		return []Space{SpaceLabel}
	case ImmFunc:
		return []Space{SpaceFunc}
	case ImmCallIndirect:
		return []Space{SpaceType, SpaceTable}
	case ImmLocal:
		return []Space{SpaceLocal}
	case ImmGlobal:
		return []Space{SpaceGlobal}
	case ImmTable:
		return []Space{SpaceTable}
	case ImmMemArg, ImmMemory:
		return []Space{SpaceMemory}
	case ImmMemoryInit:
		return []Space{SpaceData, SpaceMemory}
	case ImmData:
		return []Space{SpaceData}
	case ImmMemoryCopy:
		return []Space{SpaceMemory, SpaceMemory}
	case ImmTableInit:
		return []Space{SpaceElem, SpaceTable}
	case ImmElem:
		return []Space{SpaceElem}
	case ImmTableCopy:
		return []Space{SpaceTable, SpaceTable}
	}
	return nil
}

// WalkOperands calls visit for every index operand of m, in module order.
// Branches to a function's outermost block are skipped: that block has no
// ordinal and cannot be named.
func (m *Module) WalkOperands(visit func(Operand)) error {
	at := func(site Site, owner, pos uint32, slot uint8, space Space, idx uint32) {
		visit(Operand{Ref: Ref{Site: site, Slot: slot, Owner: owner, Pos: pos}, Space: space, Index: idx})
	}

	imported := uint32(0)
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			at(SiteFuncType, imported, 0, 0, SpaceType, imp.Desc.TypeIdx)
			imported++
		}
	}
	for i, typeIdx := range m.Funcs {
		at(SiteFuncType, imported+uint32(i), 0, 0, SpaceType, typeIdx)
	}

	globalBase := uint32(m.NumImportedGlobals())
	for i, g := range m.Globals {
		owner := globalBase + uint32(i)
		if err := walkConstExpr(g.Init, func(off int, space Space, idx uint32) {
			at(SiteGlobalInit, owner, uint32(off), 0, space, idx)
		}); err != nil {
			return fmt.Errorf("global %d: %w", owner, err)
		}
	}

	for i, e := range m.Exports {
		if space, ok := exportSpace(e.Kind); ok {
			at(SiteExport, uint32(i), 0, 0, space, e.Idx)
		}
	}
	if m.Start != nil {
		at(SiteStart, 0, 0, 0, SpaceFunc, *m.Start)
	}

	for i := range m.Elements {
		seg := &m.Elements[i]
		owner := uint32(i)
		if seg.Mode == SegmentActive {
			at(SiteElemTable, owner, 0, 0, SpaceTable, seg.TableIdx)
			if err := walkConstExpr(seg.Offset, func(off int, space Space, idx uint32) {
				at(SiteElemOffset, owner, uint32(off), 0, space, idx)
			}); err != nil {
				return fmt.Errorf("element segment %d: %w", i, err)
			}
		}
		for j, f := range seg.FuncIdxs {
			at(SiteElem, owner, uint32(j), 0, SpaceFunc, f)
		}
		for j, expr := range seg.Exprs {
			entry := uint32(j)
			if err := walkConstExpr(expr, func(_ int, space Space, idx uint32) {
				at(SiteElemExpr, owner, entry, 0, space, idx)
			}); err != nil {
				return fmt.Errorf("element segment %d: %w", i, err)
			}
		}
	}

	for i, body := range m.Code {
		fn := imported + uint32(i)
		if err := walkBody(fn, body.Code, visit); err != nil {
			return fmt.Errorf("function %d: %w", fn, err)
		}
	}

	for i := range m.Data {
		seg := &m.Data[i]
		if seg.Mode != SegmentActive {
			continue
		}
		owner := uint32(i)
		at(SiteDataMemory, owner, 0, 0, SpaceMemory, seg.MemIdx)
		if err := walkConstExpr(seg.Offset, func(off int, space Space, idx uint32) {
			at(SiteDataOffset, owner, uint32(off), 0, space, idx)
		}); err != nil {
			return fmt.Errorf("data segment %d: %w", i, err)
		}
	}
	return nil
}

func exportSpace(kind byte) (Space, bool) {
	switch kind {
	case KindFunc:
		return SpaceFunc, true
	case KindTable:
		return SpaceTable, true
	case KindMemory:
		return SpaceMemory, true
	case KindGlobal:
		return SpaceGlobal, true
	}
	return 0, false
}

func walkConstExpr(expr []byte, visit func(off int, space Space, idx uint32)) error {
	instrs, err := DecodeInstructions(expr)
	if err != nil {
		return err
	}
	for _, in := range instrs {
		switch imm := in.Imm.(type) {
		case GlobalImm:
			visit(in.Offset, SpaceGlobal, imm.GlobalIdx)
		case CallImm:
			visit(in.Offset, SpaceFunc, imm.FuncIdx)
		}
	}
	return nil
}

func walkBody(fn uint32, code []byte, visit func(Operand)) error {
	instrs, err := DecodeInstructions(code)
	if err != nil {
		return err
	}

	var open []uint32 // ordinals of enclosing blocks, innermost last
	var next uint32
	for _, in := range instrs {
		at := func(slot uint8, space Space, idx uint32) {
			visit(Operand{
				Ref:   Ref{Site: SiteCode, Slot: slot, Owner: fn, Pos: uint32(in.Offset)},
				Space: space,
				Index: idx,
			})
		}
		label := func(depth uint32) {
			if int(depth) < len(open) {
				at(0, SpaceLabel, open[len(open)-1-int(depth)])
			}
		}

		switch imm := in.Imm.(type) {
		case BlockImm:
			if imm.Type >= 0 {
				at(0, SpaceType, uint32(imm.Type))
			}
			open = append(open, next)
			next++
		case BranchImm:
			label(imm.LabelIdx)
		case BrTableImm:
			for _, l := range imm.Labels {
				label(l)
			}
			label(imm.Default)
		case CallImm:
			at(0, SpaceFunc, imm.FuncIdx)
		case CallIndirectImm:
			at(0, SpaceType, imm.TypeIdx)
			at(1, SpaceTable, imm.TableIdx)
		case LocalImm:
			at(0, SpaceLocal, imm.LocalIdx)
		case GlobalImm:
			at(0, SpaceGlobal, imm.GlobalIdx)
		case TableImm:
			at(0, SpaceTable, imm.TableIdx)
		case MemoryImm:
			at(0, SpaceMemory, imm.MemIdx)
		case MemoryIdxImm:
			at(0, SpaceMemory, imm.MemIdx)
		case MiscImm:
			info, _ := LookupMisc(imm.SubOpcode)
			for slot, space := range ImmSpaces(info.Imm) {
				if slot < len(imm.Operands) {
					at(uint8(slot), space, imm.Operands[slot])
				}
			}
		}
		if in.Opcode == OpEnd && len(open) > 0 {
			open = open[:len(open)-1]
		}
	}
	return nil
}
