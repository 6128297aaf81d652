package wasm

import (
	"testing"
)

func TestImmSpaces(t *testing.T) {
	tests := []struct {
		kind ImmKind
		want []Space
	}{
		{ImmNone, nil},
		{ImmI32, nil},
		{ImmFunc, []Space{SpaceFunc}},
		{ImmCallIndirect, []Space{SpaceType, SpaceTable}},
		{ImmMemoryInit, []Space{SpaceData, SpaceMemory}},
		{ImmTableInit, []Space{SpaceElem, SpaceTable}},
		{ImmTableCopy, []Space{SpaceTable, SpaceTable}},
	}
	for _, tt := range tests {
		got := ImmSpaces(tt.kind)
		if len(got) != len(tt.want) {
			t.Errorf("ImmSpaces(%d) = %v, want %v", tt.kind, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ImmSpaces(%d) = %v, want %v", tt.kind, got, tt.want)
			}
		}
	}
}

func TestWalkOperands(t *testing.T) {
	start := uint32(1)
	m := &Module{
		Types: []FuncType{{}},
		Imports: []Import{
			{Module: "env", Name: "f", Desc: ImportDesc{Kind: KindFunc, TypeIdx: 0}},
		},
		Funcs:   []uint32{0},
		Globals: []Global{{Type: GlobalType{ValType: ValI32}, Init: ConstExpr(Instruction{Opcode: OpI32Const, Imm: I32Imm{}})}},
		Exports: []Export{{Name: "run", Kind: KindFunc, Idx: 1}},
		Start:   &start,
		Elements: []Element{{
			Mode:     SegmentActive,
			Offset:   ConstExpr(Instruction{Opcode: OpGlobalGet, Imm: GlobalImm{GlobalIdx: 0}}),
			FuncIdxs: []uint32{0, 1},
			Type:     ValFuncRef,
		}},
		Code: []FuncBody{{Code: EncodeInstructions([]Instruction{
			{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}},
			{Opcode: OpCall, Imm: CallImm{FuncIdx: 0}},
			{Opcode: OpBr, Imm: BranchImm{LabelIdx: 0}},
			{Opcode: OpBr, Imm: BranchImm{LabelIdx: 1}},
			{Opcode: OpEnd},
			{Opcode: OpEnd},
		})}},
	}

	var got []Operand
	if err := m.WalkOperands(func(op Operand) { got = append(got, op) }); err != nil {
		t.Fatalf("WalkOperands: %v", err)
	}

	want := []Operand{
		{Ref: Ref{Site: SiteFuncType, Owner: 0}, Space: SpaceType, Index: 0},
		{Ref: Ref{Site: SiteFuncType, Owner: 1}, Space: SpaceType, Index: 0},
		{Ref: Ref{Site: SiteExport, Owner: 0}, Space: SpaceFunc, Index: 1},
		{Ref: Ref{Site: SiteStart}, Space: SpaceFunc, Index: 1},
		{Ref: Ref{Site: SiteElemTable}, Space: SpaceTable, Index: 0},
		{Ref: Ref{Site: SiteElemOffset}, Space: SpaceGlobal, Index: 0},
		{Ref: Ref{Site: SiteElem, Pos: 0}, Space: SpaceFunc, Index: 0},
		{Ref: Ref{Site: SiteElem, Pos: 1}, Space: SpaceFunc, Index: 1},
		// block at 0, call at 2, br 0 at 4; br 1 targets the function frame.
		{Ref: Ref{Site: SiteCode, Owner: 1, Pos: 2}, Space: SpaceFunc, Index: 0},
		{Ref: Ref{Site: SiteCode, Owner: 1, Pos: 4}, Space: SpaceLabel, Index: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d operands, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("operand %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWalkOperandsLabelOrdinals(t *testing.T) {
	m := &Module{
		Types: []FuncType{{}},
		Funcs: []uint32{0},
		Code: []FuncBody{{Code: EncodeInstructions([]Instruction{
			{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}}, // ordinal 0
			{Opcode: OpEnd},
			{Opcode: OpLoop, Imm: BlockImm{Type: BlockTypeVoid}}, // ordinal 1
			{Opcode: OpBr, Imm: BranchImm{LabelIdx: 0}},
			{Opcode: OpEnd},
			{Opcode: OpEnd},
		})}},
	}

	var labels []uint32
	err := m.WalkOperands(func(op Operand) {
		if op.Space == SpaceLabel {
			labels = append(labels, op.Index)
		}
	})
	if err != nil {
		t.Fatalf("WalkOperands: %v", err)
	}
	if len(labels) != 1 || labels[0] != 1 {
		t.Errorf("label ordinals = %v, want [1]", labels)
	}
}

func TestWalkOperandsMalformedBody(t *testing.T) {
	m := &Module{
		Types: []FuncType{{}},
		Funcs: []uint32{0},
		Code:  []FuncBody{{Code: []byte{OpCall}}},
	}
	if err := m.WalkOperands(func(Operand) {}); err == nil {
		t.Error("expected error for truncated body")
	}
}
