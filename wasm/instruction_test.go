package wasm_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wippyai/wasm-wat/wasm"
)

func TestInstructionRoundTrip(t *testing.T) {
	tests := []wasm.Instruction{
		{Opcode: wasm.OpUnreachable},
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeI32}},
		{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: 3}},
		{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 1}},
		{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1, 2}, Default: 3}},
		{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 300}},
		{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 1, TableIdx: 2}},
		{Opcode: wasm.OpReturnCall, Imm: wasm.CallImm{FuncIdx: 10}},
		{Opcode: wasm.OpSelectType, Imm: wasm.SelectTypeImm{Types: []wasm.ValType{wasm.ValExtern}}},
		{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: 7}},
		{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: 2}},
		{Opcode: 0x28, Imm: wasm.MemoryImm{Align: 2, Offset: 1024}},
		{Opcode: 0x36, Imm: wasm.MemoryImm{Align: 2, Offset: 8, MemIdx: 1}},
		{Opcode: 0x40, Imm: wasm.MemoryIdxImm{MemIdx: 0}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: -12345}},
		{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 1 << 40}},
		{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Bits: 0x7FC00001}},
		{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Bits: 0x400921FB54442D18}},
		{Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.ValFuncRef}},
		{Opcode: wasm.OpRefFunc, Imm: wasm.CallImm{FuncIdx: 4}},
		{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryInit, Operands: []uint32{1, 0}}},
		{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscTableCopy, Operands: []uint32{0, 1}}},
		{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: 0x00}}, // i32.trunc_sat_f32_s
	}

	for _, tt := range tests {
		name := tt.Info().Name
		t.Run(name, func(t *testing.T) {
			encoded := wasm.EncodeInstructions([]wasm.Instruction{tt})
			decoded, err := wasm.DecodeInstructions(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(decoded) != 1 {
				t.Fatalf("expected 1 instruction, got %d", len(decoded))
			}
			again := wasm.EncodeInstructions(decoded)
			if !bytes.Equal(encoded, again) {
				t.Errorf("re-encoding changed bytes: %x != %x", again, encoded)
			}
			if decoded[0].Info().Name != name {
				t.Errorf("name: got %q, want %q", decoded[0].Info().Name, name)
			}
		})
	}
}

func TestDecodeInstructionsOffsets(t *testing.T) {
	code := []byte{wasm.OpI32Const, 0x80, 0x01, wasm.OpDrop, wasm.OpEnd}
	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []int{0, 3, 4} {
		if instrs[i].Offset != want {
			t.Errorf("instruction %d: offset %d, want %d", i, instrs[i].Offset, want)
		}
	}
}

func TestDecodeUnsupportedInstructions(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"simd", []byte{wasm.OpPrefixSIMD, 0x00}},
		{"atomic", []byte{wasm.OpPrefixAtomic, 0x00}},
		{"gc", []byte{wasm.OpPrefixGC, 0x00}},
		{"try", []byte{0x06, 0x40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.DecodeInstructions(tt.code)
			var ue *wasm.UnsupportedError
			if !errors.As(err, &ue) {
				t.Errorf("expected UnsupportedError, got %v", err)
			}
		})
	}
}

func TestDecodeMalformedInstructions(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{0xC5}},
		{"bad block type", []byte{wasm.OpBlock, 0x55}},
		{"select arity", []byte{wasm.OpSelectType, 0x02, 0x7F, 0x7F}},
		{"truncated immediate", []byte{wasm.OpI32Const, 0x80}},
		{"unknown misc", []byte{wasm.OpPrefixMisc, 0x7F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wasm.DecodeInstructions(tt.code); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLookupName(t *testing.T) {
	info, ok := wasm.LookupName("i32.add")
	if !ok || info.Op != 0x6A || info.Pops != 2 || info.Pushes != 1 {
		t.Errorf("i32.add: got %+v, %v", info, ok)
	}
	info, ok = wasm.LookupName("select")
	if !ok || info.Op != wasm.OpSelect {
		t.Errorf("select should resolve to the untyped form, got %+v", info)
	}
	if _, ok := wasm.LookupName("v128.load"); ok {
		t.Error("SIMD mnemonics should not resolve")
	}
}
