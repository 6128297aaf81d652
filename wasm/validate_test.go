package wasm_test

import (
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-wat/wasm"
)

func i32Const(v int32) []byte {
	return wasm.ConstExpr(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}})
}

func TestValidateSample(t *testing.T) {
	m, err := wasm.ParseModuleValidate(sampleModule(t))
	if err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}
	if m.NumFuncs() != 1 {
		t.Errorf("expected 1 function, got %d", m.NumFuncs())
	}
}

func TestValidateModule(t *testing.T) {
	max := uint32(1)
	tests := []struct {
		name string
		m    *wasm.Module
		want string
	}{
		{
			name: "type index",
			m:    &wasm.Module{Funcs: []uint32{3}, Code: []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}}},
			want: "type index out of range",
		},
		{
			name: "duplicate export",
			m: &wasm.Module{
				Memories: []wasm.MemoryType{{}},
				Exports:  []wasm.Export{{Name: "m", Kind: wasm.KindMemory}, {Name: "m", Kind: wasm.KindMemory}},
			},
			want: "duplicate export",
		},
		{
			name: "export index",
			m:    &wasm.Module{Exports: []wasm.Export{{Name: "f", Kind: wasm.KindFunc, Idx: 0}}},
			want: "index out of range",
		},
		{
			name: "memory limits",
			m:    &wasm.Module{Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 2, Max: &max}}}},
			want: "must be >= initial size",
		},
		{
			name: "global init type",
			m: &wasm.Module{Globals: []wasm.Global{{
				Type: wasm.GlobalType{ValType: wasm.ValI64},
				Init: i32Const(1),
			}}},
			want: "type mismatch in constant expression",
		},
		{
			name: "start signature",
			m: &wasm.Module{
				Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
				Funcs: []uint32{0},
				Start: new(uint32),
				Code:  []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
			},
			want: "start function must have type",
		},
		{
			name: "data count",
			m: &wasm.Module{
				DataCount: new(uint32),
				Memories:  []wasm.MemoryType{{}},
				Data:      []wasm.DataSegment{{Offset: i32Const(0)}},
			},
			want: "DataCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateFunctionBodies(t *testing.T) {
	i32 := []wasm.ValType{wasm.ValI32}
	tests := []struct {
		name    string
		results []wasm.ValType
		code    []byte
		want    string
	}{
		{"ok", i32, []byte{wasm.OpI32Const, 0x01, wasm.OpEnd}, ""},
		{"missing result", i32, []byte{wasm.OpEnd}, "type mismatch"},
		{"extra value", nil, []byte{wasm.OpI32Const, 0x01, wasm.OpEnd}, "remain on the stack"},
		{"unreachable tail", i32, []byte{wasm.OpUnreachable, wasm.OpEnd}, ""},
		{"bad local", nil, []byte{wasm.OpLocalGet, 0x02, wasm.OpDrop, wasm.OpEnd}, "local variable out of range"},
		{"bad label", nil, []byte{wasm.OpBr, 0x03, wasm.OpEnd}, "invalid depth"},
		{"bad call", nil, []byte{wasm.OpCall, 0x09, wasm.OpEnd}, "function index out of range"},
		{"block result", i32, []byte{wasm.OpBlock, 0x7F, wasm.OpI32Const, 0x00, wasm.OpEnd, wasm.OpEnd}, ""},
		{"else without if", nil, []byte{wasm.OpElse, wasm.OpEnd}, "else does not match"},
		{"unclosed block", nil, []byte{wasm.OpBlock, 0x40, wasm.OpEnd}, "must end with end"},
		{"memory missing", nil, []byte{wasm.OpI32Const, 0x00, 0x28, 0x02, 0x00, wasm.OpDrop, wasm.OpEnd}, "memory index out of range"},
		{"wrong result type", i32, []byte{wasm.OpF32Const, 0x00, 0x00, 0x80, 0x3F, wasm.OpEnd}, "expected [i32] but got [f32]"},
		{"wrong operand type", i32, []byte{wasm.OpI64Const, 0x01, wasm.OpI32Const, 0x01, 0x6A, wasm.OpEnd}, "type mismatch in i32.add, expected [i32] but got [i64]"},
		{"comparison result", i32, []byte{wasm.OpI64Const, 0x01, 0x50, wasm.OpEnd}, ""},
		{"conversion source", i32, []byte{wasm.OpI32Const, 0x01, 0xA7, wasm.OpEnd}, "type mismatch in i32.wrap_i64, expected [i64] but got [i32]"},
		{"if condition", nil, []byte{wasm.OpI64Const, 0x00, wasm.OpIf, 0x40, wasm.OpEnd, wasm.OpEnd}, "if condition"},
		{"block result type", i32, []byte{wasm.OpBlock, 0x7E, wasm.OpI64Const, 0x00, wasm.OpEnd, wasm.OpEnd}, "expected [i32] but got [i64]"},
		{"unreachable operands", i32, []byte{wasm.OpUnreachable, 0x6A, wasm.OpEnd}, ""},
		{"select mixed", nil, []byte{wasm.OpI32Const, 0x01, wasm.OpI64Const, 0x01, wasm.OpI32Const, 0x00, wasm.OpSelect, wasm.OpDrop, wasm.OpEnd}, "type mismatch in select"},
		{"select ok", i32, []byte{wasm.OpI32Const, 0x01, wasm.OpI32Const, 0x02, wasm.OpI32Const, 0x00, wasm.OpSelect, wasm.OpEnd}, ""},
		{"ref.is_null numeric", i32, []byte{wasm.OpI32Const, 0x00, wasm.OpRefIsNull, wasm.OpEnd}, "expected reference"},
		{"ref.is_null ok", i32, []byte{wasm.OpRefNull, 0x70, wasm.OpRefIsNull, wasm.OpEnd}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &wasm.Module{
				Types: []wasm.FuncType{{Results: tt.results}},
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{{Code: tt.code}},
			}
			err := m.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestValidateTypedLocalsAndCalls(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want string
	}{
		{"local ok", []byte{wasm.OpLocalGet, 0x00, wasm.OpLocalSet, 0x02, wasm.OpEnd}, ""},
		{"local set wrong type", []byte{wasm.OpLocalGet, 0x00, wasm.OpLocalSet, 0x01, wasm.OpEnd}, "type mismatch in local.set, expected [f64] but got [i32]"},
		{"call ok", []byte{wasm.OpLocalGet, 0x00, wasm.OpLocalGet, 0x01, wasm.OpCall, 0x00, wasm.OpEnd}, ""},
		{"call wrong argument", []byte{wasm.OpLocalGet, 0x01, wasm.OpLocalGet, 0x01, wasm.OpCall, 0x00, wasm.OpEnd}, "type mismatch in call, expected [i32] but got [f64]"},
		{"global set wrong type", []byte{wasm.OpLocalGet, 0x01, wasm.OpGlobalSet, 0x00, wasm.OpEnd}, "type mismatch in global.set, expected [i64] but got [f64]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &wasm.Module{
				Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32, wasm.ValF64}}},
				Funcs: []uint32{0},
				Globals: []wasm.Global{{
					Type: wasm.GlobalType{ValType: wasm.ValI64, Mutable: true},
					Init: wasm.ConstExpr(wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{}}),
				}},
				Code: []wasm.FuncBody{{
					Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}},
					Code:   tt.code,
				}},
			}
			err := m.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsEveryError(t *testing.T) {
	m := &wasm.Module{
		Exports: []wasm.Export{
			{Name: "a", Kind: wasm.KindFunc, Idx: 4},
			{Name: "b", Kind: wasm.KindGlobal, Idx: 2},
		},
	}
	err := m.Validate()
	if got := len(multierr.Errors(err)); got != 2 {
		t.Errorf("expected 2 errors, got %d: %v", got, err)
	}
}
