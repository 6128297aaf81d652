package opcode

import (
	"testing"

	"github.com/wippyai/wasm-wat/wasm"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		opcode   byte
		sub      uint32
		prefixed bool
		imm      wasm.ImmKind
	}{
		// Control
		{name: "unreachable", opcode: 0x00},
		{name: "br", opcode: 0x0C, imm: wasm.ImmLabel},
		{name: "br_table", opcode: 0x0E, imm: wasm.ImmBrTable},
		{name: "call_indirect", opcode: 0x11, imm: wasm.ImmCallIndirect},
		{name: "return_call", opcode: 0x12, imm: wasm.ImmFunc},

		// Variables
		{name: "local.get", opcode: 0x20, imm: wasm.ImmLocal},
		{name: "global.set", opcode: 0x24, imm: wasm.ImmGlobal},

		// Memory
		{name: "i32.load", opcode: 0x28, imm: wasm.ImmMemArg},
		{name: "memory.grow", opcode: 0x40, imm: wasm.ImmMemory},

		// Constants and numerics
		{name: "i64.const", opcode: 0x42, imm: wasm.ImmI64},
		{name: "f64.add", opcode: 0xA0},

		// Prefixed
		{name: "i32.trunc_sat_f32_s", opcode: wasm.OpPrefixMisc, prefixed: true},
		{name: "memory.init", opcode: wasm.OpPrefixMisc, sub: 8, prefixed: true, imm: wasm.ImmMemoryInit},
		{name: "table.copy", opcode: wasm.OpPrefixMisc, sub: 14, prefixed: true, imm: wasm.ImmTableCopy},

		// Legacy spellings
		{name: "get_local", opcode: 0x20, imm: wasm.ImmLocal},
		{name: "grow_memory", opcode: 0x40, imm: wasm.ImmMemory},
		{name: "i32.wrap/i64", opcode: 0xA7},
		{name: "f64.convert_u/i64", opcode: 0xBA},
		{name: "i64.trunc_u:sat/f64", opcode: wasm.OpPrefixMisc, sub: 7, prefixed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := Lookup(tt.name)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.name)
			}
			if info.Op != tt.opcode || info.Prefixed != tt.prefixed || info.Sub != tt.sub || info.Imm != tt.imm {
				t.Errorf("Lookup(%q) = %+v", tt.name, info)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, name := range []string{"", "i32.foo", "module", "then"} {
		if _, ok := Lookup(name); ok {
			t.Errorf("Lookup(%q) should fail", name)
		}
	}
}

func TestUnsupported(t *testing.T) {
	tests := []struct {
		name    string
		feature string
		ok      bool
	}{
		{"v128.const", "SIMD", true},
		{"i32x4.add", "SIMD", true},
		{"i32.atomic.rmw.add", "threads", true},
		{"memory.atomic.notify", "threads", true},
		{"try", "exception handling", true},
		{"call_ref", "typed function references", true},
		{"i32.add", "", false},
		{"bogus", "", false},
	}

	for _, tt := range tests {
		feature, ok := Unsupported(tt.name)
		if feature != tt.feature || ok != tt.ok {
			t.Errorf("Unsupported(%q) = %q, %v; want %q, %v", tt.name, feature, ok, tt.feature, tt.ok)
		}
	}
}

func TestNaturalAlign(t *testing.T) {
	tests := map[string]uint32{
		"i32.load8_u":  1,
		"i32.load16_s": 2,
		"i32.load":     4,
		"f64.store":    8,
	}
	for name, want := range tests {
		info, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) not found", name)
		}
		if got := NaturalAlign(info); got != want {
			t.Errorf("NaturalAlign(%s) = %d, want %d", name, got, want)
		}
	}
}
