package names

import (
	stderrors "errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat"
)

const sample = `(module
  (import "env" "log" (func (param i32)))
  (import "env" "mem" (memory 1))
  (global i32 (i32.const 0))
  (func (export "run") (param i32) (local i64)
    block
      loop
        i32.const 0
        if
        end
      end
    end)
  (func $f3)
  (func)
  (table 1 funcref)
  (elem (i32.const 0) func 1)
  (data (i32.const 0) "x"))`

func mustParse(t *testing.T, src string) *wasm.Module {
	t.Helper()
	m, err := wat.Parse("test.wat", src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

func TestGenerate(t *testing.T) {
	m := mustParse(t, sample)
	if err := Generate(m); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	n := m.Names

	module := []struct {
		space wasm.Space
		idx   uint32
		want  string
	}{
		{wasm.SpaceFunc, 0, "env.log"},
		{wasm.SpaceFunc, 1, "run"},
		{wasm.SpaceFunc, 2, "f3"},
		{wasm.SpaceFunc, 3, "f3.1"},
		{wasm.SpaceType, 0, "t0"},
		{wasm.SpaceType, 1, "t1"},
		{wasm.SpaceMemory, 0, "env.mem"},
		{wasm.SpaceGlobal, 0, "g0"},
		{wasm.SpaceTable, 0, "T0"},
		{wasm.SpaceElem, 0, "e0"},
		{wasm.SpaceData, 0, "d0"},
	}
	for _, tt := range module {
		if got, _ := n.Get(tt.space, tt.idx); got != tt.want {
			t.Errorf("%s %d = %q, want %q", tt.space, tt.idx, got, tt.want)
		}
	}

	perFunc := []struct {
		space wasm.Space
		idx   uint32
		want  string
	}{
		{wasm.SpaceLocal, 0, "p0"},
		{wasm.SpaceLocal, 1, "l1"},
		{wasm.SpaceLabel, 0, "B0"},
		{wasm.SpaceLabel, 1, "L1"},
		{wasm.SpaceLabel, 2, "I2"},
	}
	for _, tt := range perFunc {
		if got, _ := n.GetIn(tt.space, 1, tt.idx); got != tt.want {
			t.Errorf("func 1 %s %d = %q, want %q", tt.space, tt.idx, got, tt.want)
		}
	}
	if _, ok := n.GetIn(wasm.SpaceLocal, 0, 0); ok {
		t.Error("imported function should have no local names")
	}
}

func TestGenerateIdempotent(t *testing.T) {
	m := mustParse(t, sample)
	if err := Generate(m); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	first, err := wat.Format(m, wat.PrintOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	if err := Generate(m); err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	second, err := wat.Format(m, wat.PrintOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if first != second {
		t.Errorf("second run changed names\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestGenerateKeepsExistingNames(t *testing.T) {
	m := mustParse(t, `(module (func $main (param $x i32) (local i32)) (export "entry" (func $main)))`)
	if err := Generate(m); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got, _ := m.Names.Get(wasm.SpaceFunc, 0); got != "main" {
		t.Errorf("func 0 = %q, want main", got)
	}
	if got, _ := m.Names.GetIn(wasm.SpaceLocal, 0, 0); got != "x" {
		t.Errorf("param 0 = %q, want x", got)
	}
	if got, _ := m.Names.GetIn(wasm.SpaceLocal, 0, 1); got != "l1" {
		t.Errorf("local 1 = %q, want l1", got)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  *wasm.Module
		msg  string
	}{
		{
			"code count mismatch",
			&wasm.Module{Types: []wasm.FuncType{{}}, Funcs: []uint32{0}},
			"does not match code count",
		},
		{
			"type out of range",
			&wasm.Module{Funcs: []uint32{2}, Code: []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}}},
			"type index 2 out of range",
		},
		{
			"import type out of range",
			&wasm.Module{Imports: []wasm.Import{{Module: "m", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}}}},
			"import 0",
		},
		{
			"undecodable body",
			&wasm.Module{Types: []wasm.FuncType{{}}, Funcs: []uint32{0}, Code: []wasm.FuncBody{{Code: []byte{wasm.OpI32Const}}}},
			"undecodable body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Generate(tt.mod)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not contain %q", err, tt.msg)
			}
			if !stderrors.Is(err, errors.ErrNameResolution) {
				t.Errorf("error %v is not a names error", err)
			}
			if tt.mod.Names != nil {
				t.Error("failed Generate should not touch names")
			}
		})
	}
}

func TestApplyAfterGenerate(t *testing.T) {
	m := mustParse(t, sample)
	if err := Generate(m); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := Apply(m); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	text, err := wat.Format(m, wat.PrintOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	for _, want := range []string{
		"(func $run (type $t0)",
		"func $run)",
		`(export "run" (func $run))`,
		`(data $d0 (memory $env.mem) (i32.const 0) "x")`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestApplyBindsLabelsAndLocals(t *testing.T) {
	m := mustParse(t, "(module (func (param i32) (block (br_if 0 (local.get 0)))))")
	if err := Generate(m); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := Apply(m); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	text, err := wat.Format(m, wat.PrintOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	for _, want := range []string{"block $B0", "local.get $p0", "br_if $B0"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestApplyTolerance(t *testing.T) {
	m := mustParse(t, `(module (func $a call 1) (func) (export "a" (func 0)))`)

	err := Apply(m)
	if err == nil {
		t.Fatal("expected unresolved references to be reported")
	}
	if !stderrors.Is(err, errors.ErrNameResolution) {
		t.Errorf("error %v is not a names error", err)
	}
	// two type uses of the unnamed type and the call to the unnamed function
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("got %d reports, want 3: %v", got, err)
	}
	if !m.Names.IsBound(wasm.Ref{Site: wasm.SiteExport, Owner: 0}) {
		t.Error("export of a named function should be bound")
	}

	text, err := wat.Format(m, wat.PrintOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(text, "call 1") {
		t.Errorf("unresolved call should stay numeric:\n%s", text)
	}
}

func TestApplyOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		msg  string
	}{
		{"call", []byte{wasm.OpCall, 5, wasm.OpEnd}, "func index 5 out of range"},
		{"local", []byte{wasm.OpLocalGet, 3, wasm.OpDrop, wasm.OpEnd}, "local index 3 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &wasm.Module{
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{0},
				Code:  []wasm.FuncBody{{Code: tt.code}},
			}
			m.EnsureNames().Set(wasm.SpaceType, 0, "t")

			err := Apply(m)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not contain %q", err, tt.msg)
			}
			var ne *errors.Error
			if !stderrors.As(err, &ne) || ne.Kind != errors.KindOutOfBounds {
				t.Errorf("want out of bounds error, got %v", err)
			}
		})
	}
}
