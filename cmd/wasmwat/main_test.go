package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	wasmwat "github.com/wippyai/wasm-wat"
	"github.com/wippyai/wasm-wat/config"
)

const addWat = `(module
  (import "env" "log" (func (param i32)))
  (func $add (export "add") (param i32 i32) (result i32)
    (i32.add (local.get 0) (local.get 1)))
  (func (result i64) i64.const 7))`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConvertsBothWays(t *testing.T) {
	opts := config.NewOptions()
	src := writeTemp(t, "add.wat", addWat)
	binPath := filepath.Join(t.TempDir(), "add.wasm")

	if err := run(src, binPath, opts, false); err != nil {
		t.Fatalf("text to binary: %v", err)
	}
	bin, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatal(err)
	}
	if !isBinary(bin) {
		t.Fatalf("output does not start with the wasm magic: % x", bin[:4])
	}

	textPath := filepath.Join(t.TempDir(), "add.wat")
	if err := run(binPath, textPath, opts, false); err != nil {
		t.Fatalf("binary to text: %v", err)
	}
	text, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "(func $add") {
		t.Errorf("text output lost the function name:\n%s", text)
	}
}

func TestRunList(t *testing.T) {
	src := writeTemp(t, "add.wat", addWat)
	out := filepath.Join(t.TempDir(), "list.txt")

	if err := run(src, out, config.NewOptions(), true); err != nil {
		t.Fatalf("list: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header plus 3 functions:\n%s", len(lines), data)
	}
	for i, want := range []string{"INDEX", "import", "$add", "(;2;)"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
}

func TestRunReportsConversionErrors(t *testing.T) {
	src := writeTemp(t, "bad.wat", "(module (func i32.bogus))")
	err := run(src, filepath.Join(t.TempDir(), "out.wasm"), config.NewOptions(), false)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.HasPrefix(err.Error(), "WAT => module conversion failed: ") {
		t.Errorf("unexpected message %q", err)
	}
}

func TestRenderFunctionsPlain(t *testing.T) {
	funcs := []wasmwat.FunctionSummary{
		{Index: 0, Name: "env.log", Imported: true},
		{Index: 1},
	}
	got := renderFunctions(funcs, false)
	if !strings.Contains(got, "$env.log") || !strings.Contains(got, "(;1;)") {
		t.Errorf("unexpected listing:\n%s", got)
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("plain listing should not contain escape sequences")
	}
}

func TestRenderFunctionsStyled(t *testing.T) {
	funcs := []wasmwat.FunctionSummary{{Index: 0, Name: "main"}}
	got := renderFunctions(funcs, true)
	if !strings.Contains(got, "1 functions") || !strings.Contains(got, "$main") {
		t.Errorf("unexpected listing:\n%s", got)
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"env.log", "", true},
		{"env.log", "LOG", true},
		{"env.log", "run", false},
		{"", "x", false},
	}
	for _, tt := range tests {
		if got := matches(wasmwat.FunctionSummary{Name: tt.name}, tt.filter); got != tt.want {
			t.Errorf("matches(%q, %q) = %v, want %v", tt.name, tt.filter, got, tt.want)
		}
	}
}

func TestBrowserModel(t *testing.T) {
	src := writeTemp(t, "add.wat", addWat)
	m := newBrowserModel(src, config.NewOptions())

	m.Update(m.loadModule())
	if m.err != nil {
		t.Fatalf("load failed: %v", m.err)
	}
	defer m.module.Close()
	if len(m.visible) != 3 {
		t.Fatalf("visible = %v, want all 3 functions", m.visible)
	}

	m.filter.SetValue("add")
	m.applyFilter()
	if len(m.visible) != 1 || m.funcs[m.visible[0]].Name != "add" {
		t.Fatalf("filter kept %v", m.visible)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateDetail {
		t.Fatalf("state = %v, want detail", m.state)
	}
	if view := m.View(); !strings.Contains(view, "(param i32 i32) (result i32)") {
		t.Errorf("detail view lacks the signature:\n%s", view)
	}

	m.Update(m.renderText())
	if m.state != stateText || !strings.Contains(m.text, "(module") {
		t.Errorf("text state = %v, text:\n%s", m.state, m.text)
	}
	if m.module.Empty() {
		t.Error("rendering text should not consume the module")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != stateBrowse {
		t.Errorf("state = %v, want browse", m.state)
	}
}
