package wasmwat

import (
	"strings"

	"github.com/wippyai/wasm-wat/wasm"
)

// FunctionSummary describes one function of a module. Name is empty when
// the function is unnamed and never carries a "$".
type FunctionSummary struct {
	Name     string
	Params   []wasm.ValType
	Results  []wasm.ValType
	Index    uint32
	Imported bool
}

// Signature renders the function type in text form, e.g.
// "(param i32 i32) (result i32)".
func (s FunctionSummary) Signature() string {
	var b strings.Builder
	clause := func(kw string, types []wasm.ValType) {
		if len(types) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("(" + kw)
		for _, t := range types {
			b.WriteString(" " + t.String())
		}
		b.WriteByte(')')
	}
	clause("param", s.Params)
	clause("result", s.Results)
	return b.String()
}

// ListFunctions summarizes every function of the module owned by h in
// function index order: imports first, then definitions. h is not changed.
func ListFunctions(h *Module) ([]FunctionSummary, error) {
	ir := h.IR()
	if ir == nil {
		return nil, ErrEmptyModule
	}
	return Summarize(ir), nil
}

// FunctionNames returns the Name of every function ListFunctions reports.
func FunctionNames(h *Module) ([]string, error) {
	funcs, err := ListFunctions(h)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(funcs))
	for i, f := range funcs {
		out[i] = f.Name
	}
	return out, nil
}

// Summarize is ListFunctions over a bare module.
func Summarize(m *wasm.Module) []FunctionSummary {
	out := make([]FunctionSummary, 0, m.NumFuncs())
	var idx uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		out = append(out, summary(m, idx, imp.Desc.TypeIdx, true))
		idx++
	}
	for _, typeIdx := range m.Funcs {
		out = append(out, summary(m, idx, typeIdx, false))
		idx++
	}
	return out
}

func summary(m *wasm.Module, idx, typeIdx uint32, imported bool) FunctionSummary {
	s := FunctionSummary{Index: idx, Imported: imported}
	s.Name, _ = m.Names.Get(wasm.SpaceFunc, idx)
	if ft := m.TypeAt(typeIdx); ft != nil {
		s.Params = ft.Params
		s.Results = ft.Results
	}
	return s
}
