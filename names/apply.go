package names

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
)

// Apply binds every index reference of m whose target has a name, so the
// text printer renders it symbolically. References that point past the end
// of their index space, or at an unnamed item, are left numeric and each is
// reported. The returned error combines those reports with multierr; m is
// usable whatever Apply returns.
func Apply(m *wasm.Module) error {
	n := m.EnsureNames()
	var diags errors.Diagnostics

	sizes := map[wasm.Space]int{
		wasm.SpaceFunc:   m.NumFuncs(),
		wasm.SpaceType:   len(m.Types),
		wasm.SpaceTable:  m.NumTables(),
		wasm.SpaceMemory: m.NumMemories(),
		wasm.SpaceGlobal: m.NumGlobals(),
		wasm.SpaceElem:   len(m.Elements),
		wasm.SpaceData:   len(m.Data),
	}
	imported := uint32(m.NumImportedFuncs())
	bound := 0

	err := m.WalkOperands(func(op wasm.Operand) {
		var (
			name string
			ok   bool
		)
		switch op.Space {
		case wasm.SpaceLocal:
			fn := op.Ref.Owner
			if op.Index >= numLocals(m, fn-imported) {
				diags.Add(outOfRange(op, "local"))
				return
			}
			name, ok = n.GetIn(wasm.SpaceLocal, fn, op.Index)
		case wasm.SpaceLabel:
			name, ok = n.GetIn(wasm.SpaceLabel, op.Ref.Owner, op.Index)
		default:
			if int(op.Index) >= sizes[op.Space] {
				diags.Add(outOfRange(op, op.Space.String()))
				return
			}
			name, ok = n.Get(op.Space, op.Index)
		}
		if !ok || name == "" {
			diags.Add(errors.New(errors.PhaseNames, errors.KindUnresolved).
				Detail("%s: %s %d has no name", site(op.Ref), op.Space, op.Index).Build())
			return
		}
		n.Bind(op.Ref)
		bound++
	})
	if err != nil {
		diags.Add(errors.New(errors.PhaseNames, errors.KindInternal).Detail("walking operands").Cause(err).Build())
	}

	Logger().Debug("applied names", zap.Int("bound", bound), zap.Int("unresolved", diags.Len()))
	return diags.Err()
}

// numLocals returns the params plus declared locals of defined function i.
func numLocals(m *wasm.Module, i uint32) uint32 {
	if int(i) >= len(m.Funcs) || int(i) >= len(m.Code) {
		return 0
	}
	var params int
	if ft := m.TypeAt(m.Funcs[i]); ft != nil {
		params = len(ft.Params)
	}
	return uint32(params) + uint32(m.Code[i].NumLocals())
}

func outOfRange(op wasm.Operand, what string) error {
	return errors.New(errors.PhaseNames, errors.KindOutOfBounds).
		Detail("%s: %s index %d out of range", site(op.Ref), what, op.Index).Build()
}

var siteNames = [...]string{
	wasm.SiteCode:       "function",
	wasm.SiteExport:     "export",
	wasm.SiteStart:      "start",
	wasm.SiteElem:       "element segment",
	wasm.SiteElemExpr:   "element segment",
	wasm.SiteElemTable:  "element segment",
	wasm.SiteElemOffset: "element segment",
	wasm.SiteDataMemory: "data segment",
	wasm.SiteDataOffset: "data segment",
	wasm.SiteGlobalInit: "global",
	wasm.SiteFuncType:   "function",
}

// site describes where a reference lives, e.g. "function 3 at 0x12".
func site(r wasm.Ref) string {
	name := "reference"
	if int(r.Site) < len(siteNames) {
		name = siteNames[r.Site]
	}
	switch r.Site {
	case wasm.SiteStart:
		return name
	case wasm.SiteCode:
		return fmt.Sprintf("%s %d at 0x%x", name, r.Owner, r.Pos)
	}
	return fmt.Sprintf("%s %d", name, r.Owner)
}
