// Package names fills in and resolves the debug names of a module.
//
// Generate gives every unnamed item a name, following the conventions of
// wabt's wasm2wat: imports become "module.field", exported items take their
// export name and the rest get a short prefix plus their index. Apply then
// marks every reference whose target has a name, so the text printer writes
// the reference symbolically.
//
//	if err := names.Generate(m); err != nil {
//		return err
//	}
//	_ = names.Apply(m) // best effort
package names

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
)

// Prefixes for generated names, by index space.
const (
	prefixFunc   = "f"
	prefixType   = "t"
	prefixTable  = "T"
	prefixMemory = "M"
	prefixGlobal = "g"
	prefixElem   = "e"
	prefixData   = "d"
	prefixParam  = "p"
	prefixLocal  = "l"
	prefixBlock  = "B"
	prefixLoop   = "L"
	prefixIf     = "I"
)

// generator assigns names within one module. used tracks the names already
// taken in each module-level space.
type generator struct {
	m     *wasm.Module
	n     *wasm.Names
	used  map[wasm.Space]map[string]bool
	added int
}

// Generate names every unnamed function, type, table, memory, global,
// segment, param, local and label of m. Existing names are kept, so running
// it twice changes nothing. It fails only when m is internally inconsistent,
// in which case m is left untouched.
func Generate(m *wasm.Module) error {
	bodies, err := checkConsistency(m)
	if err != nil {
		return err
	}

	g := &generator{
		m:    m,
		n:    m.EnsureNames(),
		used: map[wasm.Space]map[string]bool{},
	}
	for _, sp := range moduleSpaces {
		taken := map[string]bool{}
		for _, name := range g.n.Map(sp) {
			if name != "" {
				taken[name] = true
			}
		}
		g.used[sp] = taken
	}

	g.fromImports()
	g.fromExports()
	g.indexed(wasm.SpaceGlobal, prefixGlobal, m.NumGlobals())
	g.indexed(wasm.SpaceType, prefixType, len(m.Types))
	g.indexed(wasm.SpaceFunc, prefixFunc, m.NumFuncs())
	g.indexed(wasm.SpaceTable, prefixTable, m.NumTables())
	g.indexed(wasm.SpaceMemory, prefixMemory, m.NumMemories())
	g.indexed(wasm.SpaceData, prefixData, len(m.Data))
	g.indexed(wasm.SpaceElem, prefixElem, len(m.Elements))

	imported := uint32(m.NumImportedFuncs())
	for i, instrs := range bodies {
		fn := imported + uint32(i)
		g.locals(fn, m.TypeAt(m.Funcs[i]), &m.Code[i])
		g.labels(fn, instrs)
	}

	Logger().Debug("generated names", zap.Int("added", g.added))
	return nil
}

var moduleSpaces = []wasm.Space{
	wasm.SpaceFunc, wasm.SpaceType, wasm.SpaceTable, wasm.SpaceMemory,
	wasm.SpaceGlobal, wasm.SpaceElem, wasm.SpaceData,
}

// checkConsistency decodes every body up front so that a failure leaves m
// unchanged.
func checkConsistency(m *wasm.Module) ([][]wasm.Instruction, error) {
	if len(m.Code) != len(m.Funcs) {
		return nil, errors.New(errors.PhaseNames, errors.KindInternal).
			Detail("function count %d does not match code count %d", len(m.Funcs), len(m.Code)).Build()
	}
	for i, imp := range m.Imports {
		if imp.Desc.Kind == wasm.KindFunc && m.TypeAt(imp.Desc.TypeIdx) == nil {
			return nil, errors.New(errors.PhaseNames, errors.KindInternal).
				Detail("import %d: type index %d out of range", i, imp.Desc.TypeIdx).Build()
		}
	}
	imported := m.NumImportedFuncs()
	bodies := make([][]wasm.Instruction, len(m.Code))
	for i, typeIdx := range m.Funcs {
		if m.TypeAt(typeIdx) == nil {
			return nil, errors.New(errors.PhaseNames, errors.KindInternal).
				Detail("function %d: type index %d out of range", imported+i, typeIdx).Build()
		}
		instrs, err := wasm.DecodeInstructions(m.Code[i].Code)
		if err != nil {
			return nil, errors.New(errors.PhaseNames, errors.KindInternal).
				Detail("function %d: undecodable body", imported+i).Cause(err).Build()
		}
		bodies[i] = instrs
	}
	return bodies, nil
}

func (g *generator) fromImports() {
	var counts [wasm.KindGlobal + 1]uint32
	for _, imp := range g.m.Imports {
		if int(imp.Desc.Kind) >= len(counts) {
			continue
		}
		idx := counts[imp.Desc.Kind]
		counts[imp.Desc.Kind]++
		g.bind(kindSpace[imp.Desc.Kind], idx, imp.Module+"."+imp.Name)
	}
}

func (g *generator) fromExports() {
	limits := map[wasm.Space]int{
		wasm.SpaceFunc:   g.m.NumFuncs(),
		wasm.SpaceTable:  g.m.NumTables(),
		wasm.SpaceMemory: g.m.NumMemories(),
		wasm.SpaceGlobal: g.m.NumGlobals(),
	}
	for _, e := range g.m.Exports {
		if int(e.Kind) >= len(kindSpace) {
			continue
		}
		sp := kindSpace[e.Kind]
		if int(e.Idx) < limits[sp] {
			g.bind(sp, e.Idx, e.Name)
		}
	}
}

var kindSpace = [...]wasm.Space{
	wasm.KindFunc:   wasm.SpaceFunc,
	wasm.KindTable:  wasm.SpaceTable,
	wasm.KindMemory: wasm.SpaceMemory,
	wasm.KindGlobal: wasm.SpaceGlobal,
}

func (g *generator) indexed(sp wasm.Space, prefix string, count int) {
	for i := 0; i < count; i++ {
		g.bind(sp, uint32(i), prefix+strconv.Itoa(i))
	}
}

// bind names an unnamed item, adding a ".N" suffix when base is taken.
func (g *generator) bind(sp wasm.Space, idx uint32, base string) {
	if _, ok := g.n.Get(sp, idx); ok {
		return
	}
	name := unique(base, g.used[sp])
	g.used[sp][name] = true
	g.n.Set(sp, idx, name)
	g.added++
}

func unique(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 1; ; i++ {
		name := base + "." + strconv.Itoa(i)
		if !taken[name] {
			return name
		}
	}
}

func (g *generator) locals(fn uint32, ft *wasm.FuncType, body *wasm.FuncBody) {
	params := len(ft.Params)
	total := params + int(body.NumLocals())

	taken := map[string]bool{}
	for _, name := range g.n.Locals[fn] {
		if name != "" {
			taken[name] = true
		}
	}
	for i := 0; i < total; i++ {
		if _, ok := g.n.GetIn(wasm.SpaceLocal, fn, uint32(i)); ok {
			continue
		}
		prefix := prefixLocal
		if i < params {
			prefix = prefixParam
		}
		name := unique(prefix+strconv.Itoa(i), taken)
		taken[name] = true
		g.n.SetIn(wasm.SpaceLocal, fn, uint32(i), name)
		g.added++
	}
}

// labels names blocks by their ordinal. Labels may shadow each other, so no
// uniqueness is enforced.
func (g *generator) labels(fn uint32, instrs []wasm.Instruction) {
	var ordinal uint32
	for _, in := range instrs {
		var prefix string
		switch in.Opcode {
		case wasm.OpBlock:
			prefix = prefixBlock
		case wasm.OpLoop:
			prefix = prefixLoop
		case wasm.OpIf:
			prefix = prefixIf
		default:
			continue
		}
		if _, ok := g.n.GetIn(wasm.SpaceLabel, fn, ordinal); !ok {
			g.n.SetIn(wasm.SpaceLabel, fn, ordinal, prefix+strconv.FormatUint(uint64(ordinal), 10))
			g.added++
		}
		ordinal++
	}
}
