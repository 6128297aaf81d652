// Package wat reads and writes the WebAssembly text format.
//
// Parse turns text into a *wasm.Module; Print and Format write one back.
//
//	m, err := wat.Parse("add.wat", `(module
//		(func (export "add") (param i32 i32) (result i32)
//			(i32.add (local.get 0) (local.get 1)))
//	)`)
//
//	text, err := wat.Format(m, wat.PrintOptions{FoldExprs: true})
//
// Symbolic names ($id) are resolved in two passes, so references may point
// forward. Every name written in the source is kept in Module.Names and the
// reference sites that used it are marked bound; the printer writes a name
// at a reference site only when it is bound.
//
// Parse collects unresolved names, duplicate definitions and type use
// mismatches and reports them together; a syntax error ends the parse.
// Each diagnostic is an *errors.Error carrying source:line:col.
//
// Supported WASM 2.0 features:
//   - Functions with params, results, locals (named and indexed)
//   - Multi-value returns and block parameters
//   - Memory, global, table declarations with inline imports and exports
//   - Control flow: if/then/else, loop, block, br, br_if, br_table, return
//   - call, call_indirect, return_call and return_call_indirect
//   - All integer, float, conversion and sign extension instructions
//   - Bulk memory and table instructions, multiple memories
//   - Reference types: funcref, externref, ref.null, ref.func, ref.is_null
//   - Data and elem segments (active, passive, declarative)
//   - Legacy mnemonics such as get_local and i32.trunc_s/f32
//
// Not supported: SIMD (v128), threads/atomics, exception handling, GC types,
// memory64, and the (module binary ...) and (module quote ...) forms.
package wat
