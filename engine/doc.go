// Package engine checks binary modules against the wazero runtime.
//
// The wasm package validates structure, indices and operand types. A
// Checker additionally asks wazero whether it can compile the module, which
// catches feature and size limits of the engine. The compiled form is
// thrown away:
//
//	c := engine.NewChecker(ctx)
//	defer c.Close(ctx)
//	if err := c.Check(ctx, bin); err != nil {
//		// rejected
//	}
//
// Config.MemoryLimitPages rejects memories whose minimum or declared maximum
// exceeds the limit. Default returns a shared checker that is built lazily.
// wazero implements
// WebAssembly 2.0, so modules using tail calls compile only under wat and
// wasm, not under the engine.
package engine
