// Package wasmwat converts WebAssembly modules between the text format (WAT)
// and the binary format (WASM).
//
// Every conversion runs the same stages: decode (text or binary into a
// *wasm.Module), optional transforms (validation, name generation, name
// application) and encode (module into text or binary). Six operations
// compose them:
//
//	bin, err := wasmwat.TextToBinary("add.wat", src, wasmwat.DefaultDecodeConfig(), wasmwat.DefaultEncodeConfig())
//	text, err := wasmwat.BinaryToText("add.wasm", bin, wasmwat.DefaultDecodeConfig(), wasmwat.DefaultEncodeConfig())
//
//	h, err := wasmwat.BinaryToModule("add.wasm", bin, wasmwat.DefaultDecodeConfig())
//	defer h.Close()
//	funcs, err := wasmwat.ListFunctions(h)
//	text, err := wasmwat.ModuleToText(h, wasmwat.EncodeConfig{FoldExprs: true})
//
// # Architecture Overview
//
//	wasmwat/       Pipeline, module handle, configuration and introspection
//	├── wasm/      Module IR, binary decoder, encoder and validator
//	├── wat/       Text parser and printer
//	├── names/     Name generation and reference binding
//	├── engine/    Optional wazero compile check
//	├── config/    Options loaded from YAML and the environment
//	├── errors/    Structured diagnostics
//	└── cmd/       wasmwat command: convert, list, browse
//
// # Errors
//
// A failed operation returns nothing but a *errors.ConversionError. Its
// message is the direction prefix, for example "WASM => module conversion
// failed: ", followed by every diagnostic on its own line. Each diagnostic is
// an *errors.Error and can be matched by stage:
//
//	if errors.Is(err, wasmerrors.ErrValidation) { ... }
//
// Name application is best effort; its failures are logged at debug level
// and never returned.
//
// # Ownership
//
// A Module handle owns at most one module. Release and Move hand the module
// on and leave the handle empty; ModuleToText, ModuleToBinary and
// ListFunctions only borrow it. Handles must not be copied.
package wasmwat
