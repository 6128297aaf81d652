// Package wasm holds the in-memory module representation shared by the text
// and binary front ends, together with the binary decoder, encoder and
// validator.
//
// # Supported Features
//
//	WebAssembly 2.0:
//	  - Core value types (i32, i64, f32, f64) and reference types
//	  - Multi-value blocks and functions
//	  - Sign extension and non-trapping float-to-int conversions
//	  - Bulk memory and table operations
//	  - Multiple memories
//
//	Post-2.0 Proposals:
//	  - Tail calls (return_call, return_call_indirect)
//
// SIMD, threads, exception handling, GC and memory64 inputs are rejected with
// an *UnsupportedError.
//
// # Decoding
//
//	d := wasm.Decoder{ReadDebugNames: true, StopOnFirstError: true}
//	module, err := d.Decode(data)
//
// Errors carry the absolute input offset (see ErrorOffset). When
// StopOnFirstError is false every malformed section is reported; the
// individual failures are available through multierr.Errors.
//
// # Encoding
//
//	e := wasm.Encoder{CanonicalizeLEBs: true, WriteDebugNames: true}
//	out, err := e.Encode(module)
//
// With Relocatable set the output also carries "linking" and "reloc.CODE"
// sections, and every function, type and global index in code is written as
// a five byte LEB.
//
// # Names
//
// Debug names live in Module.Names, keyed by index space. Names.Bound marks
// individual index operands that the text printer renders by name.
package wasm
