// Package errors provides structured diagnostics for the conversion pipeline.
//
// Each diagnostic is an *Error categorized by Phase (which stage produced it)
// and Kind (error category), located by line and column for text input or by
// byte offset for binary input.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseParse, errors.KindSyntax).
//		Source("add.wat").
//		At(3, 7).
//		Detail("unexpected token %q", tok).
//		Build()
//
// Stages report into a Diagnostics aggregator, and a failed operation returns
// one *ConversionError carrying every record:
//
//	var diags errors.Diagnostics
//	diags.Add(err1, err2)
//	return diags.Fail(errors.OpTextToModule)
//	// WAT => module conversion failed: add.wat:3:7: unexpected token "x"
//	// add.wat:9:1: unexpected end of input
//
// Match a failure by stage with the sentinels:
//
//	if errors.Is(err, werrors.ErrValidation) { ... }
package errors
