package errors

import (
	stderrors "errors"
	"strings"

	"go.uber.org/multierr"
)

// Op names a conversion direction and forms the failure prefix.
type Op string

const (
	OpTextToModule   Op = "WAT => module"
	OpBinaryToModule Op = "WASM => module"
	OpModuleToText   Op = "module => WAT"
	OpModuleToBinary Op = "module => WASM"
)

// Diagnostics accumulates diagnostic records in the order they are reported.
// The zero value is ready to use.
type Diagnostics struct {
	err error
}

// Add appends one or more errors. Nil errors are ignored and errors produced
// by multierr are flattened into their parts.
func (d *Diagnostics) Add(errs ...error) {
	for _, err := range errs {
		d.err = multierr.Append(d.err, err)
	}
}

// Len returns the number of accumulated records.
func (d *Diagnostics) Len() int {
	return len(multierr.Errors(d.err))
}

// Empty reports whether nothing has been recorded.
func (d *Diagnostics) Empty() bool {
	return d.err == nil
}

// Errors returns the accumulated records in order.
func (d *Diagnostics) Errors() []error {
	return multierr.Errors(d.err)
}

// Err returns the combined error, or nil when empty.
func (d *Diagnostics) Err() error {
	return d.err
}

// String renders the records one per line.
func (d *Diagnostics) String() string {
	return render(d.Errors())
}

// Fail wraps the accumulated records in a ConversionError for op. It returns
// nil when nothing has been recorded.
func (d *Diagnostics) Fail(op Op) error {
	if d.err == nil {
		return nil
	}
	return &ConversionError{Op: op, Diagnostics: d.Errors()}
}

func render(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// ConversionError is the single error a failed pipeline operation returns.
type ConversionError struct {
	Op          Op
	Diagnostics []error
}

// Error renders "<op> conversion failed: " followed by the diagnostics,
// newline-joined.
func (e *ConversionError) Error() string {
	return string(e.Op) + " conversion failed: " + render(e.Diagnostics)
}

// Unwrap exposes every diagnostic to errors.Is and errors.As.
func (e *ConversionError) Unwrap() []error {
	return e.Diagnostics
}

// Phase returns the phase of the first structured diagnostic.
func (e *ConversionError) Phase() Phase {
	for _, d := range e.Diagnostics {
		var se *Error
		if stderrors.As(d, &se) {
			return se.Phase
		}
	}
	return ""
}
