package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseParse    Phase = "parse"    // WAT lexing and parsing
	PhaseDecode   Phase = "decode"   // WASM binary reading
	PhaseValidate Phase = "validate" // module validation
	PhaseNames    Phase = "names"    // name generation and resolution
	PhaseWrite    Phase = "write"    // text or binary output
)

// Kind categorizes the error
type Kind string

const (
	KindSyntax       Kind = "syntax"
	KindMalformed    Kind = "malformed"
	KindInvalid      Kind = "invalid"
	KindUnsupported  Kind = "unsupported"
	KindUnresolved   Kind = "unresolved"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindInternal     Kind = "internal"
	KindInvalidInput Kind = "invalid_input"
	KindIO           Kind = "io"
)

// Error is a single diagnostic record.
//
// Text diagnostics carry Line and Column (1-based). Binary diagnostics carry
// a byte Offset; a negative Offset means the location is unknown.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Source string
	Detail string
	Line   int
	Column int
	Offset int
}

// Error renders the diagnostic as "source:line:col: detail" for text input
// and "source:0xoffset: detail" for binary input.
func (e *Error) Error() string {
	var b strings.Builder

	loc := e.location()
	if loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}

	if e.Detail != "" {
		b.WriteString(e.Detail)
	} else {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
		b.WriteString(string(e.Kind))
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) location() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s:%d:%d", e.Source, e.Line, e.Column)
	case e.Offset >= 0 && e.Phase == PhaseDecode:
		return fmt.Sprintf("%s:0x%06x", e.Source, e.Offset)
	default:
		return e.Source
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty Kind
// matches every error of the same phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return e.Phase == t.Phase
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Sentinels for matching diagnostics by stage with errors.Is.
var (
	ErrParse          = &Error{Phase: PhaseParse}
	ErrDecode         = &Error{Phase: PhaseDecode}
	ErrValidation     = &Error{Phase: PhaseValidate}
	ErrWrite          = &Error{Phase: PhaseWrite}
	ErrNameResolution = &Error{Phase: PhaseNames}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Source sets the diagnostic label of the input
func (b *Builder) Source(name string) *Builder {
	b.err.Source = name
	return b
}

// At sets a 1-based line and column
func (b *Builder) At(line, col int) *Builder {
	b.err.Line = line
	b.err.Column = col
	return b
}

// Offset sets a byte offset into binary input
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Convenience constructors for common error patterns

// Syntax creates a text parse error at a source position
func Syntax(source string, line, col int, detail string) *Error {
	return New(PhaseParse, KindSyntax).Source(source).At(line, col).Detail("%s", detail).Build()
}

// Malformed creates a binary decode error at a byte offset
func Malformed(source string, offset int, cause error) *Error {
	return New(PhaseDecode, KindMalformed).Source(source).Offset(offset).Detail("%s", cause.Error()).Build()
}

// Invalid creates a validation error
func Invalid(source string, detail string) *Error {
	return New(PhaseValidate, KindInvalid).Source(source).Detail("%s", detail).Build()
}

// Unsupported creates an error for a construct outside the supported feature set
func Unsupported(phase Phase, what string) *Error {
	return New(phase, KindUnsupported).Detail("unsupported: %s", what).Build()
}

// Unresolved creates a name resolution error for a dangling reference
func Unresolved(what string, index uint32) *Error {
	return New(PhaseNames, KindUnresolved).Detail("unresolved %s reference %d", what, index).Build()
}

// Internal creates an internal consistency error
func Internal(phase Phase, detail string) *Error {
	return New(phase, KindInternal).Detail("%s", detail).Build()
}

// InvalidInput creates an error for an unusable argument
func InvalidInput(phase Phase, detail string) *Error {
	return New(phase, KindInvalidInput).Detail("%s", detail).Build()
}

// WriteFailed creates the generic output error. Writers do not produce
// per-item diagnostics, so the message only names the target format.
func WriteFailed(format string, cause error) *Error {
	return New(PhaseWrite, KindIO).Detail("failed to write module into %s", format).Cause(cause).Build()
}
