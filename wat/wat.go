package wat

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/parser"
	"github.com/wippyai/wasm-wat/wat/internal/printer"
)

// PrintOptions controls the layout of printed text.
type PrintOptions = printer.Options

// Parse parses a text module. The source name labels diagnostics. On
// failure every collected diagnostic is returned, combined with multierr.
func Parse(source, text string) (*wasm.Module, error) {
	Logger().Debug("parsing text module", zap.String("source", source), zap.Int("size", len(text)))
	m, err := parser.Parse(source, text)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Print writes m as text.
func Print(w io.Writer, m *wasm.Module, opts PrintOptions) error {
	return printer.Print(w, m, opts)
}

// Format renders m as a string.
func Format(m *wasm.Module, opts PrintOptions) (string, error) {
	return printer.String(m, opts)
}

// Compile parses source and encodes it as a binary module.
func Compile(source string) ([]byte, error) {
	m, err := Parse("<input>", source)
	if err != nil {
		return nil, err
	}
	return m.Encode()
}
