package wasmwat

import (
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat"
)

var errNilModule = stderrors.New("nil module")

// EncodeText renders m as WAT. Only the text options of cfg apply.
func EncodeText(m *wasm.Module, cfg EncodeConfig) (string, error) {
	opts := wat.PrintOptions{
		FoldExprs:    cfg.FoldExprs,
		InlineExport: cfg.InlineExport,
		InlineImport: cfg.InlineImport,
	}
	var b strings.Builder
	err := errNilModule
	if m != nil {
		err = wat.Print(&b, m, opts)
	}
	if err != nil {
		Logger().Debug("text output failed", zap.Error(err))
		var diags errors.Diagnostics
		diags.Add(errors.WriteFailed("text", err))
		return "", diags.Fail(errors.OpModuleToText)
	}
	return b.String(), nil
}

// EncodeBinary serializes m. Only the binary options of cfg apply.
func EncodeBinary(m *wasm.Module, cfg EncodeConfig) ([]byte, error) {
	enc := wasm.Encoder{
		CanonicalizeLEBs: cfg.CanonicalizeLEBs,
		WriteDebugNames:  cfg.WriteDebugNames,
		Relocatable:      cfg.Relocatable,
	}
	bin, err := enc.Encode(m)
	if err != nil {
		Logger().Debug("binary output failed", zap.Error(err))
		var diags errors.Diagnostics
		diags.Add(errors.WriteFailed("binary", err))
		return nil, diags.Fail(errors.OpModuleToBinary)
	}
	return bin, nil
}
