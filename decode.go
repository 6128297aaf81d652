package wasmwat

import (
	"context"
	stderrors "errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/engine"
	"github.com/wippyai/wasm-wat/errors"
	"github.com/wippyai/wasm-wat/names"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat"
)

// DecodeText parses WAT source into a module. sourceName only labels
// diagnostics. Of cfg, only Validate, CheckWithEngine and GenerateNames
// apply: text carries its own names, so there is nothing to apply.
func DecodeText(sourceName, text string, cfg DecodeConfig) (*wasm.Module, error) {
	log := Logger().With(zap.String("source", sourceName))
	log.Debug("decoding text", zap.Int("size", len(text)))

	var diags errors.Diagnostics
	m, err := wat.Parse(sourceName, text)
	if err != nil {
		diags.Add(err)
		return nil, diags.Fail(errors.OpTextToModule)
	}

	if cfg.Validate {
		var bin []byte
		if cfg.CheckWithEngine {
			if bin, err = m.Encode(); err != nil {
				diags.Add(errors.Invalid(sourceName, err.Error()))
				return nil, diags.Fail(errors.OpTextToModule)
			}
		}
		if !validate(&diags, sourceName, m, bin, cfg.CheckWithEngine) {
			return nil, diags.Fail(errors.OpTextToModule)
		}
	}

	if cfg.GenerateNames {
		if err := names.Generate(m); err != nil {
			diags.Add(err)
			return nil, diags.Fail(errors.OpTextToModule)
		}
	}

	log.Debug("decoded text", zap.Int("funcs", m.NumFuncs()))
	return m, nil
}

// DecodeBinary decodes a WASM binary into a module. sourceName only labels
// diagnostics. A malformed module fails whatever cfg.Validate says.
func DecodeBinary(sourceName string, bin []byte, cfg DecodeConfig) (*wasm.Module, error) {
	log := Logger().With(zap.String("source", sourceName))
	log.Debug("decoding binary", zap.Int("size", len(bin)))

	var diags errors.Diagnostics
	dec := wasm.Decoder{
		ReadDebugNames:           cfg.ReadDebugNames,
		StopOnFirstError:         cfg.StopOnFirstError,
		FailOnCustomSectionError: cfg.FailOnCustomSectionError,
	}
	m, err := dec.Decode(bin)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			diags.Add(decodeDiagnostic(sourceName, e))
		}
		return nil, diags.Fail(errors.OpBinaryToModule)
	}

	if cfg.Validate && !validate(&diags, sourceName, m, bin, cfg.CheckWithEngine) {
		return nil, diags.Fail(errors.OpBinaryToModule)
	}

	if cfg.GenerateNames {
		if err := names.Generate(m); err != nil {
			diags.Add(err)
			return nil, diags.Fail(errors.OpBinaryToModule)
		}
	}

	if cfg.ApplyNames {
		if err := names.Apply(m); err != nil {
			log.Debug("names not fully applied",
				zap.Int("unresolved", len(multierr.Errors(err))),
				zap.Error(err))
		}
	}

	log.Debug("decoded binary", zap.Int("funcs", m.NumFuncs()))
	return m, nil
}

// validate runs structural validation and, when requested, the wazero
// check on bin. It reports whether m passed.
func validate(diags *errors.Diagnostics, source string, m *wasm.Module, bin []byte, withEngine bool) bool {
	if err := m.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			diags.Add(errors.Invalid(source, e.Error()))
		}
		return false
	}
	if !withEngine {
		return true
	}
	if err := engine.Default().Check(context.Background(), bin); err != nil {
		diags.Add(errors.New(errors.PhaseValidate, errors.KindInvalid).
			Source(source).Detail("engine rejected module").Cause(err).Build())
		return false
	}
	return true
}

func decodeDiagnostic(source string, err error) error {
	kind := errors.KindMalformed
	var ue *wasm.UnsupportedError
	if stderrors.As(err, &ue) {
		kind = errors.KindUnsupported
	}
	return errors.New(errors.PhaseDecode, kind).
		Source(source).
		Offset(wasm.ErrorOffset(err)).
		Detail("%s", err.Error()).
		Build()
}
