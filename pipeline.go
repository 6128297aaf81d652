package wasmwat

import (
	stderrors "errors"
)

// ErrEmptyModule is returned when an operation is given a handle that owns
// nothing.
var ErrEmptyModule = stderrors.New("module handle is empty")

// TextToBinary converts WAT source to a WASM binary.
func TextToBinary(sourceName, text string, dcfg DecodeConfig, ecfg EncodeConfig) ([]byte, error) {
	m, err := DecodeText(sourceName, text, dcfg)
	if err != nil {
		return nil, err
	}
	return EncodeBinary(m, ecfg)
}

// BinaryToText converts a WASM binary to WAT source.
func BinaryToText(sourceName string, bin []byte, dcfg DecodeConfig, ecfg EncodeConfig) (string, error) {
	m, err := DecodeBinary(sourceName, bin, dcfg)
	if err != nil {
		return "", err
	}
	return EncodeText(m, ecfg)
}

// TextToModule parses WAT source into a new owning handle.
func TextToModule(sourceName, text string, dcfg DecodeConfig) (*Module, error) {
	m, err := DecodeText(sourceName, text, dcfg)
	if err != nil {
		return nil, err
	}
	return NewModule(m), nil
}

// BinaryToModule decodes a WASM binary into a new owning handle.
func BinaryToModule(sourceName string, bin []byte, dcfg DecodeConfig) (*Module, error) {
	m, err := DecodeBinary(sourceName, bin, dcfg)
	if err != nil {
		return nil, err
	}
	return NewModule(m), nil
}

// ModuleToText renders the module owned by h. The handle keeps ownership.
func ModuleToText(h *Module, ecfg EncodeConfig) (string, error) {
	ir := h.IR()
	if ir == nil {
		return "", ErrEmptyModule
	}
	return EncodeText(ir, ecfg)
}

// ModuleToBinary serializes the module owned by h. The handle keeps
// ownership.
func ModuleToBinary(h *Module, ecfg EncodeConfig) ([]byte, error) {
	ir := h.IR()
	if ir == nil {
		return nil, ErrEmptyModule
	}
	return EncodeBinary(ir, ecfg)
}
