package wasmwat

// DecodeConfig controls how text or binary input becomes a module.
type DecodeConfig struct {
	// Validate checks the module after a successful decode.
	Validate bool
	// ReadDebugNames parses the "name" section (binary only).
	ReadDebugNames bool
	// StopOnFirstError aborts at the first malformed section (binary only).
	StopOnFirstError bool
	// FailOnCustomSectionError treats malformed custom sections as errors
	// (binary only).
	FailOnCustomSectionError bool
	// GenerateNames names every unnamed item.
	GenerateNames bool
	// ApplyNames binds references to named targets (binary only). Its
	// failures are never reported.
	ApplyNames bool
	// CheckWithEngine also compiles the module with wazero. It runs only
	// together with Validate.
	CheckWithEngine bool
}

// DefaultDecodeConfig returns the safe defaults: validation on, debug names
// read, and strict error handling.
func DefaultDecodeConfig() DecodeConfig {
	return DecodeConfig{
		Validate:                 true,
		ReadDebugNames:           true,
		StopOnFirstError:         true,
		FailOnCustomSectionError: true,
	}
}

// EncodeConfig controls how a module is written.
type EncodeConfig struct {
	// Relocatable adds linking and reloc.CODE sections (binary).
	Relocatable bool
	// CanonicalizeLEBs writes sizes in their minimal LEB128 form instead of
	// padded 5-byte form (binary).
	CanonicalizeLEBs bool
	// WriteDebugNames emits a "name" section (binary).
	WriteDebugNames bool
	// FoldExprs nests operands under their consumer (text).
	FoldExprs bool
	// InlineExport writes exports inside their definitions (text).
	InlineExport bool
	// InlineImport writes imports inside their definitions (text).
	InlineImport bool
}

// DefaultEncodeConfig returns canonical LEBs with debug names and flat,
// non-inlined text.
func DefaultEncodeConfig() EncodeConfig {
	return EncodeConfig{
		CanonicalizeLEBs: true,
		WriteDebugNames:  true,
	}
}

// TextToBinaryConfig is the combined configuration of text to binary
// conversion.
//
// Deprecated: use DecodeConfig and EncodeConfig. Split converts.
type TextToBinaryConfig struct {
	Validate         bool
	Relocatable      bool
	CanonicalizeLEBs bool
	WriteDebugNames  bool
}

// DefaultTextToBinaryConfig returns the historical defaults, which do not
// write debug names.
func DefaultTextToBinaryConfig() TextToBinaryConfig {
	return TextToBinaryConfig{
		Validate:         true,
		CanonicalizeLEBs: true,
	}
}

// Split returns the equivalent decode and encode configurations.
func (c TextToBinaryConfig) Split() (DecodeConfig, EncodeConfig) {
	return DecodeConfig{Validate: c.Validate}, EncodeConfig{
		Relocatable:      c.Relocatable,
		CanonicalizeLEBs: c.CanonicalizeLEBs,
		WriteDebugNames:  c.WriteDebugNames,
	}
}

// BinaryToTextConfig is the combined configuration of binary to text
// conversion.
//
// Deprecated: use DecodeConfig and EncodeConfig. Split converts.
type BinaryToTextConfig struct {
	Validate                 bool
	ReadDebugNames           bool
	StopOnFirstError         bool
	FailOnCustomSectionError bool
	GenerateNames            bool
	FoldExprs                bool
	InlineExport             bool
	InlineImport             bool
}

// DefaultBinaryToTextConfig returns the historical defaults.
func DefaultBinaryToTextConfig() BinaryToTextConfig {
	return BinaryToTextConfig{
		Validate:                 true,
		ReadDebugNames:           true,
		StopOnFirstError:         true,
		FailOnCustomSectionError: true,
	}
}

// Split returns the equivalent decode and encode configurations. Names are
// always applied, as the combined form had no switch for it.
func (c BinaryToTextConfig) Split() (DecodeConfig, EncodeConfig) {
	dcfg := DecodeConfig{
		Validate:                 c.Validate,
		ReadDebugNames:           c.ReadDebugNames,
		StopOnFirstError:         c.StopOnFirstError,
		FailOnCustomSectionError: c.FailOnCustomSectionError,
		GenerateNames:            c.GenerateNames,
		ApplyNames:               true,
	}
	ecfg := DefaultEncodeConfig()
	ecfg.FoldExprs = c.FoldExprs
	ecfg.InlineExport = c.InlineExport
	ecfg.InlineImport = c.InlineImport
	return dcfg, ecfg
}
