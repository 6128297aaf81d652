package wasmwat

import "testing"

func TestDefaultConfigs(t *testing.T) {
	d := DefaultDecodeConfig()
	if !d.Validate || !d.ReadDebugNames || !d.StopOnFirstError || !d.FailOnCustomSectionError {
		t.Errorf("decode defaults should be strict: %+v", d)
	}
	if d.GenerateNames || d.ApplyNames || d.CheckWithEngine {
		t.Errorf("optional decode passes should be off: %+v", d)
	}

	e := DefaultEncodeConfig()
	want := EncodeConfig{CanonicalizeLEBs: true, WriteDebugNames: true}
	if e != want {
		t.Errorf("DefaultEncodeConfig() = %+v, want %+v", e, want)
	}
}

func TestTextToBinaryConfigSplit(t *testing.T) {
	tests := []struct {
		name  string
		cfg   TextToBinaryConfig
		wantD DecodeConfig
		wantE EncodeConfig
	}{
		{
			"defaults",
			DefaultTextToBinaryConfig(),
			DecodeConfig{Validate: true},
			EncodeConfig{CanonicalizeLEBs: true},
		},
		{
			"everything",
			TextToBinaryConfig{Validate: true, Relocatable: true, CanonicalizeLEBs: true, WriteDebugNames: true},
			DecodeConfig{Validate: true},
			EncodeConfig{Relocatable: true, CanonicalizeLEBs: true, WriteDebugNames: true},
		},
		{
			"nothing",
			TextToBinaryConfig{},
			DecodeConfig{},
			EncodeConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, e := tt.cfg.Split()
			if d != tt.wantD {
				t.Errorf("decode = %+v, want %+v", d, tt.wantD)
			}
			if e != tt.wantE {
				t.Errorf("encode = %+v, want %+v", e, tt.wantE)
			}
		})
	}
}

func TestBinaryToTextConfigSplit(t *testing.T) {
	cfg := DefaultBinaryToTextConfig()
	cfg.GenerateNames = true
	cfg.FoldExprs = true

	d, e := cfg.Split()
	wantD := DecodeConfig{
		Validate:                 true,
		ReadDebugNames:           true,
		StopOnFirstError:         true,
		FailOnCustomSectionError: true,
		GenerateNames:            true,
		ApplyNames:               true,
	}
	if d != wantD {
		t.Errorf("decode = %+v, want %+v", d, wantD)
	}
	wantE := EncodeConfig{CanonicalizeLEBs: true, WriteDebugNames: true, FoldExprs: true}
	if e != wantE {
		t.Errorf("encode = %+v, want %+v", e, wantE)
	}
}
