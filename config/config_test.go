package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	wasmwat "github.com/wippyai/wasm-wat"
)

func lookupMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestOptionsApply(t *testing.T) {
	empty := Options{}
	defaults := NewOptions()

	assert.Equal(t, empty, empty.Apply(empty))
	assert.Equal(t, defaults, empty.Apply(defaults))
	assert.Equal(t, defaults, defaults.Apply(defaults))
	assert.Equal(t, defaults, defaults.Apply(empty))
	assert.Equal(t, defaults, defaults.Apply(empty).Apply(empty))

	override := Options{
		Validate:  null.NewBool(false, true),
		FoldExprs: null.NewBool(true, true),
	}
	got := defaults.Apply(override)
	assert.Equal(t, null.NewBool(false, true), got.Validate)
	assert.Equal(t, null.NewBool(true, true), got.FoldExprs)
	assert.Equal(t, defaults.ReadDebugNames, got.ReadDebugNames)
}

func TestNewOptionsMatchesLibraryDefaults(t *testing.T) {
	opts := NewOptions()
	assert.Equal(t, wasmwat.DefaultDecodeConfig(), opts.DecodeConfig())
	assert.Equal(t, wasmwat.DefaultEncodeConfig(), opts.EncodeConfig())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Options
		wantErr string
	}{
		{
			name: "empty",
			data: "",
			want: Options{},
		},
		{
			name: "some keys",
			data: "validate: false\ngenerateNames: true\nfoldExprs: true\n",
			want: Options{
				Validate:      null.NewBool(false, true),
				GenerateNames: null.NewBool(true, true),
				FoldExprs:     null.NewBool(true, true),
			},
		},
		{
			name:    "unknown key",
			data:    "validat: true\n",
			wantErr: "field validat not found",
		},
		{
			name:    "wrong type",
			data:    "validate: sometimes\n",
			wantErr: "parse options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEnv(t *testing.T) {
	got, err := FromEnv(lookupMap(map[string]string{
		"WASMWAT_STOP_ON_FIRST_ERROR": "false",
		"WASMWAT_RELOCATABLE":         "true",
		"UNRELATED":                   "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, Options{
		StopOnFirstError: null.NewBool(false, true),
		Relocatable:      null.NewBool(true, true),
	}, got)

	_, err = FromEnv(lookupMap(map[string]string{"WASMWAT_VALIDATE": "maybe"}))
	assert.Error(t, err)
}

func TestLoadLayering(t *testing.T) {
	yamlData := []byte("validate: false\napplyNames: true\ninlineExport: true\n")
	env := lookupMap(map[string]string{
		"WASMWAT_VALIDATE":          "true",
		"WASMWAT_WRITE_DEBUG_NAMES": "false",
	})

	opts, err := Load(yamlData, env)
	require.NoError(t, err)

	d := opts.DecodeConfig()
	assert.True(t, d.Validate, "environment should override the file")
	assert.True(t, d.ApplyNames, "file should override the defaults")
	assert.True(t, d.ReadDebugNames, "defaults should survive")

	e := opts.EncodeConfig()
	assert.False(t, e.WriteDebugNames)
	assert.True(t, e.InlineExport)
	assert.True(t, e.CanonicalizeLEBs)
}

func TestLoadWithoutSources(t *testing.T) {
	opts, err := Load(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NewOptions(), opts)
}

func TestLoadFileError(t *testing.T) {
	_, err := Load([]byte("bogus: true\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse options")
}

func TestLoadDrivesPipeline(t *testing.T) {
	opts, err := Load([]byte("foldExprs: true\n"), nil)
	require.NoError(t, err)

	src := `(module (func (result i32) (i32.add (i32.const 1) (i32.const 2))))`
	bin, err := wasmwat.TextToBinary("add.wat", src, opts.DecodeConfig(), opts.EncodeConfig())
	require.NoError(t, err)

	text, err := wasmwat.BinaryToText("add.wasm", bin, opts.DecodeConfig(), opts.EncodeConfig())
	require.NoError(t, err)
	assert.Contains(t, text, "(i32.add")
	assert.NotContains(t, text, "\n    i32.add")
}
