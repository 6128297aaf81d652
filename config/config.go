// Package config loads conversion options from layered sources.
//
// Options are built from the library defaults, then a YAML document, then
// environment variables prefixed with WASMWAT_. Every field is a null.Bool,
// so a layer only overrides the values it actually sets:
//
//	opts, err := config.Load(yamlData, os.LookupEnv)
//	bin, err := wasmwat.TextToBinary(name, src, opts.DecodeConfig(), opts.EncodeConfig())
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	wasmwat "github.com/wippyai/wasm-wat"
)

// Options holds every decode and encode switch.
type Options struct {
	Validate                 null.Bool `yaml:"validate" envconfig:"WASMWAT_VALIDATE"`
	ReadDebugNames           null.Bool `yaml:"readDebugNames" envconfig:"WASMWAT_READ_DEBUG_NAMES"`
	StopOnFirstError         null.Bool `yaml:"stopOnFirstError" envconfig:"WASMWAT_STOP_ON_FIRST_ERROR"`
	FailOnCustomSectionError null.Bool `yaml:"failOnCustomSectionError" envconfig:"WASMWAT_FAIL_ON_CUSTOM_SECTION_ERROR"`
	GenerateNames            null.Bool `yaml:"generateNames" envconfig:"WASMWAT_GENERATE_NAMES"`
	ApplyNames               null.Bool `yaml:"applyNames" envconfig:"WASMWAT_APPLY_NAMES"`
	CheckWithEngine          null.Bool `yaml:"checkWithEngine" envconfig:"WASMWAT_CHECK_WITH_ENGINE"`

	Relocatable      null.Bool `yaml:"relocatable" envconfig:"WASMWAT_RELOCATABLE"`
	CanonicalizeLEBs null.Bool `yaml:"canonicalizeLebs" envconfig:"WASMWAT_CANONICALIZE_LEBS"`
	WriteDebugNames  null.Bool `yaml:"writeDebugNames" envconfig:"WASMWAT_WRITE_DEBUG_NAMES"`
	FoldExprs        null.Bool `yaml:"foldExprs" envconfig:"WASMWAT_FOLD_EXPRS"`
	InlineExport     null.Bool `yaml:"inlineExport" envconfig:"WASMWAT_INLINE_EXPORT"`
	InlineImport     null.Bool `yaml:"inlineImport" envconfig:"WASMWAT_INLINE_IMPORT"`
}

// NewOptions returns the library defaults with every field set.
func NewOptions() Options {
	d := wasmwat.DefaultDecodeConfig()
	e := wasmwat.DefaultEncodeConfig()
	return Options{
		Validate:                 null.NewBool(d.Validate, true),
		ReadDebugNames:           null.NewBool(d.ReadDebugNames, true),
		StopOnFirstError:         null.NewBool(d.StopOnFirstError, true),
		FailOnCustomSectionError: null.NewBool(d.FailOnCustomSectionError, true),
		GenerateNames:            null.NewBool(d.GenerateNames, true),
		ApplyNames:               null.NewBool(d.ApplyNames, true),
		CheckWithEngine:          null.NewBool(d.CheckWithEngine, true),
		Relocatable:              null.NewBool(e.Relocatable, true),
		CanonicalizeLEBs:         null.NewBool(e.CanonicalizeLEBs, true),
		WriteDebugNames:          null.NewBool(e.WriteDebugNames, true),
		FoldExprs:                null.NewBool(e.FoldExprs, true),
		InlineExport:             null.NewBool(e.InlineExport, true),
		InlineImport:             null.NewBool(e.InlineImport, true),
	}
}

// Apply returns o with every valid field of other copied over it.
func (o Options) Apply(other Options) Options {
	for _, f := range []struct{ dst, src *null.Bool }{
		{&o.Validate, &other.Validate},
		{&o.ReadDebugNames, &other.ReadDebugNames},
		{&o.StopOnFirstError, &other.StopOnFirstError},
		{&o.FailOnCustomSectionError, &other.FailOnCustomSectionError},
		{&o.GenerateNames, &other.GenerateNames},
		{&o.ApplyNames, &other.ApplyNames},
		{&o.CheckWithEngine, &other.CheckWithEngine},
		{&o.Relocatable, &other.Relocatable},
		{&o.CanonicalizeLEBs, &other.CanonicalizeLEBs},
		{&o.WriteDebugNames, &other.WriteDebugNames},
		{&o.FoldExprs, &other.FoldExprs},
		{&o.InlineExport, &other.InlineExport},
		{&o.InlineImport, &other.InlineImport},
	} {
		if f.src.Valid {
			*f.dst = *f.src
		}
	}
	return o
}

// fileOptions mirrors Options for YAML, where a missing key stays nil.
type fileOptions struct {
	Validate                 *bool `yaml:"validate"`
	ReadDebugNames           *bool `yaml:"readDebugNames"`
	StopOnFirstError         *bool `yaml:"stopOnFirstError"`
	FailOnCustomSectionError *bool `yaml:"failOnCustomSectionError"`
	GenerateNames            *bool `yaml:"generateNames"`
	ApplyNames               *bool `yaml:"applyNames"`
	CheckWithEngine          *bool `yaml:"checkWithEngine"`
	Relocatable              *bool `yaml:"relocatable"`
	CanonicalizeLEBs         *bool `yaml:"canonicalizeLebs"`
	WriteDebugNames          *bool `yaml:"writeDebugNames"`
	FoldExprs                *bool `yaml:"foldExprs"`
	InlineExport             *bool `yaml:"inlineExport"`
	InlineImport             *bool `yaml:"inlineImport"`
}

// Parse reads options from a YAML document. Unknown keys are rejected.
func Parse(data []byte) (Options, error) {
	var f fileOptions
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}
	return Options{
		Validate:                 null.BoolFromPtr(f.Validate),
		ReadDebugNames:           null.BoolFromPtr(f.ReadDebugNames),
		StopOnFirstError:         null.BoolFromPtr(f.StopOnFirstError),
		FailOnCustomSectionError: null.BoolFromPtr(f.FailOnCustomSectionError),
		GenerateNames:            null.BoolFromPtr(f.GenerateNames),
		ApplyNames:               null.BoolFromPtr(f.ApplyNames),
		CheckWithEngine:          null.BoolFromPtr(f.CheckWithEngine),
		Relocatable:              null.BoolFromPtr(f.Relocatable),
		CanonicalizeLEBs:         null.BoolFromPtr(f.CanonicalizeLEBs),
		WriteDebugNames:          null.BoolFromPtr(f.WriteDebugNames),
		FoldExprs:                null.BoolFromPtr(f.FoldExprs),
		InlineExport:             null.BoolFromPtr(f.InlineExport),
		InlineImport:             null.BoolFromPtr(f.InlineImport),
	}, nil
}

// FromEnv reads options from environment variables through lookup, which
// is usually os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Options, error) {
	var o Options
	if err := envconfig.Process("", &o, lookup); err != nil {
		return Options{}, fmt.Errorf("environment options: %w", err)
	}
	return o, nil
}

// Load layers the defaults, the YAML document (may be empty) and the
// environment, in that order.
func Load(data []byte, lookup func(string) (string, bool)) (Options, error) {
	result := NewOptions()

	if len(data) > 0 {
		fileOpts, err := Parse(data)
		if err != nil {
			return result, err
		}
		result = result.Apply(fileOpts)
	}

	if lookup != nil {
		envOpts, err := FromEnv(lookup)
		if err != nil {
			return result, err
		}
		result = result.Apply(envOpts)
	}
	return result, nil
}

// DecodeConfig returns the decode switches. Unset fields are false.
func (o Options) DecodeConfig() wasmwat.DecodeConfig {
	return wasmwat.DecodeConfig{
		Validate:                 o.Validate.Bool,
		ReadDebugNames:           o.ReadDebugNames.Bool,
		StopOnFirstError:         o.StopOnFirstError.Bool,
		FailOnCustomSectionError: o.FailOnCustomSectionError.Bool,
		GenerateNames:            o.GenerateNames.Bool,
		ApplyNames:               o.ApplyNames.Bool,
		CheckWithEngine:          o.CheckWithEngine.Bool,
	}
}

// EncodeConfig returns the encode switches. Unset fields are false.
func (o Options) EncodeConfig() wasmwat.EncodeConfig {
	return wasmwat.EncodeConfig{
		Relocatable:      o.Relocatable.Bool,
		CanonicalizeLEBs: o.CanonicalizeLEBs.Bool,
		WriteDebugNames:  o.WriteDebugNames.Bool,
		FoldExprs:        o.FoldExprs.Bool,
		InlineExport:     o.InlineExport.Bool,
		InlineImport:     o.InlineImport.Bool,
	}
}
