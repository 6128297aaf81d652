// Package opcode resolves text-format mnemonics against the instruction
// catalogue, including legacy spellings older toolchains still emit.
package opcode

import (
	"strings"

	"github.com/wippyai/wasm-wat/wasm"
)

// Lookup returns the instruction for a mnemonic.
func Lookup(name string) (*wasm.OpInfo, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	return wasm.LookupName(name)
}

// Unsupported reports the proposal an unknown mnemonic belongs to, if it is
// one the codecs reject.
func Unsupported(name string) (string, bool) {
	if feature, ok := unsupportedNames[name]; ok {
		return feature, true
	}
	for _, prefix := range simdPrefixes {
		if strings.HasPrefix(name, prefix) {
			return "SIMD", true
		}
	}
	if strings.Contains(name, ".atomic.") || name == "atomic.fence" {
		return "threads", true
	}
	return "", false
}

// NaturalAlign returns the natural alignment of a memory access in bytes.
func NaturalAlign(info *wasm.OpInfo) uint32 {
	return 1 << info.Align
}

var simdPrefixes = []string{"v128.", "i8x16.", "i16x8.", "i32x4.", "i64x2.", "f32x4.", "f64x2."}

var unsupportedNames = map[string]string{
	"try":                  "exception handling",
	"try_table":            "exception handling",
	"catch":                "exception handling",
	"catch_all":            "exception handling",
	"delegate":             "exception handling",
	"throw":                "exception handling",
	"throw_ref":            "exception handling",
	"rethrow":              "exception handling",
	"call_ref":             "typed function references",
	"return_call_ref":      "typed function references",
	"ref.as_non_null":      "typed function references",
	"br_on_null":           "typed function references",
	"br_on_non_null":       "typed function references",
	"memory.atomic.notify": "threads",
}

var aliases = map[string]string{
	"get_local":      "local.get",
	"set_local":      "local.set",
	"tee_local":      "local.tee",
	"get_global":     "global.get",
	"set_global":     "global.set",
	"current_memory": "memory.size",
	"grow_memory":    "memory.grow",

	"i32.wrap/i64":        "i32.wrap_i64",
	"i32.trunc_s/f32":     "i32.trunc_f32_s",
	"i32.trunc_u/f32":     "i32.trunc_f32_u",
	"i32.trunc_s/f64":     "i32.trunc_f64_s",
	"i32.trunc_u/f64":     "i32.trunc_f64_u",
	"i64.extend_s/i32":    "i64.extend_i32_s",
	"i64.extend_u/i32":    "i64.extend_i32_u",
	"i64.trunc_s/f32":     "i64.trunc_f32_s",
	"i64.trunc_u/f32":     "i64.trunc_f32_u",
	"i64.trunc_s/f64":     "i64.trunc_f64_s",
	"i64.trunc_u/f64":     "i64.trunc_f64_u",
	"f32.convert_s/i32":   "f32.convert_i32_s",
	"f32.convert_u/i32":   "f32.convert_i32_u",
	"f32.convert_s/i64":   "f32.convert_i64_s",
	"f32.convert_u/i64":   "f32.convert_i64_u",
	"f32.demote/f64":      "f32.demote_f64",
	"f64.convert_s/i32":   "f64.convert_i32_s",
	"f64.convert_u/i32":   "f64.convert_i32_u",
	"f64.convert_s/i64":   "f64.convert_i64_s",
	"f64.convert_u/i64":   "f64.convert_i64_u",
	"f64.promote/f32":     "f64.promote_f32",
	"i32.reinterpret/f32": "i32.reinterpret_f32",
	"i64.reinterpret/f64": "i64.reinterpret_f64",
	"f32.reinterpret/i32": "f32.reinterpret_i32",
	"f64.reinterpret/i64": "f64.reinterpret_i64",
	"i32.trunc_s:sat/f32": "i32.trunc_sat_f32_s",
	"i32.trunc_u:sat/f32": "i32.trunc_sat_f32_u",
	"i32.trunc_s:sat/f64": "i32.trunc_sat_f64_s",
	"i32.trunc_u:sat/f64": "i32.trunc_sat_f64_u",
	"i64.trunc_s:sat/f32": "i64.trunc_sat_f32_s",
	"i64.trunc_u:sat/f32": "i64.trunc_sat_f32_u",
	"i64.trunc_s:sat/f64": "i64.trunc_sat_f64_s",
	"i64.trunc_u:sat/f64": "i64.trunc_sat_f64_u",
}
