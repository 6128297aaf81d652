package parser

import (
	stderrors "errors"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/token"
)

var (
	errLiteral    = stderrors.New("malformed number")
	errOutOfRange = stderrors.New("constant out of range")
)

// stripUnderscores removes digit separators. A separator must sit between
// two digits.
func stripUnderscores(s string) (string, bool) {
	if !strings.Contains(s, "_") {
		return s, true
	}
	if strings.HasPrefix(s, "_") || strings.HasSuffix(s, "_") || strings.Contains(s, "__") {
		return "", false
	}
	return strings.ReplaceAll(s, "_", ""), true
}

// parseNat parses an unsigned decimal or hexadecimal literal.
func parseNat(s string, bitSize int) (uint64, error) {
	s, ok := stripUnderscores(s)
	if !ok || s == "" || s[0] == '+' || s[0] == '-' {
		return 0, errLiteral
	}
	base := 10
	if strings.HasPrefix(s, "0x") {
		base, s = 16, s[2:]
	}
	v, err := strconv.ParseUint(s, base, bitSize)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errOutOfRange
		}
		return 0, errLiteral
	}
	return v, nil
}

// parseInt parses an integer literal in the union of the signed and
// unsigned ranges of bitSize and returns its two's complement bits.
func parseInt(s string, bitSize int) (uint64, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	mag, err := parseNat(s, 64)
	if err != nil {
		return 0, err
	}
	mask := uint64(math.MaxUint64) >> (64 - bitSize)
	if !neg {
		if mag > mask {
			return 0, errOutOfRange
		}
		return mag, nil
	}
	if mag > 1<<(bitSize-1) {
		return 0, errOutOfRange
	}
	return -mag & mask, nil
}

// parseFloat parses a float literal and returns its IEEE-754 bits for a
// 32 or 64 bit float.
func parseFloat(s string, bitSize int) (uint64, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	mantBits := 52
	expMask := uint64(0x7FF) << 52
	if bitSize == 32 {
		mantBits = 23
		expMask = uint64(0xFF) << 23
	}
	signBit := uint64(1) << (bitSize - 1)

	var out uint64
	switch {
	case s == "inf":
		out = expMask
	case s == "nan":
		out = expMask | 1<<(mantBits-1)
	case strings.HasPrefix(s, "nan:0x"):
		payload, err := parseNat(s[4:], 64)
		if err != nil {
			return 0, err
		}
		if payload == 0 || bits.Len64(payload) > mantBits {
			return 0, errOutOfRange
		}
		out = expMask | payload
	default:
		digits, ok := stripUnderscores(s)
		if !ok || digits == "" || digits[0] == '+' || digits[0] == '-' {
			return 0, errLiteral
		}
		if strings.HasPrefix(digits, "0x") && !strings.ContainsAny(digits, "pP") {
			digits += "p0"
		}
		v, err := strconv.ParseFloat(digits, bitSize)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return 0, errOutOfRange
			}
			return 0, errLiteral
		}
		if bitSize == 32 {
			out = uint64(math.Float32bits(float32(v)))
		} else {
			out = math.Float64bits(v)
		}
	}
	if neg {
		out |= signBit
	}
	return out, nil
}

func (p *Parser) u32() (uint32, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	v, err := parseNat(t.Value, 32)
	if err != nil {
		return 0, p.errAt(t, "%v: %s", err, t.Value)
	}
	return uint32(v), nil
}

func (p *Parser) valType() (wasm.ValType, error) {
	t := p.next()
	if t == nil {
		return 0, p.errEOF()
	}
	if t.Type == token.Keyword {
		switch t.Value {
		case "i32":
			return wasm.ValI32, nil
		case "i64":
			return wasm.ValI64, nil
		case "f32":
			return wasm.ValF32, nil
		case "f64":
			return wasm.ValF64, nil
		case "funcref":
			return wasm.ValFuncRef, nil
		case "externref":
			return wasm.ValExtern, nil
		case "v128":
			return 0, p.unsupported(t, "v128 value type")
		}
	}
	if t.Type == token.LParen {
		return 0, p.unsupported(t, "typed function references")
	}
	return 0, p.errAt(t, "unexpected token %q, expected value type", t.Value)
}

func (p *Parser) refType() (wasm.ValType, error) {
	t := p.peek()
	vt, err := p.valType()
	if err != nil {
		return 0, err
	}
	if !vt.IsRef() {
		return 0, p.errAt(t, "expected reference type, got %s", vt)
	}
	return vt, nil
}

// valTypeList reads value types up to the closing paren, which is consumed.
func (p *Parser) valTypeList() ([]wasm.ValType, error) {
	var out []wasm.ValType
	for {
		t := p.peek()
		if t == nil {
			return nil, p.errEOF()
		}
		if t.Type == token.RParen {
			p.next()
			return out, nil
		}
		vt, err := p.valType()
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
}

// dataString reads consecutive string literals and concatenates their bytes.
func (p *Parser) dataString() []byte {
	var out []byte
	for {
		t := p.peek()
		if t == nil || t.Type != token.String {
			return out
		}
		p.next()
		out = append(out, t.Value...)
	}
}

func (p *Parser) name() (string, error) {
	t, err := p.expect(token.String)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(t.Value) {
		return "", p.errAt(t, "malformed UTF-8 encoding")
	}
	return t.Value, nil
}
