package printer

import (
	"math"
	"strconv"
	"strings"
)

const hexDigits = "0123456789abcdef"

// quote renders bytes as a string literal. Printable ASCII other than '"'
// and '\' is kept; every other byte is written as \hh.
func quote(data []byte) string {
	var b strings.Builder
	b.Grow(len(data) + 2)
	b.WriteByte('"')
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('\\')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xf])
	}
	b.WriteByte('"')
	return b.String()
}

// formatF32 renders f32 bits so that parsing the result yields the same
// bits, NaN payloads included.
func formatF32(bits uint32) string {
	const (
		expMask       = 0x7f800000
		payloadMask   = 0x007fffff
		canonicalQNaN = 0x00400000
	)
	if bits&expMask == expMask && bits&payloadMask != 0 {
		return nan(bits>>31 != 0, uint64(bits&payloadMask), canonicalQNaN)
	}
	return formatFloat(float64(math.Float32frombits(bits)), 32)
}

// formatF64 is the f64 counterpart of formatF32.
func formatF64(bits uint64) string {
	const (
		expMask       = 0x7ff0000000000000
		payloadMask   = 0x000fffffffffffff
		canonicalQNaN = 0x0008000000000000
	)
	if bits&expMask == expMask && bits&payloadMask != 0 {
		return nan(bits>>63 != 0, bits&payloadMask, canonicalQNaN)
	}
	return formatFloat(math.Float64frombits(bits), 64)
}

func nan(neg bool, payload, canonical uint64) string {
	s := "nan"
	if payload != canonical {
		s = "nan:0x" + strconv.FormatUint(payload, 16)
	}
	if neg {
		return "-" + s
	}
	return s
}

func formatFloat(v float64, bitSize int) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, bitSize)
}
