package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// Read errors. They are always returned wrapped in *Error.
var (
	ErrUnexpectedEnd = errors.New("unexpected end")
	ErrOverflow      = errors.New("integer representation too long")
	ErrTooLarge      = errors.New("integer too large")
	ErrInvalidUTF8   = errors.New("invalid utf-8 encoding")
)

// Error reports a read failure at an absolute offset in the input.
type Error struct {
	Err    error
	Offset int
}

func (e *Error) Error() string {
	return fmt.Sprintf("at offset 0x%x: %v", e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reader reads WASM primitives from a byte slice. Offsets reported in errors
// are absolute: a sub-reader remembers where its window starts in the input.
type Reader struct {
	data []byte
	pos  int
	base int
}

// NewReader creates a Reader over data starting at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the absolute offset of the next byte.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// EOF reports whether all bytes have been consumed.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.data)
}

// Sub consumes the next n bytes and returns a Reader over them.
func (r *Reader) Sub(n int) (*Reader, error) {
	if n < 0 || n > r.Len() {
		return nil, r.fail(ErrUnexpectedEnd)
	}
	sub := &Reader{data: r.data[r.pos : r.pos+n], base: r.Offset()}
	r.pos += n
	return sub, nil
}

// Since returns a copy of the bytes consumed from absolute offset off up to
// the current position.
func (r *Reader) Since(off int) []byte {
	start := off - r.base
	if start < 0 || start > r.pos {
		return nil
	}
	out := make([]byte, r.pos-start)
	copy(out, r.data[start:r.pos])
	return out
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.fail(ErrUnexpectedEnd)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes into a fresh slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.fail(ErrUnexpectedEnd)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:])
	r.pos += n
	return out, nil
}

// Rest reads all remaining bytes.
func (r *Reader) Rest() []byte {
	out, _ := r.ReadBytes(r.Len())
	return out
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readUnsigned(32)
	return uint32(v), err
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	return r.readUnsigned(64)
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	v, err := r.readSigned(32)
	return int32(v), err
}

// ReadS33 reads a signed LEB128 encoded 33-bit value (block types).
func (r *Reader) ReadS33() (int64, error) {
	return r.readSigned(33)
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	return r.readSigned(64)
}

func (r *Reader) readUnsigned(bits uint) (uint64, error) {
	start := r.pos
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift+7 > bits && uint64(b&0x7f)>>(bits-shift) != 0 {
			r.pos = start
			return 0, r.fail(ErrTooLarge)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= bits {
			r.pos = start
			return 0, r.fail(ErrOverflow)
		}
	}
}

func (r *Reader) readSigned(bits uint) (int64, error) {
	start := r.pos
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= bits {
			r.pos = start
			return 0, r.fail(ErrOverflow)
		}
	}
	if shift > bits {
		// Unused bits of the final byte must all match the sign bit.
		used := bits - (shift - 7)
		rest := int8(b<<1) >> (used)
		if rest != 0 && rest != -1 {
			r.pos = start
			return 0, r.fail(ErrTooLarge)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// ReadF32 reads a little-endian float32.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32LE()
	return math.Float32frombits(v), err
}

// ReadF64 reads a little-endian float64.
func (r *Reader) ReadF64() (float64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadName reads a length-prefixed UTF-8 name.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	start := r.Offset()
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", &Error{Err: ErrInvalidUTF8, Offset: start}
	}
	return string(data), nil
}

func (r *Reader) fail(err error) error {
	return &Error{Err: err, Offset: r.Offset()}
}
