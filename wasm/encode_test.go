package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-wat/wasm"
)

func TestEncodeEmptyModule(t *testing.T) {
	data, err := (&wasm.Module{}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(data, emptyModule) {
		t.Errorf("got %x, want %x", data, emptyModule)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	data := sampleModule(t)
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	again, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("round trip changed bytes:\n got %x\nwant %x", again, data)
	}
}

func TestEncoderWriteDebugNames(t *testing.T) {
	m, err := wasm.ParseModule(sampleModule(t))
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	e := wasm.Encoder{CanonicalizeLEBs: true}
	data, err := e.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if parsed.Names != nil {
		t.Error("name section written with WriteDebugNames=false")
	}
}

func TestEncoderPaddedSizes(t *testing.T) {
	m, err := wasm.ParseModule(sampleModule(t))
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	canonical, err := (&wasm.Encoder{CanonicalizeLEBs: true}).Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	padded, err := (&wasm.Encoder{}).Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(padded) <= len(canonical) {
		t.Errorf("padded output (%d bytes) should be larger than canonical (%d bytes)", len(padded), len(canonical))
	}
	// type section header: id then a five byte size
	if padded[8] != wasm.SectionType || padded[9]&0x80 == 0 {
		t.Errorf("expected padded section size, got %x", padded[8:14])
	}

	parsed, err := wasm.ParseModule(padded)
	if err != nil {
		t.Fatalf("padded output does not decode: %v", err)
	}
	again, err := parsed.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, canonical) {
		t.Error("re-encoding padded output should give canonical bytes")
	}
}

func TestEncodeCountMismatch(t *testing.T) {
	m := &wasm.Module{Types: []wasm.FuncType{{}}, Funcs: []uint32{0}}
	if _, err := m.Encode(); err == nil {
		t.Error("expected error for missing body")
	}
}

func TestEncodeDataSegments(t *testing.T) {
	count := uint32(2)
	offset := wasm.ConstExpr(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 16}})
	m := &wasm.Module{
		Memories:  []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}, {Limits: wasm.Limits{Min: 1}}},
		DataCount: &count,
		Data: []wasm.DataSegment{
			{Mode: wasm.SegmentActive, MemIdx: 1, Offset: offset, Init: []byte("hi")},
			{Mode: wasm.SegmentPassive, Init: []byte{1, 2, 3}},
		},
	}
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if parsed.DataCount == nil || *parsed.DataCount != 2 {
		t.Errorf("data count: got %v", parsed.DataCount)
	}
	if got := parsed.Data[0]; got.MemIdx != 1 || !bytes.Equal(got.Offset, offset) || string(got.Init) != "hi" {
		t.Errorf("segment 0: got %+v", got)
	}
	if got := parsed.Data[1]; got.Mode != wasm.SegmentPassive || got.Offset != nil {
		t.Errorf("segment 1: got %+v", got)
	}
}
