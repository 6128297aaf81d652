package wasm

import (
	"testing"

	"github.com/wippyai/wasm-wat/wasm/internal/binary"
)

func TestNamesRoundTrip(t *testing.T) {
	n := NewNames()
	n.Module = "demo"
	n.Set(SpaceFunc, 0, "main")
	n.Set(SpaceFunc, 2, "helper")
	n.Set(SpaceGlobal, 0, "counter")
	n.Set(SpaceData, 1, "greeting")
	n.SetIn(SpaceLocal, 0, 1, "tmp")
	n.SetIn(SpaceLabel, 2, 0, "exit")

	data := encodeNames(n)
	got, err := decodeNames(binary.NewReader(data), 3)
	if err != nil {
		t.Fatalf("decodeNames: %v", err)
	}

	if got.Module != "demo" {
		t.Errorf("module name: got %q", got.Module)
	}
	checks := []struct {
		space Space
		idx   uint32
		want  string
	}{
		{SpaceFunc, 0, "main"},
		{SpaceFunc, 2, "helper"},
		{SpaceGlobal, 0, "counter"},
		{SpaceData, 1, "greeting"},
	}
	for _, c := range checks {
		if name, ok := got.Get(c.space, c.idx); !ok || name != c.want {
			t.Errorf("%s %d: got %q, want %q", c.space, c.idx, name, c.want)
		}
	}
	if name, _ := got.GetIn(SpaceLocal, 0, 1); name != "tmp" {
		t.Errorf("local name: got %q", name)
	}
	if name, _ := got.GetIn(SpaceLabel, 2, 0); name != "exit" {
		t.Errorf("label name: got %q", name)
	}
}

func TestEncodeNamesEmpty(t *testing.T) {
	if data := encodeNames(nil); data != nil {
		t.Errorf("nil names: got %x", data)
	}
	n := NewNames()
	n.Set(SpaceFunc, 0, "")
	if data := encodeNames(n); len(data) != 0 {
		t.Errorf("empty names should produce no subsections, got %x", data)
	}
}

func TestDecodeNamesErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"function index out of range", []byte{0x01, 0x04, 0x01, 0x07, 0x01, 'f'}},
		{"subsections out of order", []byte{0x01, 0x01, 0x00, 0x00, 0x01, 0x00}},
		{"indices out of order", []byte{0x07, 0x07, 0x02, 0x01, 0x01, 'a', 0x00, 0x01, 'b'}},
		{"trailing bytes", []byte{0x00, 0x03, 0x01, 'm', 0xFF}},
		{"truncated", []byte{0x01, 0x09, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeNames(binary.NewReader(tt.data), 1); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeNamesSkipsUnknownSubsection(t *testing.T) {
	data := []byte{0x01, 0x04, 0x01, 0x00, 0x01, 'f', 0x0C, 0x02, 0xAA, 0xBB}
	n, err := decodeNames(binary.NewReader(data), 1)
	if err != nil {
		t.Fatalf("decodeNames: %v", err)
	}
	if name, _ := n.Get(SpaceFunc, 0); name != "f" {
		t.Errorf("got %q, want f", name)
	}
}

func TestNamesBindAndClone(t *testing.T) {
	n := NewNames()
	ref := Ref{Site: SiteCode, Owner: 1, Pos: 4}
	if n.IsBound(ref) {
		t.Fatal("fresh names should have no bound references")
	}
	n.Bind(ref)
	n.Set(SpaceType, 0, "sig")

	c := n.Clone()
	if !c.IsBound(ref) {
		t.Error("clone lost bound reference")
	}
	c.Set(SpaceType, 0, "other")
	if name, _ := n.Get(SpaceType, 0); name != "sig" {
		t.Errorf("clone shares maps with original: %q", name)
	}

	var nilNames *Names
	if nilNames.IsBound(ref) || !nilNames.Empty() {
		t.Error("nil names should be empty and unbound")
	}
}
