package wasmwat

import (
	"sync"
	"testing"

	"github.com/wippyai/wasm-wat/wasm"
)

func TestModuleStates(t *testing.T) {
	if !NewModule(nil).Empty() {
		t.Error("NewModule(nil) should be empty")
	}

	ir := &wasm.Module{}
	h := NewModule(ir)
	if h.Empty() || h.IR() != ir {
		t.Fatal("NewModule should own its argument")
	}

	if got := h.Release(); got != ir {
		t.Errorf("Release returned %p, want %p", got, ir)
	}
	if !h.Empty() {
		t.Error("handle should be empty after Release")
	}
	if got := h.Release(); got != nil {
		t.Errorf("second Release returned %p, want nil", got)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close on empty handle: %v", err)
	}
}

func TestModuleMove(t *testing.T) {
	ir := &wasm.Module{}
	src := NewModule(ir)
	dst := src.Move()

	if !src.Empty() {
		t.Error("source should be empty after Move")
	}
	if dst.IR() != ir {
		t.Error("destination should own the module")
	}

	again := src.Move()
	if !again.Empty() {
		t.Error("moving an empty handle should yield an empty handle")
	}
}

func TestModuleClose(t *testing.T) {
	h := NewModule(&wasm.Module{})
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !h.Empty() {
		t.Error("handle should be empty after Close")
	}
	if _, err := ModuleToText(h, DefaultEncodeConfig()); err != ErrEmptyModule {
		t.Errorf("got %v, want ErrEmptyModule", err)
	}
}

func TestModuleNilHandle(t *testing.T) {
	var h *Module
	if !h.Empty() || h.Release() != nil {
		t.Error("nil handle should behave as empty")
	}
	if _, err := ListFunctions(h); err != ErrEmptyModule {
		t.Errorf("got %v, want ErrEmptyModule", err)
	}
}

func TestModuleConcurrentRelease(t *testing.T) {
	h := NewModule(&wasm.Module{})

	const n = 16
	results := make(chan *wasm.Module, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- h.Release()
		}()
	}
	wg.Wait()
	close(results)

	owners := 0
	for ir := range results {
		if ir != nil {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("%d releases received the module, want 1", owners)
	}
}
