package wasmwat

import (
	"sync/atomic"

	"github.com/wippyai/wasm-wat/wasm"
)

// noCopy makes go vet's copylocks check flag copies of a Module.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Module is the single owner of a decoded module. It is either empty or
// owning. Ownership leaves a handle through Release or Move; borrowing
// operations such as ModuleToText leave it in place.
//
// A Module must not be copied. Release swaps the module out atomically, so
// of two racing releases exactly one receives it.
type Module struct {
	_  noCopy
	ir atomic.Pointer[wasm.Module]
}

// NewModule returns a handle owning ir, or an empty handle when ir is nil.
func NewModule(ir *wasm.Module) *Module {
	m := &Module{}
	if ir != nil {
		m.ir.Store(ir)
	}
	return m
}

// IR returns the owned module without transferring ownership, or nil when
// the handle is empty. The result must not outlive the handle's ownership.
func (m *Module) IR() *wasm.Module {
	if m == nil {
		return nil
	}
	return m.ir.Load()
}

// Empty reports whether the handle owns nothing.
func (m *Module) Empty() bool {
	return m.IR() == nil
}

// Release transfers the owned module to the caller and empties the handle.
// On an empty handle it returns nil and does nothing else.
func (m *Module) Release() *wasm.Module {
	if m == nil {
		return nil
	}
	return m.ir.Swap(nil)
}

// Move returns a new handle that owns this handle's module. The source is
// left empty; moving an empty handle yields an empty handle.
func (m *Module) Move() *Module {
	return NewModule(m.Release())
}

// Close discards the owned module. Closing an empty handle is a no-op.
func (m *Module) Close() error {
	m.Release()
	return nil
}
