package wasm

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wippyai/wasm-wat/wasm/internal/binary"
)

// Space identifies an index space that names attach to.
type Space byte

const (
	SpaceFunc Space = iota
	SpaceType
	SpaceTable
	SpaceMemory
	SpaceGlobal
	SpaceElem
	SpaceData
	SpaceLocal // per function
	SpaceLabel // per function, numbered by block/loop/if order
)

var spaceNames = [...]string{"func", "type", "table", "memory", "global", "elem", "data", "local", "label"}

func (s Space) String() string {
	if int(s) < len(spaceNames) {
		return spaceNames[s]
	}
	return fmt.Sprintf("space(%d)", byte(s))
}

// Name section subsection IDs.
const (
	nameSubModule   byte = 0
	nameSubFunction byte = 1
	nameSubLocal    byte = 2
	nameSubLabel    byte = 3
	nameSubType     byte = 4
	nameSubTable    byte = 5
	nameSubMemory   byte = 6
	nameSubGlobal   byte = 7
	nameSubElem     byte = 8
	nameSubData     byte = 9
)

// Site says where an index operand lives.
type Site byte

const (
	SiteCode       Site = iota // instruction operand in a function body
	SiteExport                 // export target
	SiteStart                  // start function
	SiteElem                   // function index entry of an element segment
	SiteElemExpr               // operand of an element segment expression entry
	SiteElemTable              // table of an active element segment
	SiteElemOffset             // operand of an element segment offset
	SiteDataMemory             // memory of an active data segment
	SiteDataOffset             // operand of a data segment offset
	SiteGlobalInit             // operand of a global initializer
	SiteFuncType               // type use of a function or function import
)

// Ref identifies one index operand in a module.
//
// For SiteCode, Owner is the function index, Pos the byte offset of the
// instruction in the body and Slot the operand position. For element entries
// Owner is the segment and Pos the entry. Segment and global sites use Owner
// for the segment or global index. For SiteExport, Owner is the export.
type Ref struct {
	Site  Site
	Slot  uint8
	Owner uint32
	Pos   uint32
}

// NameMap maps indices to names.
type NameMap map[uint32]string

// IndirectNameMap maps a function index to a per-function NameMap.
type IndirectNameMap map[uint32]NameMap

// Names holds the debug names of a module and the references that should
// be rendered by name.
type Names struct {
	Module   string
	Funcs    NameMap
	Types    NameMap
	Tables   NameMap
	Memories NameMap
	Globals  NameMap
	Elems    NameMap
	Data     NameMap
	Locals   IndirectNameMap
	Labels   IndirectNameMap
	Bound    map[Ref]struct{}
}

// NewNames returns an empty Names.
func NewNames() *Names {
	return &Names{
		Funcs:    NameMap{},
		Types:    NameMap{},
		Tables:   NameMap{},
		Memories: NameMap{},
		Globals:  NameMap{},
		Elems:    NameMap{},
		Data:     NameMap{},
		Locals:   IndirectNameMap{},
		Labels:   IndirectNameMap{},
		Bound:    map[Ref]struct{}{},
	}
}

// Map returns the NameMap for a module-level space, or nil for per-function
// spaces.
func (n *Names) Map(space Space) NameMap {
	switch space {
	case SpaceFunc:
		return n.Funcs
	case SpaceType:
		return n.Types
	case SpaceTable:
		return n.Tables
	case SpaceMemory:
		return n.Memories
	case SpaceGlobal:
		return n.Globals
	case SpaceElem:
		return n.Elems
	case SpaceData:
		return n.Data
	}
	return nil
}

// Get returns the name of a module-level item.
func (n *Names) Get(space Space, idx uint32) (string, bool) {
	if n == nil {
		return "", false
	}
	name, ok := n.Map(space)[idx]
	return name, ok && name != ""
}

// Set records the name of a module-level item.
func (n *Names) Set(space Space, idx uint32, name string) {
	if m := n.Map(space); m != nil {
		m[idx] = name
	}
}

func (n *Names) indirect(space Space) IndirectNameMap {
	if space == SpaceLabel {
		return n.Labels
	}
	return n.Locals
}

// GetIn returns a per-function name (local or label).
func (n *Names) GetIn(space Space, fn, idx uint32) (string, bool) {
	if n == nil {
		return "", false
	}
	name, ok := n.indirect(space)[fn][idx]
	return name, ok && name != ""
}

// SetIn records a per-function name (local or label).
func (n *Names) SetIn(space Space, fn, idx uint32, name string) {
	im := n.indirect(space)
	if im[fn] == nil {
		im[fn] = NameMap{}
	}
	im[fn][idx] = name
}

// Bind marks a reference to be rendered by name.
func (n *Names) Bind(r Ref) {
	n.Bound[r] = struct{}{}
}

// IsBound reports whether a reference is rendered by name.
func (n *Names) IsBound(r Ref) bool {
	if n == nil {
		return false
	}
	_, ok := n.Bound[r]
	return ok
}

// Empty reports whether no names are recorded.
func (n *Names) Empty() bool {
	if n == nil {
		return true
	}
	if n.Module != "" {
		return false
	}
	for _, m := range []NameMap{n.Funcs, n.Types, n.Tables, n.Memories, n.Globals, n.Elems, n.Data} {
		if len(m) > 0 {
			return false
		}
	}
	return len(n.Locals) == 0 && len(n.Labels) == 0
}

// Clone returns a deep copy.
func (n *Names) Clone() *Names {
	if n == nil {
		return nil
	}
	c := NewNames()
	c.Module = n.Module
	for _, sp := range []Space{SpaceFunc, SpaceType, SpaceTable, SpaceMemory, SpaceGlobal, SpaceElem, SpaceData} {
		for k, v := range n.Map(sp) {
			c.Map(sp)[k] = v
		}
	}
	for _, sp := range []Space{SpaceLocal, SpaceLabel} {
		for fn, m := range n.indirect(sp) {
			for k, v := range m {
				c.SetIn(sp, fn, k, v)
			}
		}
	}
	for r := range n.Bound {
		c.Bound[r] = struct{}{}
	}
	return c
}

var errNameOrder = errors.New("name subsections out of order")

// decodeNames parses the payload of a "name" custom section.
func decodeNames(r *binary.Reader, numFuncs int) (*Names, error) {
	n := NewNames()
	last := -1
	for !r.EOF() {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sub, err := r.Sub(int(size))
		if err != nil {
			return nil, err
		}
		if int(id) <= last {
			return nil, errNameOrder
		}
		last = int(id)

		switch id {
		case nameSubModule:
			n.Module, err = sub.ReadName()
		case nameSubFunction:
			err = readNameMap(sub, n.Funcs, numFuncs)
		case nameSubLocal:
			err = readIndirectNameMap(sub, n.Locals, numFuncs)
		case nameSubLabel:
			err = readIndirectNameMap(sub, n.Labels, numFuncs)
		case nameSubType:
			err = readNameMap(sub, n.Types, -1)
		case nameSubTable:
			err = readNameMap(sub, n.Tables, -1)
		case nameSubMemory:
			err = readNameMap(sub, n.Memories, -1)
		case nameSubGlobal:
			err = readNameMap(sub, n.Globals, -1)
		case nameSubElem:
			err = readNameMap(sub, n.Elems, -1)
		case nameSubData:
			err = readNameMap(sub, n.Data, -1)
		default:
			// Unknown subsections are skipped.
			sub.Rest()
		}
		if err != nil {
			return nil, fmt.Errorf("subsection %d: %w", id, err)
		}
		if !sub.EOF() {
			return nil, fmt.Errorf("subsection %d: unexpected trailing bytes", id)
		}
	}
	return n, nil
}

func readNameMap(r *binary.Reader, into NameMap, limit int) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	prev := int64(-1)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if int64(idx) <= prev {
			return fmt.Errorf("index %d out of order", idx)
		}
		if limit >= 0 && int(idx) >= limit {
			return fmt.Errorf("invalid function index %d", idx)
		}
		prev = int64(idx)
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		into[idx] = name
	}
	return nil
}

func readIndirectNameMap(r *binary.Reader, into IndirectNameMap, limit int) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	prev := int64(-1)
	for i := uint32(0); i < count; i++ {
		fn, err := r.ReadU32()
		if err != nil {
			return err
		}
		if int64(fn) <= prev {
			return fmt.Errorf("function index %d out of order", fn)
		}
		if limit >= 0 && int(fn) >= limit {
			return fmt.Errorf("invalid function index %d", fn)
		}
		prev = int64(fn)
		m := NameMap{}
		if err := readNameMap(r, m, -1); err != nil {
			return err
		}
		if len(m) > 0 {
			into[fn] = m
		}
	}
	return nil
}

// encodeNames writes the payload of a "name" custom section. It returns nil
// when there is nothing to write.
func encodeNames(n *Names) []byte {
	if n.Empty() {
		return nil
	}
	w := binary.NewWriter()
	sub := func(id byte, body *binary.Writer) {
		if body == nil {
			return
		}
		w.Byte(id)
		w.WriteU32(uint32(body.Len()))
		w.WriteBytes(body.Bytes())
	}

	if n.Module != "" {
		b := binary.NewWriter()
		b.WriteName(n.Module)
		sub(nameSubModule, b)
	}
	sub(nameSubFunction, writeNameMap(n.Funcs))
	sub(nameSubLocal, writeIndirectNameMap(n.Locals))
	sub(nameSubLabel, writeIndirectNameMap(n.Labels))
	sub(nameSubType, writeNameMap(n.Types))
	sub(nameSubTable, writeNameMap(n.Tables))
	sub(nameSubMemory, writeNameMap(n.Memories))
	sub(nameSubGlobal, writeNameMap(n.Globals))
	sub(nameSubElem, writeNameMap(n.Elems))
	sub(nameSubData, writeNameMap(n.Data))
	return w.Bytes()
}

func sortedKeys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func writeNameMap(m NameMap) *binary.Writer {
	keys := sortedKeys(m)
	keys = slices.DeleteFunc(keys, func(k uint32) bool { return m[k] == "" })
	if len(keys) == 0 {
		return nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(keys)))
	for _, k := range keys {
		w.WriteU32(k)
		w.WriteName(m[k])
	}
	return w
}

func writeIndirectNameMap(im IndirectNameMap) *binary.Writer {
	var fns []uint32
	bodies := map[uint32]*binary.Writer{}
	for _, fn := range sortedKeys(im) {
		if b := writeNameMap(im[fn]); b != nil {
			fns = append(fns, fn)
			bodies[fn] = b
		}
	}
	if len(fns) == 0 {
		return nil
	}
	w := binary.NewWriter()
	w.WriteU32(uint32(len(fns)))
	for _, fn := range fns {
		w.WriteU32(fn)
		w.WriteBytes(bodies[fn].Bytes())
	}
	return w
}
