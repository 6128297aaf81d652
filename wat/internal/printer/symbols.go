package printer

import (
	"slices"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-wat/wasm"
)

// symbols holds the printable form of every debug name: sanitized to the
// identifier character set and unique within its space.
type symbols struct {
	spaces [wasm.SpaceData + 1]map[uint32]string
	locals map[uint32]map[uint32]string
	labels map[uint32]map[uint32]string
}

func newSymbols(n *wasm.Names) *symbols {
	s := &symbols{
		locals: map[uint32]map[uint32]string{},
		labels: map[uint32]map[uint32]string{},
	}
	for sp := range s.spaces {
		s.spaces[sp] = map[uint32]string{}
	}
	if n == nil {
		return s
	}
	for sp := wasm.SpaceFunc; sp <= wasm.SpaceData; sp++ {
		s.spaces[sp] = uniqueNames(n.Map(sp))
	}
	for fn, m := range n.Locals {
		s.locals[fn] = uniqueNames(m)
	}
	// Labels may shadow each other, so they are only sanitized.
	for fn, m := range n.Labels {
		out := map[uint32]string{}
		for idx, name := range m {
			if id := sanitize(name); id != "" {
				out[idx] = id
			}
		}
		s.labels[fn] = out
	}
	return s
}

// name returns the printable name of a module-level item.
func (s *symbols) name(space wasm.Space, idx uint32) (string, bool) {
	if space > wasm.SpaceData {
		return "", false
	}
	name, ok := s.spaces[space][idx]
	return name, ok
}

func (s *symbols) local(fn, idx uint32) (string, bool) {
	name, ok := s.locals[fn][idx]
	return name, ok
}

func (s *symbols) label(fn, ordinal uint32) (string, bool) {
	name, ok := s.labels[fn][ordinal]
	return name, ok
}

// uniqueNames sanitizes names and resolves clashes in index order by
// appending ".N".
func uniqueNames(m wasm.NameMap) map[uint32]string {
	out := make(map[uint32]string, len(m))
	used := map[string]bool{}
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, idx := range keys {
		id := sanitize(m[idx])
		if id == "" {
			continue
		}
		if used[id] {
			base := id
			for i := 1; used[id]; i++ {
				id = base + "." + strconv.Itoa(i)
			}
		}
		used[id] = true
		out[idx] = id
	}
	return out
}

// sanitize maps a name onto the identifier character set. Characters
// outside it become '_'.
func sanitize(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isIDChar(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isIDChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-./:<=>?@\\^_`|~", c) >= 0
}
