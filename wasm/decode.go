package wasm

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/wasm/internal/binary"
)

// Parsing errors returned by the decoder.
var (
	ErrInvalidMagic   = errors.New("bad magic value")
	ErrInvalidVersion = errors.New("bad wasm file version")
)

// SectionError reports a failure while reading one section.
type SectionError struct {
	Err     error
	Section string
	Offset  int // absolute offset of the failure in the input
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("%s section: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// ErrorOffset returns the absolute input offset carried by err, or -1.
func ErrorOffset(err error) int {
	var se *SectionError
	if errors.As(err, &se) {
		return se.Offset
	}
	var be *binary.Error
	if errors.As(err, &be) {
		return be.Offset
	}
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		return ue.Offset
	}
	return -1
}

// Decoder reads WebAssembly binaries into a Module.
type Decoder struct {
	// ReadDebugNames parses the "name" section into Module.Names. When false
	// the section is kept as an opaque custom section.
	ReadDebugNames bool
	// StopOnFirstError aborts at the first malformed section. Otherwise the
	// decoder skips the section and keeps going, reporting every failure.
	StopOnFirstError bool
	// FailOnCustomSectionError treats malformed custom sections (including
	// the name section) as errors. Otherwise they are dropped with a warning.
	FailOnCustomSectionError bool
}

// ParseModule decodes data with debug names and strict error handling.
func ParseModule(data []byte) (*Module, error) {
	d := Decoder{ReadDebugNames: true, StopOnFirstError: true, FailOnCustomSectionError: true}
	return d.Decode(data)
}

// Decode decodes a binary module. The module is returned only when no error
// was found.
func (d *Decoder) Decode(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, sectionErr("header", err, 0)
	}
	if magic != Magic {
		return nil, &SectionError{Section: "header", Err: ErrInvalidMagic, Offset: 0}
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, sectionErr("header", err, 4)
	}
	if version != Version {
		return nil, &SectionError{Section: "header", Err: ErrInvalidVersion, Offset: 4}
	}

	m := &Module{}
	var errs error
	var lastOrder int
	var names *binary.Reader

	// record reports whether decoding must stop.
	record := func(err error) bool {
		errs = multierr.Append(errs, err)
		return d.StopOnFirstError
	}

	for !r.EOF() {
		start := r.Offset()
		id, _ := r.ReadByte()
		size, err := r.ReadU32()
		if err != nil {
			return nil, multierr.Append(errs, sectionErr(sectionName(id), err, start))
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, multierr.Append(errs, sectionErr(sectionName(id), err, start))
		}

		if id == SectionCustom {
			name, err := sr.ReadName()
			if err != nil {
				if err := sectionErr("custom", err, start); d.customFailed(err) && record(err) {
					return nil, errs
				}
				continue
			}
			switch {
			case name == NameSectionName && d.ReadDebugNames:
				if names != nil {
					err := &SectionError{Section: "name", Err: errors.New("duplicate name section"), Offset: start}
					if d.customFailed(err) && record(err) {
						return nil, errs
					}
					continue
				}
				// Function indices are only known once the whole module is read.
				names = sr
			default:
				m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: sr.Rest()})
			}
			continue
		}

		order := sectionOrder(id)
		switch {
		case order == 0:
			if record(&SectionError{Section: sectionName(id), Err: fmt.Errorf("invalid section code %d", id), Offset: start}) {
				return nil, errs
			}
			continue
		case order <= lastOrder:
			if record(&SectionError{Section: sectionName(id), Err: errors.New("section out of order"), Offset: start}) {
				return nil, errs
			}
			continue
		}
		lastOrder = order

		if err := parseSection(id, sr, m); err != nil {
			if record(sectionErr(sectionName(id), err, start)) {
				return nil, errs
			}
			continue
		}
		if !sr.EOF() {
			err := &SectionError{Section: sectionName(id), Err: errors.New("unfinished section"), Offset: sr.Offset()}
			if record(err) {
				return nil, errs
			}
		}
	}

	if len(m.Funcs) != len(m.Code) {
		err := fmt.Errorf("function signature count != function body count (%d != %d)", len(m.Funcs), len(m.Code))
		if record(&SectionError{Section: "code", Err: err, Offset: len(data)}) {
			return nil, errs
		}
	}

	if names != nil {
		start := names.Offset()
		parsed, err := decodeNames(names, m.NumFuncs())
		switch {
		case err == nil:
			m.Names = parsed
		default:
			if err := sectionErr("name", err, start); d.customFailed(err) && record(err) {
				return nil, errs
			}
		}
	}

	if errs != nil {
		return nil, errs
	}
	return m, nil
}

// customFailed applies the custom section error policy. It reports whether
// err must be recorded as a decode failure.
func (d *Decoder) customFailed(err error) bool {
	if d.FailOnCustomSectionError {
		return true
	}
	Logger().Warn("dropping malformed custom section", zap.Error(err))
	return false
}

func malformedAt(off int, format string, args ...any) error {
	return &binary.Error{Err: fmt.Errorf(format, args...), Offset: off}
}

func sectionErr(section string, err error, fallback int) error {
	off := ErrorOffset(err)
	if off < 0 {
		off = fallback
	}
	return &SectionError{Section: section, Err: err, Offset: off}
}

func parseSection(id byte, r *binary.Reader, m *Module) error {
	switch id {
	case SectionType:
		return parseTypeSection(r, m)
	case SectionImport:
		return parseImportSection(r, m)
	case SectionFunction:
		return parseFunctionSection(r, m)
	case SectionTable:
		return parseTableSection(r, m)
	case SectionMemory:
		return parseMemorySection(r, m)
	case SectionGlobal:
		return parseGlobalSection(r, m)
	case SectionExport:
		return parseExportSection(r, m)
	case SectionStart:
		return parseStartSection(r, m)
	case SectionElement:
		return parseElementSection(r, m)
	case SectionCode:
		return parseCodeSection(r, m)
	case SectionData:
		return parseDataSection(r, m)
	case SectionDataCount:
		return parseDataCountSection(r, m)
	case SectionTag:
		return &UnsupportedError{What: "tag section", Offset: r.Offset()}
	}
	return fmt.Errorf("invalid section code %d", id)
}

var sectionNames = map[byte]string{
	SectionCustom:    "custom",
	SectionType:      "type",
	SectionImport:    "import",
	SectionFunction:  "function",
	SectionTable:     "table",
	SectionMemory:    "memory",
	SectionGlobal:    "global",
	SectionExport:    "export",
	SectionStart:     "start",
	SectionElement:   "element",
	SectionCode:      "code",
	SectionData:      "data",
	SectionDataCount: "data count",
	SectionTag:       "tag",
}

func sectionName(id byte) string {
	if name, ok := sectionNames[id]; ok {
		return name
	}
	return fmt.Sprintf("section(%d)", id)
}

// sectionOrder returns the canonical position of a known section, or 0.
// Section IDs do not follow their required order.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	}
	return 0
}

// readCount reads a vector length and rejects lengths that cannot fit in the
// remaining input, each entry taking at least one byte.
func readCount(r *binary.Reader) (uint32, error) {
	start := r.Offset()
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if int(n) > r.Len() {
		return 0, &binary.Error{Err: binary.ErrUnexpectedEnd, Offset: start}
	}
	return n, nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, count)
	for i := range m.Types {
		start := r.Offset()
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			if form >= 0x4E && form <= 0x5F {
				return &UnsupportedError{What: "GC type definition", Offset: start}
			}
			return malformedAt(start, "unexpected type form 0x%02x", form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types[i] = FuncType{Params: params, Results: results}
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]ValType, count)
	for i := range out {
		if out[i], err = readValType(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	start := r.Offset()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	t := ValType(b)
	switch {
	case t == ValV128:
		return 0, &UnsupportedError{What: "v128 value type", Offset: start}
	case !t.Supported():
		return 0, malformedAt(start, "invalid value type 0x%02x", b)
	}
	return t, nil
}

func readRefType(r *binary.Reader) (ValType, error) {
	start := r.Offset()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if !ValType(b).IsRef() {
		return 0, malformedAt(start, "invalid reference type 0x%02x", b)
	}
	return ValType(b), nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Imports = make([]Import, count)
	for i := range m.Imports {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		start := r.Offset()
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}

		imp := Import{Module: module, Name: name, Desc: ImportDesc{Kind: kind}}
		switch kind {
		case KindFunc:
			if imp.Desc.TypeIdx, err = r.ReadU32(); err != nil {
				return err
			}
		case KindTable:
			table, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.Desc.Table = &table
		case KindMemory:
			memory, err := readMemoryType(r)
			if err != nil {
				return err
			}
			imp.Desc.Memory = &memory
		case KindGlobal:
			global, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Desc.Global = &global
		case KindTag:
			return &UnsupportedError{What: "tag import", Offset: start}
		default:
			return malformedAt(start, "malformed import kind %d", kind)
		}
		m.Imports[i] = imp
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Tables = make([]TableType, count)
	for i := range m.Tables {
		if m.Tables[i], err = readTableType(r); err != nil {
			return err
		}
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Memories = make([]MemoryType, count)
	for i := range m.Memories {
		if m.Memories[i], err = readMemoryType(r); err != nil {
			return err
		}
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Globals = make([]Global, count)
	for i := range m.Globals {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return err
		}
		m.Globals[i] = Global{Type: gt, Init: init}
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Exports = make([]Export, count)
	for i := range m.Exports {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		start := r.Offset()
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case kind == KindTag:
			return &UnsupportedError{What: "tag export", Offset: start}
		case kind > KindGlobal:
			return malformedAt(start, "malformed export kind %d", kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports[i] = Export{Name: name, Kind: kind, Idx: idx}
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Elements = make([]Element, count)
	for i := range m.Elements {
		start := r.Offset()
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		if flags > 7 {
			return malformedAt(start, "invalid element segment flags %d", flags)
		}

		// bit 0: passive or declarative, bit 1: explicit table index (active)
		// or declarative (non-active), bit 2: expression entries
		elem := Element{Type: ValFuncRef}
		switch {
		case flags&0x01 == 0:
			elem.Mode = SegmentActive
		case flags&0x02 != 0:
			elem.Mode = SegmentDeclarative
		default:
			elem.Mode = SegmentPassive
		}
		usesExprs := flags&0x04 != 0

		if elem.Mode == SegmentActive && flags&0x02 != 0 {
			if elem.TableIdx, err = r.ReadU32(); err != nil {
				return err
			}
		}
		if elem.Mode == SegmentActive {
			if elem.Offset, err = readConstExpr(r); err != nil {
				return err
			}
		}
		if flags&0x03 != 0 {
			if usesExprs {
				if elem.Type, err = readRefType(r); err != nil {
					return err
				}
			} else {
				kindAt := r.Offset()
				kind, err := r.ReadByte()
				if err != nil {
					return err
				}
				if kind != 0x00 {
					return malformedAt(kindAt, "invalid element kind 0x%02x", kind)
				}
			}
		}

		n, err := readCount(r)
		if err != nil {
			return err
		}
		if usesExprs {
			elem.Exprs = make([][]byte, n)
			for j := range elem.Exprs {
				if elem.Exprs[j], err = readConstExpr(r); err != nil {
					return err
				}
			}
		} else {
			elem.FuncIdxs = make([]uint32, n)
			for j := range elem.FuncIdxs {
				if elem.FuncIdxs[j], err = r.ReadU32(); err != nil {
					return err
				}
			}
		}
		m.Elements[i] = elem
	}
	return nil
}

// maxLocals bounds the declared locals of one function.
const maxLocals = 50000

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, count)
	for i := range m.Code {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		br, err := r.Sub(int(size))
		if err != nil {
			return err
		}
		body, err := readFuncBody(br)
		if err != nil {
			return fmt.Errorf("function body %d: %w", i, err)
		}
		m.Code[i] = body
	}
	return nil
}

func readFuncBody(r *binary.Reader) (FuncBody, error) {
	groups, err := readCount(r)
	if err != nil {
		return FuncBody{}, err
	}
	var body FuncBody
	var total uint64
	for j := uint32(0); j < groups; j++ {
		n, err := r.ReadU32()
		if err != nil {
			return FuncBody{}, err
		}
		total += uint64(n)
		if total > maxLocals {
			return FuncBody{}, fmt.Errorf("too many locals: %d", total)
		}
		t, err := readValType(r)
		if err != nil {
			return FuncBody{}, err
		}
		body.Locals = append(body.Locals, LocalEntry{Count: n, ValType: t})
	}

	base := r.Offset()
	instrs, err := decodeInstructions(r, base)
	if err != nil {
		return FuncBody{}, err
	}
	if len(instrs) == 0 || instrs[len(instrs)-1].Opcode != OpEnd {
		return FuncBody{}, malformedAt(r.Offset(), "function body must end with end opcode")
	}
	body.Code = r.Since(base)
	return body, nil
}

func parseDataSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, count)
	for i := range m.Data {
		start := r.Offset()
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		var seg DataSegment
		switch flags {
		case 0:
			seg.Mode = SegmentActive
		case 1:
			seg.Mode = SegmentPassive
		case 2:
			seg.Mode = SegmentActive
			if seg.MemIdx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return malformedAt(start, "invalid data segment flags %d", flags)
		}
		if seg.Mode == SegmentActive {
			if seg.Offset, err = readConstExpr(r); err != nil {
				return err
			}
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if seg.Init, err = r.ReadBytes(int(n)); err != nil {
			return err
		}
		m.Data[i] = seg
	}
	return nil
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &count
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	start := r.Offset()
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	switch {
	case flags&LimitsShared != 0:
		return Limits{}, &UnsupportedError{What: "shared memory", Offset: start}
	case flags&LimitsMemory64 != 0:
		return Limits{}, &UnsupportedError{What: "64-bit memory", Offset: start}
	case flags > LimitsHasMax:
		return Limits{}, malformedAt(start, "malformed limits flags 0x%02x", flags)
	}

	var l Limits
	if l.Min, err = r.ReadU32(); err != nil {
		return Limits{}, err
	}
	if flags&LimitsHasMax != 0 {
		maxVal, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &maxVal
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	start := r.Offset()
	b, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	if b == 0x40 {
		return TableType{}, &UnsupportedError{What: "table initializer expression", Offset: start}
	}
	if !ValType(b).IsRef() {
		return TableType{}, malformedAt(start, "invalid table element type 0x%02x", b)
	}
	l, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: ValType(b), Limits: l}, nil
}

func readMemoryType(r *binary.Reader) (MemoryType, error) {
	l, err := readLimits(r)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: l}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	t, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	start := r.Offset()
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, malformedAt(start, "malformed mutability 0x%02x", mut)
	}
	return GlobalType{ValType: t, Mutable: mut == 1}, nil
}

// readConstExpr reads a constant expression up to and including its end and
// returns its raw bytes. Which instructions are allowed is checked by
// validation.
func readConstExpr(r *binary.Reader) ([]byte, error) {
	start := r.Offset()
	for {
		instr, err := decodeInstruction(r, start)
		if err != nil {
			return nil, err
		}
		if instr.Opcode == OpEnd {
			return r.Since(start), nil
		}
		if instr.Info().Imm == ImmBlock {
			return nil, malformedAt(start+instr.Offset, "unexpected %s in constant expression", instr.Info().Name)
		}
	}
}
