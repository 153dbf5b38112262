package wasm

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm-effects/errors"
	"github.com/wippyai/wasm-effects/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = stderrors.New("invalid wasm magic number")
	ErrInvalidVersion = stderrors.New("invalid wasm version")
)

// sectionOrder is the canonical position of each non-custom section.
var sectionOrder = map[byte]int{
	SectionType:      1,
	SectionImport:    2,
	SectionFunction:  3,
	SectionTable:     4,
	SectionMemory:    5,
	SectionGlobal:    6,
	SectionExport:    7,
	SectionStart:     8,
	SectionElement:   9,
	SectionDataCount: 10,
	SectionCode:      11,
	SectionData:      12,
}

var sectionNames = map[byte]string{
	SectionType:     "type",
	SectionImport:   "import",
	SectionFunction: "function",
	SectionTable:    "table",
	SectionMemory:   "memory",
	SectionGlobal:   "global",
	SectionExport:   "export",
	SectionStart:    "start",
	SectionCode:     "code",
}

// ParseModule decodes a binary module. Element, data and data count
// sections are kept opaque.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, decodeError("header", r.WrapError("header", err))
	}
	if magic != Magic {
		return nil, decodeError("header", ErrInvalidMagic)
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, decodeError("header", r.WrapError("header", err))
	}
	if version != Version {
		return nil, decodeError("header", ErrInvalidVersion)
	}

	m := &Module{}
	lastOrder := 0
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, decodeError("section header", r.WrapError("section header", err))
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, decodeError("section size", r.WrapError("section size", err))
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, decodeError("section data", r.WrapError("section data", err))
		}

		if id != SectionCustom {
			order, ok := sectionOrder[id]
			if !ok {
				return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Value(id).
					Detail("unknown section ID 0x%02x", id).
					Build()
			}
			if order <= lastOrder {
				return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Value(id).
					Detail("section %d appears out of order", id).
					Build()
			}
			lastOrder = order
		}

		if err := parseSection(m, id, binary.NewReader(payload)); err != nil {
			return nil, err
		}
	}
	if len(m.Funcs) != len(m.Code) {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"code"},
			fmt.Sprintf("function section declares %d functions, code section has %d", len(m.Funcs), len(m.Code)))
	}
	return m, nil
}

func parseSection(m *Module, id byte, r *binary.Reader) error {
	var err error
	switch id {
	case SectionCustom:
		err = parseCustomSection(r, m)
	case SectionType:
		err = parseTypeSection(r, m)
	case SectionImport:
		err = parseImportSection(r, m)
	case SectionFunction:
		m.Funcs, err = readVec(r, (*binary.Reader).ReadU32)
	case SectionTable:
		m.Tables, err = readVec(r, readTableType)
	case SectionMemory:
		m.Memories, err = readVec(r, readMemoryType)
	case SectionGlobal:
		m.Globals, err = readVec(r, readGlobal)
	case SectionExport:
		m.Exports, err = readVec(r, readExport)
	case SectionStart:
		var idx uint32
		idx, err = r.ReadU32()
		m.Start = &idx
	case SectionCode:
		m.Code, err = readVec(r, readFuncBody)
	default:
		m.Opaque = append(m.Opaque, OpaqueSection{ID: id, Data: r.ReadRemaining()})
		return nil
	}
	if err != nil {
		return decodeError(sectionNames[id]+" section", err)
	}
	if r.Len() != 0 && id != SectionCustom {
		return errors.InvalidData(errors.PhaseDecode, []string{sectionNames[id]},
			fmt.Sprintf("%d trailing bytes", r.Len()))
	}
	return nil
}

func decodeError(where string, err error) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(where).
		Cause(err).
		Build()
}

// readVec reads a LEB128 count followed by that many elements.
func readVec[T any](r *binary.Reader, read func(*binary.Reader) (T, error)) ([]T, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	// every element occupies at least one byte
	if int(count) > r.Len() {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, int(count), r.Len())
	}
	out := make([]T, count)
	for i := range out {
		if out[i], err = read(r); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	var err error
	m.Types, err = readVec(r, readFuncType)
	return err
}

func readFuncType(r *binary.Reader) (FuncType, error) {
	form, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	if form != FuncTypeForm {
		return FuncType{}, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("type form 0x%02x", form))
	}
	params, err := readVec(r, readValType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readVec(r, readValType)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch v := ValType(b); v {
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		return v, nil
	}
	return 0, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("value type 0x%02x", b))
}

func parseImportSection(r *binary.Reader, m *Module) error {
	var err error
	m.Imports, err = readVec(r, readImport)
	return err
}

func readImport(r *binary.Reader) (Import, error) {
	module, err := r.ReadName()
	if err != nil {
		return Import{}, err
	}
	name, err := r.ReadName()
	if err != nil {
		return Import{}, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return Import{}, err
	}
	imp := Import{Module: module, Name: name, Desc: ImportDesc{Kind: kind}}
	switch kind {
	case KindFunc:
		imp.Desc.TypeIdx, err = r.ReadU32()
	case KindTable:
		var t TableType
		t, err = readTableType(r)
		imp.Desc.Table = &t
	case KindMemory:
		var mt MemoryType
		mt, err = readMemoryType(r)
		imp.Desc.Memory = &mt
	case KindGlobal:
		var g GlobalType
		g, err = readGlobalType(r)
		imp.Desc.Global = &g
	default:
		return Import{}, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("import kind %d", kind))
	}
	return imp, err
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flag > 1 {
		return Limits{}, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("limits flag 0x%02x", flag))
	}
	lo, err := r.ReadU32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: uint64(lo)}
	if flag == 1 {
		hi, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		v := uint64(hi)
		l.Max = &v
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := readValType(r)
	if err != nil {
		return TableType{}, err
	}
	limits, err := readLimits(r)
	return TableType{ElemType: elem, Limits: limits}, err
}

func readMemoryType(r *binary.Reader) (MemoryType, error) {
	limits, err := readLimits(r)
	return MemoryType{Limits: limits}, err
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, errors.InvalidData(errors.PhaseDecode, []string{"global"}, fmt.Sprintf("mutability 0x%02x", mut))
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func readGlobal(r *binary.Reader) (Global, error) {
	gt, err := readGlobalType(r)
	if err != nil {
		return Global{}, err
	}
	init, err := readConstExpr(r)
	return Global{Type: gt, Init: init}, err
}

// readConstExpr reads instructions up to and including the terminating end.
func readConstExpr(r *binary.Reader) ([]Instruction, error) {
	var out []Instruction
	for {
		instr, err := decodeInstruction(r)
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if instr.Opcode == OpEnd {
			return out, nil
		}
		out = append(out, instr)
	}
}

func readExport(r *binary.Reader) (Export, error) {
	name, err := r.ReadName()
	if err != nil {
		return Export{}, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return Export{}, err
	}
	if kind > KindGlobal {
		return Export{}, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("export kind %d", kind))
	}
	idx, err := r.ReadU32()
	return Export{Name: name, Kind: kind, Idx: idx}, err
}

func readFuncBody(r *binary.Reader) (FuncBody, error) {
	size, err := r.ReadU32()
	if err != nil {
		return FuncBody{}, err
	}
	data, err := r.ReadBytes(int(size))
	if err != nil {
		return FuncBody{}, err
	}
	br := binary.NewReader(data)
	locals, err := readVec(br, readLocalEntry)
	if err != nil {
		return FuncBody{}, err
	}
	return FuncBody{Locals: locals, Code: br.ReadRemaining()}, nil
}

func readLocalEntry(r *binary.Reader) (LocalEntry, error) {
	n, err := r.ReadU32()
	if err != nil {
		return LocalEntry{}, err
	}
	t, err := readValType(r)
	return LocalEntry{Count: n, ValType: t}, err
}

const (
	nameSubsectionModule   byte = 0
	nameSubsectionFunction byte = 1
	nameSubsectionGlobal   byte = 7
)

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	if name != "name" {
		m.Opaque = append(m.Opaque, OpaqueSection{ID: SectionCustom, Name: name, Data: r.ReadRemaining()})
		return nil
	}
	// A malformed name section is ignored rather than failing the module.
	names, err := parseNameSection(r)
	if err == nil {
		m.Names = names
	}
	return nil
}

func parseNameSection(r *binary.Reader) (*NameSection, error) {
	ns := &NameSection{}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		sr := binary.NewReader(payload)
		switch id {
		case nameSubsectionModule:
			if ns.Module, err = sr.ReadName(); err != nil {
				return nil, err
			}
		case nameSubsectionFunction:
			if ns.Functions, err = readNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubsectionGlobal:
			if ns.Globals, err = readNameMap(sr); err != nil {
				return nil, err
			}
		}
	}
	return ns, nil
}

func readNameMap(r *binary.Reader) (map[uint32]string, error) {
	type entry struct {
		name string
		idx  uint32
	}
	entries, err := readVec(r, func(r *binary.Reader) (entry, error) {
		idx, err := r.ReadU32()
		if err != nil {
			return entry{}, err
		}
		name, err := r.ReadName()
		return entry{idx: idx, name: name}, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]string, len(entries))
	for _, e := range entries {
		out[e.idx] = e.name
	}
	return out, nil
}
