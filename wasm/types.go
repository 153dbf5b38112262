package wasm

import "strconv"

// Module is a decoded core WebAssembly module, restricted to what effect
// analysis needs: signatures, imports, globals, exports, bodies and names.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type indices of defined functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Code     []FuncBody
	Names    *NameSection

	// Sections the decoder does not model (element, data, data count and
	// foreign custom sections), kept verbatim so Encode can reproduce them.
	Opaque []OpaqueSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType is a value type encoding.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// Import is an imported function, table, memory or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Kind is one of the Kind* constants.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits bounds a table or memory.
type Limits struct {
	Max *uint64
	Min uint64
}

// GlobalType is a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a defined global with its constant initializer.
type Global struct {
	Init []Instruction // without the terminating end
	Type GlobalType
}

// Export is an exported item. Kind is one of the Kind* constants.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody holds a function's local declarations and raw code.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // includes the final end opcode
}

// LocalEntry is a run of locals sharing one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// NameSection holds the subsections of the "name" custom section this
// package understands.
type NameSection struct {
	Functions map[uint32]string
	Globals   map[uint32]string
	Module    string
}

// OpaqueSection is a section carried through without interpretation.
type OpaqueSection struct {
	Name string // custom sections only
	Data []byte
	ID   byte
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	return m.countImports(KindFunc)
}

// NumImportedGlobals returns the number of imported globals
func (m *Module) NumImportedGlobals() int {
	return m.countImports(KindGlobal)
}

func (m *Module) countImports(kind byte) int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			count++
		}
	}
	return count
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int {
	return m.NumImportedFuncs() + len(m.Funcs)
}

// NumGlobals returns the size of the global index space.
func (m *Module) NumGlobals() int {
	return m.NumImportedGlobals() + len(m.Globals)
}

// FuncImport returns the import backing funcIdx, or nil when the function is
// defined in the module.
func (m *Module) FuncImport(funcIdx uint32) *Import {
	n := uint32(0)
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind != KindFunc {
			continue
		}
		if n == funcIdx {
			return &m.Imports[i]
		}
		n++
	}
	return nil
}

// GetFuncType returns the type of a function by its index
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	if imp := m.FuncImport(funcIdx); imp != nil {
		return m.TypeAt(imp.Desc.TypeIdx)
	}
	localIdx := int(funcIdx) - m.NumImportedFuncs()
	if localIdx < 0 || localIdx >= len(m.Funcs) {
		return nil
	}
	return m.TypeAt(m.Funcs[localIdx])
}

// TypeAt returns the function type at typeIdx, or nil if out of range.
func (m *Module) TypeAt(typeIdx uint32) *FuncType {
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

func (m *Module) globalImport(globalIdx uint32) *Import {
	n := uint32(0)
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind != KindGlobal {
			continue
		}
		if n == globalIdx {
			return &m.Imports[i]
		}
		n++
	}
	return nil
}

// GlobalType returns the type of a global by its index
func (m *Module) GlobalType(globalIdx uint32) *GlobalType {
	if imp := m.globalImport(globalIdx); imp != nil {
		return imp.Desc.Global
	}
	localIdx := int(globalIdx) - m.NumImportedGlobals()
	if localIdx < 0 || localIdx >= len(m.Globals) {
		return nil
	}
	return &m.Globals[localIdx].Type
}

// FuncName returns a stable, human-readable name for funcIdx: the name
// section entry, else the first export, else the import path, else
// "func<N>".
func (m *Module) FuncName(funcIdx uint32) string {
	if m.Names != nil {
		if name, ok := m.Names.Functions[funcIdx]; ok && name != "" {
			return name
		}
	}
	if name, ok := m.exportName(KindFunc, funcIdx); ok {
		return name
	}
	if imp := m.FuncImport(funcIdx); imp != nil {
		return imp.Module + "." + imp.Name
	}
	return "func" + strconv.FormatUint(uint64(funcIdx), 10)
}

// GlobalName returns a stable name for globalIdx, resolved the same way
// as FuncName. Distinct indices always yield distinct names unless the
// module itself assigns duplicate names.
func (m *Module) GlobalName(globalIdx uint32) string {
	if m.Names != nil {
		if name, ok := m.Names.Globals[globalIdx]; ok && name != "" {
			return name
		}
	}
	if name, ok := m.exportName(KindGlobal, globalIdx); ok {
		return name
	}
	if imp := m.globalImport(globalIdx); imp != nil {
		return imp.Module + "." + imp.Name
	}
	return "global" + strconv.FormatUint(uint64(globalIdx), 10)
}

func (m *Module) exportName(kind byte, idx uint32) (string, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == kind && exp.Idx == idx {
			return exp.Name, true
		}
	}
	return "", false
}

// AddType appends ft unless an identical signature exists and returns its index.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, existing := range m.Types {
		if valTypesEqual(existing.Params, ft.Params) && valTypesEqual(existing.Results, ft.Results) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

func valTypesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
