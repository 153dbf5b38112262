package wasm

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-effects/errors"
)

func testModule() *Module {
	maxPages := uint64(4)
	m := &Module{}
	voidType := m.AddType(FuncType{})
	i32Type := m.AddType(FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}})
	m.Imports = []Import{
		{Module: "env", Name: "log", Desc: ImportDesc{Kind: KindFunc, TypeIdx: i32Type}},
		{Module: "env", Name: "counter", Desc: ImportDesc{Kind: KindGlobal, Global: &GlobalType{ValType: ValI32, Mutable: true}}},
		{Module: "env", Name: "memory", Desc: ImportDesc{Kind: KindMemory, Memory: &MemoryType{Limits: Limits{Min: 1, Max: &maxPages}}}},
	}
	m.Funcs = []uint32{voidType, i32Type}
	m.Globals = []Global{
		{Type: GlobalType{ValType: ValI64, Mutable: true}, Init: []Instruction{{Opcode: OpI64Const, Imm: I64Imm{Value: -1}}}},
	}
	m.Exports = []Export{
		{Name: "run", Kind: KindFunc, Idx: 1},
		{Name: "state", Kind: KindGlobal, Idx: 1},
	}
	m.Code = []FuncBody{
		NewFuncBody(nil, []Instruction{{Opcode: OpNop}}),
		NewFuncBody([]LocalEntry{{Count: 2, ValType: ValI64}}, []Instruction{
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
			{Opcode: OpCall, Imm: CallImm{FuncIdx: 0}},
		}),
	}
	m.Names = &NameSection{
		Module:    "fixture",
		Functions: map[uint32]string{2: "double"},
	}
	return m
}

func TestModuleRoundTrip(t *testing.T) {
	m := testModule()
	got, err := ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	if len(got.Types) != 2 {
		t.Fatalf("types: got %d, want 2", len(got.Types))
	}
	if len(got.Imports) != 3 {
		t.Fatalf("imports: got %d, want 3", len(got.Imports))
	}
	if got.Imports[2].Desc.Memory == nil || *got.Imports[2].Desc.Memory.Limits.Max != 4 {
		t.Errorf("memory import limits not preserved: %+v", got.Imports[2].Desc.Memory)
	}
	if len(got.Code) != 2 || len(got.Code[1].Locals) != 1 || got.Code[1].Locals[0].Count != 2 {
		t.Errorf("code locals not preserved: %+v", got.Code)
	}
	if len(got.Globals) != 1 || !got.Globals[0].Type.Mutable {
		t.Fatalf("globals not preserved: %+v", got.Globals)
	}
	if imm, ok := got.Globals[0].Init[0].Imm.(I64Imm); !ok || imm.Value != -1 {
		t.Errorf("global init: got %+v", got.Globals[0].Init)
	}
	if got.Names == nil || got.Names.Module != "fixture" || got.Names.Functions[2] != "double" {
		t.Errorf("name section not preserved: %+v", got.Names)
	}
}

func TestModuleIndexSpaces(t *testing.T) {
	m := testModule()

	if n := m.NumImportedFuncs(); n != 1 {
		t.Errorf("NumImportedFuncs: got %d, want 1", n)
	}
	if n := m.NumFuncs(); n != 3 {
		t.Errorf("NumFuncs: got %d, want 3", n)
	}
	if n := m.NumGlobals(); n != 2 {
		t.Errorf("NumGlobals: got %d, want 2", n)
	}
	if imp := m.FuncImport(0); imp == nil || imp.Name != "log" {
		t.Errorf("FuncImport(0): got %+v", imp)
	}
	if imp := m.FuncImport(1); imp != nil {
		t.Errorf("FuncImport(1): expected nil, got %+v", imp)
	}
	if ft := m.GetFuncType(2); ft == nil || len(ft.Params) != 1 {
		t.Errorf("GetFuncType(2): got %+v", ft)
	}
	if ft := m.GetFuncType(9); ft != nil {
		t.Errorf("GetFuncType(9): expected nil, got %+v", ft)
	}
	if gt := m.GlobalType(0); gt == nil || gt.ValType != ValI32 {
		t.Errorf("GlobalType(0): got %+v", gt)
	}
	if gt := m.GlobalType(1); gt == nil || gt.ValType != ValI64 {
		t.Errorf("GlobalType(1): got %+v", gt)
	}
}

func TestModuleNames(t *testing.T) {
	m := testModule()

	tests := []struct {
		got, want string
	}{
		{m.FuncName(0), "env.log"},
		{m.FuncName(1), "run"},
		{m.FuncName(2), "double"},
		{m.FuncName(7), "func7"},
		{m.GlobalName(0), "env.counter"},
		{m.GlobalName(5), "global5"},
		{m.GlobalName(1), "state"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestAddTypeDeduplicates(t *testing.T) {
	m := &Module{}
	a := m.AddType(FuncType{Params: []ValType{ValI32}})
	b := m.AddType(FuncType{Params: []ValType{ValI32}})
	c := m.AddType(FuncType{Results: []ValType{ValI32}})
	if a != b {
		t.Errorf("identical signatures got different indices %d and %d", a, b)
	}
	if c == a {
		t.Error("distinct signatures share an index")
	}
}

func TestParseModuleErrors(t *testing.T) {
	valid := testModule().Encode()

	tests := []struct {
		name  string
		data  []byte
		cause error
	}{
		{"empty", nil, nil},
		{"bad magic", []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}, ErrInvalidMagic},
		{"bad version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}, ErrInvalidVersion},
		{"truncated", valid[:len(valid)-3], nil},
		{"unknown section", append(append([]byte{}, valid[:8]...), 0x2a, 0x00), nil},
		{"out of order", append(append([]byte{}, valid[:8]...), SectionExport, 0x01, 0x00, SectionType, 0x01, 0x00), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModule(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidData}) {
				t.Errorf("expected decode/invalid_data, got %v", err)
			}
			if tt.cause != nil && !stderrors.Is(err, tt.cause) {
				t.Errorf("expected cause %v, got %v", tt.cause, err)
			}
		})
	}
}

func TestParseModuleKeepsOpaqueSections(t *testing.T) {
	m := testModule()
	m.Opaque = []OpaqueSection{
		{ID: SectionData, Data: []byte{0x00}},
		{ID: SectionCustom, Name: "producers", Data: []byte{0x00}},
	}
	got, err := ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(got.Opaque) != 2 {
		t.Fatalf("opaque sections: got %d, want 2", len(got.Opaque))
	}
	if got.Opaque[0].ID != SectionData || got.Opaque[1].Name != "producers" {
		t.Errorf("unexpected opaque sections: %+v", got.Opaque)
	}
}

func TestValTypeString(t *testing.T) {
	if ValI64.String() != "i64" || ValExtern.String() != "externref" || ValType(0x01).String() != "unknown" {
		t.Error("unexpected ValType names")
	}
}
