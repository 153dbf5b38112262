package wasm

import (
	"bytes"
	"reflect"
	"testing"
)

func TestInstructionRoundTrip(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeI32}},
		{Opcode: OpLoop, Imm: BlockImm{Type: BlockTypeVoid}},
		{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 300}},
		{Opcode: OpBrIf, Imm: BranchImm{LabelIdx: 1}},
		{Opcode: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1}, Default: 0}},
		{Opcode: OpEnd},
		{Opcode: OpI32Const, Imm: I32Imm{Value: -42}},
		{Opcode: OpI64Const, Imm: I64Imm{Value: 1 << 40}},
		{Opcode: OpF32Const, Imm: F32Imm{Bits: 0x3f800000}},
		{Opcode: OpF64Const, Imm: F64Imm{Bits: 0x3ff0000000000000}},
		{Opcode: OpI32Load, Imm: MemoryImm{Align: 2, Offset: 16}},
		{Opcode: OpI64Store32, Imm: MemoryImm{Align: 2, Offset: 1 << 33}},
		{Opcode: OpMemoryGrow, Imm: MemoryIdxImm{}},
		{Opcode: OpCall, Imm: CallImm{FuncIdx: 7}},
		{Opcode: OpCallIndirect, Imm: CallIndirectImm{TypeIdx: 1}},
		{Opcode: OpGlobalSet, Imm: GlobalImm{GlobalIdx: 2}},
		{Opcode: OpTableGet, Imm: TableImm{TableIdx: 0}},
		{Opcode: OpRefNull, Imm: RefNullImm{HeapType: ValFuncRef}},
		{Opcode: OpRefFunc, Imm: RefFuncImm{FuncIdx: 3}},
		{Opcode: OpSelectType, Imm: SelectTypeImm{Types: []ValType{ValI32}}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscI32TruncSatF64U}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryCopy, Operands: []uint32{0, 0}}},
		{Opcode: OpI32DivS},
		{Opcode: OpI64TruncF64U},
		{Opcode: OpDrop},
		{Opcode: OpEnd},
	}

	got, err := DecodeInstructions(EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if !reflect.DeepEqual(got, instrs) {
		t.Errorf("round trip mismatch\ngot:  %+v\nwant: %+v", got, instrs)
	}
}

func TestDecodeInstructionsErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{0xff}},
		{"simd prefix", []byte{0xfd, 0x00}},
		{"truncated immediate", []byte{OpLocalGet}},
		{"truncated memarg", []byte{OpI32Load, 0x02}},
		{"unknown misc", []byte{OpPrefixMisc, 0x40}},
		{"oversized br_table", []byte{OpBrTable, 0xff, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeInstructions(tt.code); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInstructionName(t *testing.T) {
	tests := []struct {
		instr Instruction
		want  string
	}{
		{Instruction{Opcode: OpI32TruncF32S}, "i32.trunc_f32_s"},
		{Instruction{Opcode: OpI64RemU}, "i64.rem_u"},
		{Instruction{Opcode: OpMemorySize}, "memory.size"},
		{Instruction{Opcode: OpBrTable}, "br_table"},
		{Instruction{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryFill}}, "memory.fill"},
		{Instruction{Opcode: 0xee}, "op(0xee)"},
	}
	for _, tt := range tests {
		if got := tt.instr.Name(); got != tt.want {
			t.Errorf("Name(0x%02x): got %q, want %q", tt.instr.Opcode, got, tt.want)
		}
	}
}

func TestNewFuncBodyAppendsEnd(t *testing.T) {
	body := NewFuncBody(nil, []Instruction{{Opcode: OpNop}})
	if !bytes.Equal(body.Code, []byte{OpNop, OpEnd}) {
		t.Errorf("got %v", body.Code)
	}
	body = NewFuncBody(nil, []Instruction{{Opcode: OpNop}, {Opcode: OpEnd}})
	if !bytes.Equal(body.Code, []byte{OpNop, OpEnd}) {
		t.Errorf("end duplicated: %v", body.Code)
	}
}

func TestMemoryAccessClassification(t *testing.T) {
	if !IsLoad(OpI64Load32U) || IsLoad(OpI32Store) {
		t.Error("IsLoad misclassifies")
	}
	if !IsMemoryAccess(OpI64Store32) || IsMemoryAccess(OpMemorySize) {
		t.Error("IsMemoryAccess misclassifies")
	}
}
