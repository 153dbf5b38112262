package wasm

import (
	"math"

	"github.com/wippyai/wasm-effects/errors"
	"github.com/wippyai/wasm-effects/wasm/internal/binary"
)

// Instruction represents a decoded WebAssembly instruction
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop and if.
type BlockImm struct {
	Type int32 // BlockType* constant or a type index
}

// BranchImm holds the label depth for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// MemoryImm holds the memarg of loads and stores.
type MemoryImm struct {
	Offset uint64
	Align  uint32
}

// MemoryIdxImm holds the memory index of memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// F32Imm holds the raw bits of an f32.const.
type F32Imm struct {
	Bits uint32
}

// F64Imm holds the raw bits of an f64.const.
type F64Imm struct {
	Bits uint64
}

// MiscImm holds the sub-opcode and index operands of 0xFC instructions.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// RefNullImm holds the heap type of ref.null.
type RefNullImm struct {
	HeapType ValType
}

// RefFuncImm holds the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the result types of a typed select.
type SelectTypeImm struct {
	Types []ValType
}

// Float32 returns the constant as a float.
func (i F32Imm) Float32() float32 { return math.Float32frombits(i.Bits) }

// Float64 returns the constant as a float.
func (i F64Imm) Float64() float64 { return math.Float64frombits(i.Bits) }

// Name returns the text-format mnemonic of the instruction.
func (i Instruction) Name() string {
	if i.Opcode == OpPrefixMisc {
		if imm, ok := i.Imm.(MiscImm); ok {
			return MiscName(imm.SubOpcode)
		}
	}
	return OpcodeName(i.Opcode)
}

// GetCallTarget returns the callee of a direct call.
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// miscOperandCounts is the number of index immediates per 0xFC sub-opcode.
var miscOperandCounts = [...]int{
	MiscI32TruncSatF32S: 0, MiscI32TruncSatF32U: 0, MiscI32TruncSatF64S: 0, MiscI32TruncSatF64U: 0,
	MiscI64TruncSatF32S: 0, MiscI64TruncSatF32U: 0, MiscI64TruncSatF64S: 0, MiscI64TruncSatF64U: 0,
	MiscMemoryInit: 2, MiscDataDrop: 1, MiscMemoryCopy: 2, MiscMemoryFill: 1,
	MiscTableInit: 2, MiscElemDrop: 1, MiscTableCopy: 2,
	MiscTableGrow: 1, MiscTableSize: 1, MiscTableFill: 1,
}

// IsMemoryAccess reports whether op is a load or store taking a memarg.
func IsMemoryAccess(op byte) bool {
	return op >= OpI32Load && op <= OpI64Store32
}

// IsLoad reports whether op is a load.
func IsLoad(op byte) bool {
	return op >= OpI32Load && op <= OpI64Load32U
}

// isPlain reports whether op is a single-byte instruction without immediates.
func isPlain(op byte) bool {
	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull:
		return true
	}
	return op >= OpI32Eqz && op <= OpI64Extend32S
}

// DecodeInstructions decodes a sequence of instructions from raw bytes
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)
	for r.Len() > 0 {
		instr, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeInstruction(r *binary.Reader) (Instruction, error) {
	at := r.Position()
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	instr := Instruction{Opcode: op}
	imm, err := decodeImmediate(r, op)
	if err != nil {
		return Instruction{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(at).
			Detail("%s immediate", OpcodeName(op)).
			Cause(err).
			Build()
	}
	instr.Imm = imm
	return instr, nil
}

func decodeImmediate(r *binary.Reader, op byte) (any, error) {
	switch {
	case isPlain(op):
		return nil, nil
	case IsMemoryAccess(op):
		align, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		offset, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		return MemoryImm{Align: align, Offset: offset}, nil
	}

	switch op {
	case OpBlock, OpLoop, OpIf:
		bt, err := r.ReadS64()
		if err != nil {
			return nil, err
		}
		return BlockImm{Type: int32(bt)}, nil
	case OpBr, OpBrIf:
		idx, err := r.ReadU32()
		return BranchImm{LabelIdx: idx}, err
	case OpBrTable:
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int(count) > r.Len() {
			return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"br_table"}, int(count), r.Len())
		}
		labels := make([]uint32, count)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
		def, err := r.ReadU32()
		return BrTableImm{Labels: labels, Default: def}, err
	case OpCall:
		idx, err := r.ReadU32()
		return CallImm{FuncIdx: idx}, err
	case OpCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tableIdx, err := r.ReadU32()
		return CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}, err
	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx, err := r.ReadU32()
		return LocalImm{LocalIdx: idx}, err
	case OpGlobalGet, OpGlobalSet:
		idx, err := r.ReadU32()
		return GlobalImm{GlobalIdx: idx}, err
	case OpTableGet, OpTableSet:
		idx, err := r.ReadU32()
		return TableImm{TableIdx: idx}, err
	case OpMemorySize, OpMemoryGrow:
		idx, err := r.ReadU32()
		return MemoryIdxImm{MemIdx: idx}, err
	case OpI32Const:
		v, err := r.ReadS32()
		return I32Imm{Value: v}, err
	case OpI64Const:
		v, err := r.ReadS64()
		return I64Imm{Value: v}, err
	case OpF32Const:
		v, err := r.ReadU32LE()
		return F32Imm{Bits: v}, err
	case OpF64Const:
		v, err := r.ReadU64LE()
		return F64Imm{Bits: v}, err
	case OpRefNull:
		t, err := r.ReadByte()
		return RefNullImm{HeapType: ValType(t)}, err
	case OpRefFunc:
		idx, err := r.ReadU32()
		return RefFuncImm{FuncIdx: idx}, err
	case OpSelectType:
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int(count) > r.Len() {
			return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"select"}, int(count), r.Len())
		}
		types := make([]ValType, count)
		for i := range types {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			types[i] = ValType(b)
		}
		return SelectTypeImm{Types: types}, nil
	case OpPrefixMisc:
		sub, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int(sub) >= len(miscOperandCounts) {
			return nil, errors.Unsupported(errors.PhaseDecode, MiscName(sub))
		}
		imm := MiscImm{SubOpcode: sub}
		for i := 0; i < miscOperandCounts[sub]; i++ {
			v, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			imm.Operands = append(imm.Operands, v)
		}
		return imm, nil
	}
	return nil, errors.Unsupported(errors.PhaseDecode, OpcodeName(op))
}

// EncodeInstructions encodes instructions into their binary form.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i])
	}
	return w.Bytes()
}

func encodeInstruction(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)
	switch imm := instr.Imm.(type) {
	case BlockImm:
		w.WriteS32(imm.Type)
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case CallIndirectImm:
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case TableImm:
		w.WriteU32(imm.TableIdx)
	case MemoryImm:
		w.WriteU32(imm.Align)
		w.WriteU64(imm.Offset)
	case MemoryIdxImm:
		w.WriteU32(imm.MemIdx)
	case I32Imm:
		w.WriteS32(imm.Value)
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteU32LE(imm.Bits)
	case F64Imm:
		w.WriteU64LE(imm.Bits)
	case RefNullImm:
		w.Byte(byte(imm.HeapType))
	case RefFuncImm:
		w.WriteU32(imm.FuncIdx)
	case SelectTypeImm:
		w.WriteU32(uint32(len(imm.Types)))
		for _, t := range imm.Types {
			w.Byte(byte(t))
		}
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, v := range imm.Operands {
			w.WriteU32(v)
		}
	}
}
