package ir

import "github.com/wippyai/wasm-effects/wasm"

// UnaryOp is the opcode of a one-operand instruction. 0xFC-prefixed
// instructions are encoded as 0xFC00 | sub-opcode.
type UnaryOp uint16

// Float-to-integer truncations that trap on NaN or overflow.
const (
	I32TruncF32S = UnaryOp(wasm.OpI32TruncF32S)
	I32TruncF32U = UnaryOp(wasm.OpI32TruncF32U)
	I32TruncF64S = UnaryOp(wasm.OpI32TruncF64S)
	I32TruncF64U = UnaryOp(wasm.OpI32TruncF64U)
	I64TruncF32S = UnaryOp(wasm.OpI64TruncF32S)
	I64TruncF32U = UnaryOp(wasm.OpI64TruncF32U)
	I64TruncF64S = UnaryOp(wasm.OpI64TruncF64S)
	I64TruncF64U = UnaryOp(wasm.OpI64TruncF64U)
)

// A few non-trapping unary operators, named for tests and callers.
const (
	I32Eqz        = UnaryOp(wasm.OpI32Eqz)
	I64Eqz        = UnaryOp(wasm.OpI64Eqz)
	I32Clz        = UnaryOp(wasm.OpI32Clz)
	I32WrapI64    = UnaryOp(wasm.OpI32WrapI64)
	I64ExtendI32S = UnaryOp(wasm.OpI64ExtendI32S)
	F64PromoteF32 = UnaryOp(wasm.OpF64PromoteF32)
	RefIsNull     = UnaryOp(wasm.OpRefIsNull)
)

const miscBase = UnaryOp(wasm.OpPrefixMisc) << 8

// MiscUnary returns the UnaryOp of a 0xFC-prefixed one-operand instruction.
func MiscUnary(sub uint32) UnaryOp {
	return miscBase | UnaryOp(sub)
}

// Saturating truncations never trap.
const (
	I32TruncSatF32S = miscBase | UnaryOp(wasm.MiscI32TruncSatF32S)
	I32TruncSatF64U = miscBase | UnaryOp(wasm.MiscI32TruncSatF64U)
	I64TruncSatF64S = miscBase | UnaryOp(wasm.MiscI64TruncSatF64S)
)

func (op UnaryOp) String() string {
	if op&^0xff == miscBase {
		return wasm.MiscName(uint32(op & 0xff))
	}
	return wasm.OpcodeName(byte(op))
}

// BinaryOp is the opcode of a two-operand instruction.
type BinaryOp uint16

// Integer division and remainder, which trap on a zero divisor (and, for
// signed division, on overflow).
const (
	I32DivS = BinaryOp(wasm.OpI32DivS)
	I32DivU = BinaryOp(wasm.OpI32DivU)
	I32RemS = BinaryOp(wasm.OpI32RemS)
	I32RemU = BinaryOp(wasm.OpI32RemU)
	I64DivS = BinaryOp(wasm.OpI64DivS)
	I64DivU = BinaryOp(wasm.OpI64DivU)
	I64RemS = BinaryOp(wasm.OpI64RemS)
	I64RemU = BinaryOp(wasm.OpI64RemU)
)

// A few non-trapping binary operators.
const (
	I32Add = BinaryOp(wasm.OpI32Add)
	I32Mul = BinaryOp(wasm.OpI32Mul)
	I64Add = BinaryOp(wasm.OpI64Add)
	I32Eq  = BinaryOp(wasm.OpI32Eq)
	F64Div = BinaryOp(wasm.OpF64Div)
)

func (op BinaryOp) String() string {
	return wasm.OpcodeName(byte(op))
}

// isUnaryOpcode reports whether a single-byte numeric opcode takes one operand.
func isUnaryOpcode(op byte) bool {
	switch {
	case op == wasm.OpI32Eqz, op == wasm.OpI64Eqz, op == wasm.OpRefIsNull:
		return true
	case op >= wasm.OpI32Clz && op <= wasm.OpI32Popcnt:
		return true
	case op >= wasm.OpI64Clz && op <= wasm.OpI64Popcnt:
		return true
	case op >= wasm.OpF32Abs && op <= wasm.OpF32Sqrt:
		return true
	case op >= wasm.OpF64Abs && op <= wasm.OpF64Sqrt:
		return true
	case op >= wasm.OpI32WrapI64 && op <= wasm.OpI64Extend32S:
		return true
	}
	return false
}

// isBinaryOpcode reports whether a single-byte numeric opcode takes two operands.
func isBinaryOpcode(op byte) bool {
	switch {
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU:
		return true
	case op >= wasm.OpI64Eq && op <= wasm.OpF64Ge:
		return true
	case op >= wasm.OpI32Add && op <= wasm.OpI32Rotr:
		return true
	case op >= wasm.OpI64Add && op <= wasm.OpI64Rotr:
		return true
	case op >= wasm.OpF32Add && op <= wasm.OpF32Copysign:
		return true
	case op >= wasm.OpF64Add && op <= wasm.OpF64Copysign:
		return true
	}
	return false
}

// HostOp identifies an intrinsic that operates on memory or tables as a
// whole.
type HostOp uint8

const (
	MemorySize HostOp = iota
	MemoryGrow
	MemoryInit
	MemoryCopy
	MemoryFill
	DataDrop
	TableGet
	TableSet
	TableSize
	TableGrow
	TableFill
	TableCopy
	TableInit
	ElemDrop
)

var hostOpNames = [...]string{
	MemorySize: "memory.size",
	MemoryGrow: "memory.grow",
	MemoryInit: "memory.init",
	MemoryCopy: "memory.copy",
	MemoryFill: "memory.fill",
	DataDrop:   "data.drop",
	TableGet:   "table.get",
	TableSet:   "table.set",
	TableSize:  "table.size",
	TableGrow:  "table.grow",
	TableFill:  "table.fill",
	TableCopy:  "table.copy",
	TableInit:  "table.init",
	ElemDrop:   "elem.drop",
}

func (op HostOp) String() string {
	if int(op) < len(hostOpNames) {
		return hostOpNames[op]
	}
	return "host"
}

// operands is the number of stack operands the intrinsic consumes.
func (op HostOp) operands() int {
	switch op {
	case MemorySize, TableSize, DataDrop, ElemDrop:
		return 0
	case MemoryGrow, TableGet:
		return 1
	case TableSet, TableGrow:
		return 2
	default:
		return 3
	}
}

func (op HostOp) producesValue() bool {
	switch op {
	case MemorySize, MemoryGrow, TableGet, TableSize, TableGrow:
		return true
	}
	return false
}

// miscHostOps maps 0xFC sub-opcodes to intrinsics.
var miscHostOps = map[uint32]HostOp{
	wasm.MiscMemoryInit: MemoryInit,
	wasm.MiscDataDrop:   DataDrop,
	wasm.MiscMemoryCopy: MemoryCopy,
	wasm.MiscMemoryFill: MemoryFill,
	wasm.MiscTableInit:  TableInit,
	wasm.MiscElemDrop:   ElemDrop,
	wasm.MiscTableCopy:  TableCopy,
	wasm.MiscTableGrow:  TableGrow,
	wasm.MiscTableSize:  TableSize,
	wasm.MiscTableFill:  TableFill,
}
