package ir

import (
	"strconv"

	"github.com/wippyai/wasm-effects/errors"
	"github.com/wippyai/wasm-effects/wasm"
)

// maxLocals bounds the declared locals of one function.
const maxLocals = 50000

// Reference block types as signed 33-bit values.
const (
	blockTypeFuncRef   int32 = -16
	blockTypeExternRef int32 = -17
)

// Function is a lifted function body.
type Function struct {
	Body    *Block
	Type    *wasm.FuncType
	Name    string
	Locals  []wasm.ValType // parameters followed by declared locals
	Index   uint32
	Scratch int // spill locals, indexed after Locals
}

// Statements returns the top-level statements of the body.
func (f *Function) Statements() []Expr {
	return f.Body.List
}

// NumLocals returns the size of the local index space including scratch
// locals introduced by lifting.
func (f *Function) NumLocals() int {
	return len(f.Locals) + f.Scratch
}

// Lift decodes the body of the defined function funcIdx and converts it
// into an expression tree.
func Lift(m *wasm.Module, funcIdx uint32) (*Function, error) {
	path := []string{"func[" + strconv.FormatUint(uint64(funcIdx), 10) + "]"}
	defIdx := int(funcIdx) - m.NumImportedFuncs()
	if defIdx < 0 {
		return nil, errors.New(errors.PhaseLift, errors.KindInvalidInput).
			Path(path...).
			Detail("%s is imported and has no body", m.FuncName(funcIdx)).
			Build()
	}
	if defIdx >= len(m.Code) {
		return nil, errors.OutOfBounds(errors.PhaseLift, path, int(funcIdx), m.NumFuncs())
	}
	ft := m.GetFuncType(funcIdx)
	if ft == nil {
		return nil, errors.New(errors.PhaseLift, errors.KindNotFound).
			Path(path...).
			Detail("function type").
			Build()
	}
	if len(ft.Results) > 1 {
		return nil, errors.New(errors.PhaseLift, errors.KindUnsupported).
			Path(path...).
			Value(len(ft.Results)).
			Detail("multi-value function results").
			Build()
	}

	body := &m.Code[defIdx]
	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return nil, errors.New(errors.PhaseLift, errors.KindInvalidData).
			Path(path...).
			Detail("decode body").
			Cause(err).
			Build()
	}

	fn := &Function{
		Index: funcIdx,
		Name:  m.FuncName(funcIdx),
		Type:  ft,
	}
	fn.Locals = append(fn.Locals, ft.Params...)
	for _, entry := range body.Locals {
		if uint64(len(fn.Locals))+uint64(entry.Count) > maxLocals {
			return nil, errors.Overflow(errors.PhaseLift, path, entry.Count, "local index space")
		}
		for i := uint32(0); i < entry.Count; i++ {
			fn.Locals = append(fn.Locals, entry.ValType)
		}
	}

	l := &lifter{m: m, fn: fn, instrs: instrs, path: path}
	l.frames = []*frame{{kind: frameFunc, arity: len(ft.Results)}}
	if err := l.run(); err != nil {
		return nil, err
	}
	return fn, nil
}

type frameKind uint8

const (
	frameFunc frameKind = iota
	frameBlock
	frameLoop
	frameIf
)

var framePrefixes = [...]string{"$func", "$block", "$loop", "$if"}

// frame is one open control construct.
type frame struct {
	cond    Expr   // if condition
	label   string // assigned when first targeted
	stack   []Expr // pending operand values
	list    []Expr // emitted statements
	then    []Expr // completed then-arm once else is seen
	arity   int
	kind    frameKind
	hasElse bool
	dead    bool // rest of the current arm is unreachable
}

type lifter struct {
	m      *wasm.Module
	fn     *Function
	instrs []wasm.Instruction
	frames []*frame
	path   []string
	pos    int
	labels int
}

func (l *lifter) run() error {
	for l.pos < len(l.instrs) && len(l.frames) > 0 {
		instr := l.instrs[l.pos]
		l.pos++
		if err := l.step(instr); err != nil {
			return err
		}
	}
	if len(l.frames) > 0 {
		return l.fail(errors.KindInvalidData, "body ends without closing %d construct(s)", len(l.frames))
	}
	if l.pos < len(l.instrs) {
		return l.fail(errors.KindInvalidData, "%d instruction(s) after function end", len(l.instrs)-l.pos)
	}
	return nil
}

func (l *lifter) step(instr wasm.Instruction) error {
	op := instr.Opcode
	switch {
	case wasm.IsMemoryAccess(op):
		return l.memoryAccess(instr)
	case isUnaryOpcode(op):
		v, err := l.pop(op)
		if err != nil {
			return err
		}
		l.push(&Unary{Op: UnaryOp(op), Value: v})
		return nil
	case isBinaryOpcode(op):
		operands, err := l.popN(op, 2)
		if err != nil {
			return err
		}
		l.push(&Binary{Op: BinaryOp(op), Left: operands[0], Right: operands[1]})
		return nil
	}

	switch op {
	case wasm.OpNop:
		return nil

	case wasm.OpUnreachable:
		l.emit(&Unreachable{})
		l.markDead()
		return nil

	case wasm.OpBlock, wasm.OpLoop:
		arity, err := l.blockArity(instr.Imm.(wasm.BlockImm).Type)
		if err != nil {
			return err
		}
		kind := frameBlock
		if op == wasm.OpLoop {
			kind = frameLoop
		}
		l.frames = append(l.frames, &frame{kind: kind, arity: arity})
		return nil

	case wasm.OpIf:
		cond, err := l.pop(op)
		if err != nil {
			return err
		}
		arity, err := l.blockArity(instr.Imm.(wasm.BlockImm).Type)
		if err != nil {
			return err
		}
		l.frames = append(l.frames, &frame{kind: frameIf, arity: arity, cond: cond})
		return nil

	case wasm.OpElse:
		f := l.top()
		if f.kind != frameIf || f.hasElse {
			return l.fail(errors.KindInvalidData, "else without matching if")
		}
		if err := l.closeArm(f); err != nil {
			return err
		}
		f.then, f.list, f.stack = f.list, nil, nil
		f.hasElse = true
		f.dead = false
		return nil

	case wasm.OpEnd:
		return l.end()

	case wasm.OpBr:
		target, err := l.target(instr.Imm.(wasm.BranchImm).LabelIdx)
		if err != nil {
			return err
		}
		value, err := l.branchValue(op, target)
		if err != nil {
			return err
		}
		l.emit(&Break{Label: l.label(target), Value: value})
		l.markDead()
		return nil

	case wasm.OpBrIf:
		target, err := l.target(instr.Imm.(wasm.BranchImm).LabelIdx)
		if err != nil {
			return err
		}
		cond, err := l.pop(op)
		if err != nil {
			return err
		}
		value, err := l.branchValue(op, target)
		if err != nil {
			return err
		}
		l.add(&Break{Label: l.label(target), Value: value, Cond: cond})
		return nil

	case wasm.OpBrTable:
		imm := instr.Imm.(wasm.BrTableImm)
		def, err := l.target(imm.Default)
		if err != nil {
			return err
		}
		sw := &Switch{Targets: make([]string, len(imm.Labels))}
		for i, depth := range imm.Labels {
			t, err := l.target(depth)
			if err != nil {
				return err
			}
			sw.Targets[i] = l.label(t)
		}
		sw.Default = l.label(def)
		if sw.Cond, err = l.pop(op); err != nil {
			return err
		}
		if sw.Value, err = l.branchValue(op, def); err != nil {
			return err
		}
		l.emit(sw)
		l.markDead()
		return nil

	case wasm.OpReturn:
		var value Expr
		if len(l.fn.Type.Results) > 0 {
			v, err := l.pop(op)
			if err != nil {
				return err
			}
			value = v
		}
		l.emit(&Return{Value: value})
		l.markDead()
		return nil

	case wasm.OpCall:
		return l.call(instr.Imm.(wasm.CallImm).FuncIdx)

	case wasm.OpCallIndirect:
		return l.callIndirect(instr.Imm.(wasm.CallIndirectImm))

	case wasm.OpDrop:
		v, err := l.pop(op)
		if err != nil {
			return err
		}
		l.emit(&Drop{Value: v})
		return nil

	case wasm.OpSelect, wasm.OpSelectType:
		operands, err := l.popN(op, 3)
		if err != nil {
			return err
		}
		l.push(&Select{IfTrue: operands[0], IfFalse: operands[1], Cond: operands[2]})
		return nil

	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		return l.local(op, instr.Imm.(wasm.LocalImm).LocalIdx)

	case wasm.OpGlobalGet, wasm.OpGlobalSet:
		return l.global(op, instr.Imm.(wasm.GlobalImm).GlobalIdx)

	case wasm.OpMemorySize:
		return l.host(op, MemorySize)
	case wasm.OpMemoryGrow:
		return l.host(op, MemoryGrow)
	case wasm.OpTableGet:
		return l.host(op, TableGet)
	case wasm.OpTableSet:
		return l.host(op, TableSet)

	case wasm.OpI32Const:
		l.push(&Const{Op: op, Bits: uint64(uint32(instr.Imm.(wasm.I32Imm).Value))})
		return nil
	case wasm.OpI64Const:
		l.push(&Const{Op: op, Bits: uint64(instr.Imm.(wasm.I64Imm).Value)})
		return nil
	case wasm.OpF32Const:
		l.push(&Const{Op: op, Bits: uint64(instr.Imm.(wasm.F32Imm).Bits)})
		return nil
	case wasm.OpF64Const:
		l.push(&Const{Op: op, Bits: instr.Imm.(wasm.F64Imm).Bits})
		return nil
	case wasm.OpRefNull:
		l.push(&Const{Op: op, Bits: uint64(instr.Imm.(wasm.RefNullImm).HeapType)})
		return nil
	case wasm.OpRefFunc:
		l.push(&Const{Op: op, Bits: uint64(instr.Imm.(wasm.RefFuncImm).FuncIdx)})
		return nil

	case wasm.OpPrefixMisc:
		sub := instr.Imm.(wasm.MiscImm).SubOpcode
		if sub <= wasm.MiscI64TruncSatF64U {
			v, err := l.pop(op)
			if err != nil {
				return err
			}
			l.push(&Unary{Op: MiscUnary(sub), Value: v})
			return nil
		}
		hop, ok := miscHostOps[sub]
		if !ok {
			return l.fail(errors.KindUnsupported, "instruction %s", wasm.MiscName(sub))
		}
		return l.host(op, hop)
	}

	return l.fail(errors.KindUnsupported, "instruction %s", wasm.OpcodeName(op))
}

func (l *lifter) memoryAccess(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.MemoryImm)
	if wasm.IsLoad(instr.Opcode) {
		ptr, err := l.pop(instr.Opcode)
		if err != nil {
			return err
		}
		l.push(&Load{Op: instr.Opcode, Offset: imm.Offset, Align: imm.Align, Ptr: ptr})
		return nil
	}
	operands, err := l.popN(instr.Opcode, 2)
	if err != nil {
		return err
	}
	l.emit(&Store{Op: instr.Opcode, Offset: imm.Offset, Align: imm.Align, Ptr: operands[0], Value: operands[1]})
	return nil
}

func (l *lifter) local(op byte, idx uint32) error {
	if int(idx) >= len(l.fn.Locals) {
		return errors.OutOfBounds(errors.PhaseLift, l.where(), int(idx), len(l.fn.Locals))
	}
	if op == wasm.OpLocalGet {
		l.push(&GetLocal{Index: idx})
		return nil
	}
	v, err := l.pop(op)
	if err != nil {
		return err
	}
	l.add(&SetLocal{Index: idx, Value: v, Tee: op == wasm.OpLocalTee})
	return nil
}

func (l *lifter) global(op byte, idx uint32) error {
	if int(idx) >= l.m.NumGlobals() {
		return errors.OutOfBounds(errors.PhaseLift, l.where(), int(idx), l.m.NumGlobals())
	}
	name := l.m.GlobalName(idx)
	if op == wasm.OpGlobalGet {
		l.push(&GetGlobal{Name: name})
		return nil
	}
	v, err := l.pop(op)
	if err != nil {
		return err
	}
	l.emit(&SetGlobal{Name: name, Value: v})
	return nil
}

func (l *lifter) host(op byte, hop HostOp) error {
	operands, err := l.popN(op, hop.operands())
	if err != nil {
		return err
	}
	l.add(&Host{Op: hop, Operands: operands})
	return nil
}

func (l *lifter) call(funcIdx uint32) error {
	ft := l.m.GetFuncType(funcIdx)
	if ft == nil {
		return errors.OutOfBounds(errors.PhaseLift, l.where(), int(funcIdx), l.m.NumFuncs())
	}
	if len(ft.Results) > 1 {
		return l.fail(errors.KindUnsupported, "call to multi-value function %d", funcIdx)
	}
	operands, err := l.popN(wasm.OpCall, len(ft.Params))
	if err != nil {
		return err
	}
	if imp := l.m.FuncImport(funcIdx); imp != nil {
		l.add(&CallImport{
			Target:   funcIdx,
			Module:   imp.Module,
			Name:     imp.Name,
			Operands: operands,
			Arity:    len(ft.Results),
		})
		return nil
	}
	l.add(&Call{Target: funcIdx, Operands: operands, Arity: len(ft.Results)})
	return nil
}

func (l *lifter) callIndirect(imm wasm.CallIndirectImm) error {
	ft := l.m.TypeAt(imm.TypeIdx)
	if ft == nil {
		return errors.OutOfBounds(errors.PhaseLift, l.where(), int(imm.TypeIdx), len(l.m.Types))
	}
	if len(ft.Results) > 1 {
		return l.fail(errors.KindUnsupported, "indirect call to multi-value type %d", imm.TypeIdx)
	}
	target, err := l.pop(wasm.OpCallIndirect)
	if err != nil {
		return err
	}
	operands, err := l.popN(wasm.OpCallIndirect, len(ft.Params))
	if err != nil {
		return err
	}
	l.add(&CallIndirect{
		Type:     imm.TypeIdx,
		Table:    imm.TableIdx,
		Operands: operands,
		Target:   target,
		Arity:    len(ft.Results),
	})
	return nil
}

// end closes the innermost frame and hands the finished construct to its
// parent.
func (l *lifter) end() error {
	f := l.top()
	if err := l.closeArm(f); err != nil {
		return err
	}
	l.frames = l.frames[:len(l.frames)-1]

	var node Expr
	switch f.kind {
	case frameFunc:
		l.fn.Body = &Block{Label: f.label, List: f.list, Arity: f.arity}
		return nil
	case frameBlock:
		node = &Block{Label: f.label, List: f.list, Arity: f.arity}
	case frameLoop:
		node = &Loop{Label: f.label, Body: &Block{List: f.list, Arity: f.arity}, Arity: f.arity}
	case frameIf:
		n := &If{Cond: f.cond, Arity: f.arity}
		if f.hasElse {
			n.Then = &Block{List: f.then, Arity: f.arity}
			n.Else = &Block{List: f.list, Arity: f.arity}
		} else {
			if f.arity > 0 {
				return l.fail(errors.KindInvalidData, "if with result requires else")
			}
			n.Then = &Block{List: f.list}
		}
		node = n
		if f.label != "" {
			node = &Block{Label: f.label, List: []Expr{n}, Arity: f.arity}
		}
	}
	l.add(node)
	return nil
}

// closeArm moves the arm's result value, if any, into its statement list.
func (l *lifter) closeArm(f *frame) error {
	if f.dead {
		return nil
	}
	if f.arity > 0 {
		v, err := l.pop(wasm.OpEnd)
		if err != nil {
			return err
		}
		f.list = append(f.list, v)
	}
	if len(f.stack) > 0 {
		return l.fail(errors.KindInvalidData, "%d value(s) left on the stack at end of block", len(f.stack))
	}
	return nil
}

func (l *lifter) blockArity(bt int32) (int, error) {
	switch bt {
	case wasm.BlockTypeVoid:
		return 0, nil
	case wasm.BlockTypeI32, wasm.BlockTypeI64, wasm.BlockTypeF32, wasm.BlockTypeF64, wasm.BlockTypeV128,
		blockTypeFuncRef, blockTypeExternRef:
		return 1, nil
	}
	if bt < 0 {
		return 0, l.fail(errors.KindInvalidData, "invalid block type %d", bt)
	}
	ft := l.m.TypeAt(uint32(bt))
	if ft == nil {
		return 0, errors.OutOfBounds(errors.PhaseLift, l.where(), int(bt), len(l.m.Types))
	}
	if len(ft.Params) > 0 || len(ft.Results) > 1 {
		return 0, l.fail(errors.KindUnsupported, "multi-value block type %d", bt)
	}
	return len(ft.Results), nil
}

func (l *lifter) target(depth uint32) (*frame, error) {
	idx := len(l.frames) - 1 - int(depth)
	if idx < 0 {
		return nil, l.fail(errors.KindOutOfBounds, "branch depth %d exceeds nesting %d", depth, len(l.frames))
	}
	return l.frames[idx], nil
}

// label returns the target's label, naming it on first use.
func (l *lifter) label(f *frame) string {
	if f.label == "" {
		if f.kind == frameFunc {
			f.label = framePrefixes[frameFunc]
		} else {
			l.labels++
			f.label = framePrefixes[f.kind] + strconv.Itoa(l.labels)
		}
	}
	return f.label
}

// branchValue pops the value carried by a branch to target, if any.
// Branches to a loop carry its parameters, of which MVP loops have none.
func (l *lifter) branchValue(op byte, target *frame) (Expr, error) {
	if target.kind == frameLoop || target.arity == 0 {
		return nil, nil
	}
	return l.pop(op)
}

func (l *lifter) top() *frame {
	return l.frames[len(l.frames)-1]
}

func (l *lifter) push(e Expr) {
	f := l.top()
	f.stack = append(f.stack, e)
}

// emit appends a statement, spilling pending values first so they are
// still evaluated before it.
func (l *lifter) emit(e Expr) {
	f := l.top()
	for i, v := range f.stack {
		if _, ok := v.(*Const); ok {
			continue
		}
		idx := Index(l.fn.NumLocals())
		l.fn.Scratch++
		f.list = append(f.list, &SetLocal{Index: idx, Value: v})
		f.stack[i] = &GetLocal{Index: idx}
	}
	f.list = append(f.list, e)
}

func (l *lifter) add(e Expr) {
	if producesValue(e) {
		l.push(e)
	} else {
		l.emit(e)
	}
}

func (l *lifter) pop(op byte) (Expr, error) {
	f := l.top()
	if len(f.stack) == 0 {
		return nil, errors.StackUnderflow(l.where(), op, 1, 0)
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// popN pops n values and returns them in push order.
func (l *lifter) popN(op byte, n int) ([]Expr, error) {
	if n == 0 {
		return nil, nil
	}
	f := l.top()
	if len(f.stack) < n {
		return nil, errors.StackUnderflow(l.where(), op, n, len(f.stack))
	}
	out := make([]Expr, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

// markDead skips the unreachable remainder of the current arm, stopping
// at its closing else or end.
func (l *lifter) markDead() {
	l.top().dead = true
	depth := 0
	for l.pos < len(l.instrs) {
		switch l.instrs[l.pos].Opcode {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			depth++
		case wasm.OpElse:
			if depth == 0 {
				return
			}
		case wasm.OpEnd:
			if depth == 0 {
				return
			}
			depth--
		}
		l.pos++
	}
}

func (l *lifter) where() []string {
	return append(append([]string(nil), l.path...), "instr["+strconv.Itoa(l.pos-1)+"]")
}

func (l *lifter) fail(kind errors.Kind, format string, args ...any) error {
	return errors.New(errors.PhaseLift, kind).
		Path(l.where()...).
		Detail(format, args...).
		Build()
}
