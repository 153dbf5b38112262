package ir

// Index identifies a local variable slot.
type Index = uint32

// Kind enumerates the expression node types.
type Kind uint8

const (
	KindNop Kind = iota
	KindBlock
	KindLoop
	KindIf
	KindBreak
	KindSwitch
	KindCall
	KindCallImport
	KindCallIndirect
	KindGetLocal
	KindSetLocal
	KindGetGlobal
	KindSetGlobal
	KindLoad
	KindStore
	KindConst
	KindUnary
	KindBinary
	KindSelect
	KindDrop
	KindReturn
	KindHost
	KindUnreachable

	numKinds
)

var kindNames = [numKinds]string{
	"nop", "block", "loop", "if", "break", "switch", "call", "call_import",
	"call_indirect", "get_local", "set_local", "get_global", "set_global",
	"load", "store", "const", "unary", "binary", "select", "drop", "return",
	"host", "unreachable",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Kinds returns every node kind, in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Expr is an expression tree node. The set of implementations is closed:
// every node type is declared in this package.
type Expr interface {
	Kind() Kind
	expr()
}

// Nop does nothing.
type Nop struct{}

// Block is a sequence of expressions. When Label is non-empty, branches to
// it exit the block.
type Block struct {
	Label string
	List  []Expr
	Arity int // number of result values, 0 or 1
}

// Loop executes Body; branches to Label re-enter the loop.
type Loop struct {
	Body  Expr
	Label string
	Arity int
}

// If evaluates Cond and runs Then or Else. Else may be nil.
type If struct {
	Cond  Expr
	Then  Expr
	Else  Expr
	Arity int
}

// Break transfers control to Label, carrying Value if present. With a
// non-nil Cond the transfer only happens when Cond is non-zero.
type Break struct {
	Value Expr
	Cond  Expr
	Label string
}

// Switch transfers control to Targets[Cond], or to Default when Cond is
// out of range.
type Switch struct {
	Value   Expr
	Cond    Expr
	Default string
	Targets []string
}

// Call invokes a function defined in the module.
type Call struct {
	Operands []Expr
	Target   uint32
	Arity    int
}

// CallImport invokes an imported (host) function.
type CallImport struct {
	Module   string
	Name     string
	Operands []Expr
	Target   uint32
	Arity    int
}

// CallIndirect invokes the table entry selected by Target.
type CallIndirect struct {
	Target   Expr
	Operands []Expr
	Type     uint32
	Table    uint32
	Arity    int
}

// GetLocal reads a local.
type GetLocal struct {
	Index Index
}

// SetLocal writes a local. A tee also yields the written value.
type SetLocal struct {
	Value Expr
	Index Index
	Tee   bool
}

// GetGlobal reads a global by name.
type GetGlobal struct {
	Name string
}

// SetGlobal writes a global by name.
type SetGlobal struct {
	Value Expr
	Name  string
}

// Load reads linear memory at Ptr+Offset.
type Load struct {
	Ptr    Expr
	Offset uint64
	Align  uint32
	Op     byte // load opcode
}

// Store writes Value to linear memory at Ptr+Offset.
type Store struct {
	Ptr    Expr
	Value  Expr
	Offset uint64
	Align  uint32
	Op     byte // store opcode
}

// Const is a constant. Bits holds the value's bit pattern; for ref.func it
// is the function index and for ref.null the heap type.
type Const struct {
	Bits uint64
	Op   byte
}

// Unary applies a one-operand numeric or reference operator.
type Unary struct {
	Value Expr
	Op    UnaryOp
}

// Binary applies a two-operand numeric operator.
type Binary struct {
	Left  Expr
	Right Expr
	Op    BinaryOp
}

// Select yields IfTrue when Cond is non-zero, else IfFalse. All three
// operands are evaluated.
type Select struct {
	IfTrue  Expr
	IfFalse Expr
	Cond    Expr
}

// Drop evaluates Value and discards it.
type Drop struct {
	Value Expr
}

// Return leaves the function, yielding Value if present.
type Return struct {
	Value Expr
}

// Host is an intrinsic operating on memory or tables.
type Host struct {
	Operands []Expr
	Op       HostOp
}

// Unreachable traps unconditionally.
type Unreachable struct{}

func (*Nop) Kind() Kind          { return KindNop }
func (*Block) Kind() Kind        { return KindBlock }
func (*Loop) Kind() Kind         { return KindLoop }
func (*If) Kind() Kind           { return KindIf }
func (*Break) Kind() Kind        { return KindBreak }
func (*Switch) Kind() Kind       { return KindSwitch }
func (*Call) Kind() Kind         { return KindCall }
func (*CallImport) Kind() Kind   { return KindCallImport }
func (*CallIndirect) Kind() Kind { return KindCallIndirect }
func (*GetLocal) Kind() Kind     { return KindGetLocal }
func (*SetLocal) Kind() Kind     { return KindSetLocal }
func (*GetGlobal) Kind() Kind    { return KindGetGlobal }
func (*SetGlobal) Kind() Kind    { return KindSetGlobal }
func (*Load) Kind() Kind         { return KindLoad }
func (*Store) Kind() Kind        { return KindStore }
func (*Const) Kind() Kind        { return KindConst }
func (*Unary) Kind() Kind        { return KindUnary }
func (*Binary) Kind() Kind       { return KindBinary }
func (*Select) Kind() Kind       { return KindSelect }
func (*Drop) Kind() Kind         { return KindDrop }
func (*Return) Kind() Kind       { return KindReturn }
func (*Host) Kind() Kind         { return KindHost }
func (*Unreachable) Kind() Kind  { return KindUnreachable }

func (*Nop) expr()          {}
func (*Block) expr()        {}
func (*Loop) expr()         {}
func (*If) expr()           {}
func (*Break) expr()        {}
func (*Switch) expr()       {}
func (*Call) expr()         {}
func (*CallImport) expr()   {}
func (*CallIndirect) expr() {}
func (*GetLocal) expr()     {}
func (*SetLocal) expr()     {}
func (*GetGlobal) expr()    {}
func (*SetGlobal) expr()    {}
func (*Load) expr()         {}
func (*Store) expr()        {}
func (*Const) expr()        {}
func (*Unary) expr()        {}
func (*Binary) expr()       {}
func (*Select) expr()       {}
func (*Drop) expr()         {}
func (*Return) expr()       {}
func (*Host) expr()         {}
func (*Unreachable) expr()  {}

// producesValue reports whether e leaves a value on the operand stack.
func producesValue(e Expr) bool {
	switch n := e.(type) {
	case *Block:
		return n.Arity > 0
	case *Loop:
		return n.Arity > 0
	case *If:
		return n.Arity > 0
	case *Break:
		return n.Cond != nil && n.Value != nil
	case *Call:
		return n.Arity > 0
	case *CallImport:
		return n.Arity > 0
	case *CallIndirect:
		return n.Arity > 0
	case *SetLocal:
		return n.Tee
	case *GetLocal, *GetGlobal, *Load, *Const, *Unary, *Binary, *Select:
		return true
	case *Host:
		return n.Op.producesValue()
	}
	return false
}
