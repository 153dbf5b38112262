package effects

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-effects/ir"
)

// Analyzer accumulates the Effects of the expressions it analyzes.
// It is not safe for concurrent use.
type Analyzer struct {
	Effects
	Options
}

// New creates an Analyzer and, when root is non-nil, analyzes it.
func New(opts Options, root ir.Expr) *Analyzer {
	a := &Analyzer{Options: opts}
	if root != nil {
		a.Analyze(root)
	}
	return a
}

// Analyze walks root and adds its effects to a. Labels of breaks that
// are not resolved by a block or loop inside root mark it as branching.
func (a *Analyzer) Analyze(root ir.Expr) {
	w := walker{a: a}
	ir.Walk(root, &w)
	if w.breaks.Len() > 0 {
		a.Branches = true
		Logger().Debug("unresolved break targets",
			zap.Strings("labels", w.breaks.Sorted()),
			zap.Stringer("root", root.Kind()))
	}
}

// CheckPre records control flow that happens before e's children run and
// reports whether there was any. Only loops have such flow.
func (a *Analyzer) CheckPre(e ir.Expr) bool {
	if e.Kind() == ir.KindLoop {
		a.Branches = true
		return true
	}
	return false
}

// CheckPost classifies e alone, assuming its children were already seen,
// and reports whether a has any effect. Loops branch, and so do breaks
// since their targets lie outside e. Unlike Analyze, a break here sets
// Branches immediately instead of waiting for its target to be closed.
func (a *Analyzer) CheckPost(e ir.Expr) bool {
	var breaks Set[string]
	a.visit(e, &breaks)
	if breaks.Len() > 0 {
		a.Branches = true
	}
	return a.HasAnything()
}

// walker drives the classifier and owns the labels of pending breaks for
// one traversal.
type walker struct {
	a      *Analyzer
	breaks Set[string]
}

func (w *walker) Pre(e ir.Expr) bool {
	if e.Kind() == ir.KindLoop {
		w.a.Branches = true
	}
	return true
}

func (w *walker) Post(e ir.Expr) {
	w.a.visit(e, &w.breaks)
}

// visit adds the effects of the node e itself, not of its children.
func (a *Analyzer) visit(e ir.Expr, breaks *Set[string]) {
	switch n := e.(type) {
	case *ir.Break:
		breaks.Add(n.Label)
	case *ir.Switch:
		for _, label := range n.Targets {
			breaks.Add(label)
		}
		breaks.Add(n.Default)
	case *ir.Block:
		if n.Label != "" {
			breaks.Remove(n.Label)
		}
	case *ir.Loop:
		if n.Label != "" {
			breaks.Remove(n.Label)
		}
		a.Branches = true
	case *ir.Return, *ir.Unreachable:
		a.Branches = true
	case *ir.Call, *ir.CallIndirect, *ir.Host:
		a.Calls = true
	case *ir.CallImport:
		a.Calls = true
		if a.DebugInfo {
			a.Branches = true
		}
	case *ir.GetLocal:
		a.LocalsRead.Add(n.Index)
	case *ir.SetLocal:
		a.LocalsWritten.Add(n.Index)
	case *ir.GetGlobal:
		a.GlobalsRead.Add(n.Name)
	case *ir.SetGlobal:
		a.GlobalsWritten.Add(n.Name)
	case *ir.Load:
		a.ReadsMemory = true
		a.trap()
	case *ir.Store:
		a.WritesMemory = true
		a.trap()
	case *ir.Unary:
		if TrapsUnary(n.Op) {
			a.trap()
		}
	case *ir.Binary:
		if TrapsBinary(n.Op) {
			a.trap()
		}
	case *ir.Nop, *ir.If, *ir.Const, *ir.Select, *ir.Drop:
		// no effect of their own
	default:
		Logger().Warn("unclassified expression kind", zap.Stringer("kind", e.Kind()))
	}
}

func (a *Analyzer) trap() {
	if !a.IgnoreImplicitTraps {
		a.ImplicitTrap = true
	}
}

// TrapsUnary reports whether op is a float-to-integer truncation that
// traps on NaN or overflow.
func TrapsUnary(op ir.UnaryOp) bool {
	switch op {
	case ir.I32TruncF32S, ir.I32TruncF32U, ir.I32TruncF64S, ir.I32TruncF64U,
		ir.I64TruncF32S, ir.I64TruncF32U, ir.I64TruncF64S, ir.I64TruncF64U:
		return true
	}
	return false
}

// TrapsBinary reports whether op is an integer division or remainder.
func TrapsBinary(op ir.BinaryOp) bool {
	switch op {
	case ir.I32DivS, ir.I32DivU, ir.I32RemS, ir.I32RemU,
		ir.I64DivS, ir.I64DivU, ir.I64RemS, ir.I64RemU:
		return true
	}
	return false
}
