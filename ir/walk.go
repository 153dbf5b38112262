package ir

// Visitor receives callbacks from Walk.
//
// Pre is called before a node's children are visited; returning false
// skips the children. Post is called after the children (or immediately
// after Pre when they were skipped).
type Visitor interface {
	Pre(e Expr) bool
	Post(e Expr)
}

// Walk traverses the tree rooted at root depth-first, children in
// evaluation order. A nil root is a no-op.
func Walk(root Expr, v Visitor) {
	if root == nil {
		return
	}
	if v.Pre(root) {
		forEachChild(root, func(c Expr) { Walk(c, v) })
	}
	v.Post(root)
}

// WalkFunc walks root with closures. Either may be nil.
func WalkFunc(root Expr, pre func(Expr) bool, post func(Expr)) {
	Walk(root, funcVisitor{pre: pre, post: post})
}

type funcVisitor struct {
	pre  func(Expr) bool
	post func(Expr)
}

func (f funcVisitor) Pre(e Expr) bool {
	if f.pre == nil {
		return true
	}
	return f.pre(e)
}

func (f funcVisitor) Post(e Expr) {
	if f.post != nil {
		f.post(e)
	}
}

// Children returns the direct children of e in evaluation order.
func Children(e Expr) []Expr {
	var out []Expr
	forEachChild(e, func(c Expr) { out = append(out, c) })
	return out
}

func forEachChild(e Expr, fn func(Expr)) {
	visit := func(c Expr) {
		if c != nil {
			fn(c)
		}
	}
	switch n := e.(type) {
	case *Block:
		for _, c := range n.List {
			visit(c)
		}
	case *Loop:
		visit(n.Body)
	case *If:
		visit(n.Cond)
		visit(n.Then)
		visit(n.Else)
	case *Break:
		visit(n.Value)
		visit(n.Cond)
	case *Switch:
		visit(n.Value)
		visit(n.Cond)
	case *Call:
		for _, c := range n.Operands {
			visit(c)
		}
	case *CallImport:
		for _, c := range n.Operands {
			visit(c)
		}
	case *CallIndirect:
		for _, c := range n.Operands {
			visit(c)
		}
		visit(n.Target)
	case *SetLocal:
		visit(n.Value)
	case *SetGlobal:
		visit(n.Value)
	case *Load:
		visit(n.Ptr)
	case *Store:
		visit(n.Ptr)
		visit(n.Value)
	case *Unary:
		visit(n.Value)
	case *Binary:
		visit(n.Left)
		visit(n.Right)
	case *Select:
		visit(n.IfTrue)
		visit(n.IfFalse)
		visit(n.Cond)
	case *Drop:
		visit(n.Value)
	case *Return:
		visit(n.Value)
	case *Host:
		for _, c := range n.Operands {
			visit(c)
		}
	case *Nop, *GetLocal, *GetGlobal, *Const, *Unreachable:
	}
}

// Count returns the number of nodes in the tree rooted at root.
func Count(root Expr) int {
	n := 0
	WalkFunc(root, nil, func(Expr) { n++ })
	return n
}
