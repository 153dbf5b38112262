// Package effects computes side-effect summaries of expression trees.
//
// An Analyzer walks an ir.Expr once and records what the subtree may do:
// branch out of its normal fall-through exit, call a function, read or
// write locals, globals and linear memory, or trap. The resulting Effects
// value is then queried directly or compared with another one:
//
//	a := effects.New(opts, first)
//	b := effects.New(opts, second)
//	if !a.Invalidates(&b.Effects) && !b.Invalidates(&a.Effects) {
//		// first and second may be swapped
//	}
//
// Invalidates is directional in its read/write rules: a local read by the
// receiver and written by other invalidates, the reverse case is checked by
// the rule for the receiver's writes. Callers needing full symmetry call it
// both ways.
//
// Calls are opaque: a call may touch any global and all of memory, and
// memory is one location, so any two accesses may alias.
package effects
