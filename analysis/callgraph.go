package analysis

import (
	"github.com/yourbasic/graph"

	"github.com/wippyai/wasm-effects/ir"
)

// CallGraph maps each function index to the functions it calls directly.
type CallGraph map[uint32][]uint32

// BuildCallGraph collects direct calls from lifted function bodies. Nil
// entries, for imports and functions that failed to lift, have no edges.
func BuildCallGraph(fns []*ir.Function) CallGraph {
	cg := make(CallGraph)
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		caller := fn.Index
		ir.WalkFunc(fn.Body, nil, func(e ir.Expr) {
			switch n := e.(type) {
			case *ir.Call:
				cg[caller] = appendUnique(cg[caller], n.Target)
			case *ir.CallImport:
				cg[caller] = appendUnique(cg[caller], n.Target)
			}
		})
	}
	return cg
}

// Recursive returns the functions that can reach themselves through
// direct calls: members of a strongly connected component with more than
// one function, or functions calling themselves.
func (cg CallGraph) Recursive(numFuncs int) map[uint32]bool {
	g := graph.New(numFuncs)
	for caller, callees := range cg {
		for _, callee := range callees {
			if int(caller) < numFuncs && int(callee) < numFuncs {
				g.Add(int(caller), int(callee))
			}
		}
	}

	result := make(map[uint32]bool)
	for _, component := range graph.StrongComponents(g) {
		if len(component) == 1 && !g.Edge(component[0], component[0]) {
			continue
		}
		for _, v := range component {
			result[uint32(v)] = true
		}
	}
	return result
}

// TransitiveCallees finds all functions reachable from sources, sources
// included.
func (cg CallGraph) TransitiveCallees(sources ...uint32) map[uint32]bool {
	result := make(map[uint32]bool)
	work := append([]uint32(nil), sources...)
	for len(work) > 0 {
		f := work[len(work)-1]
		work = work[:len(work)-1]
		if result[f] {
			continue
		}
		result[f] = true
		work = append(work, cg[f]...)
	}
	return result
}

func appendUnique(slice []uint32, val uint32) []uint32 {
	for _, v := range slice {
		if v == val {
			return slice
		}
	}
	return append(slice, val)
}
