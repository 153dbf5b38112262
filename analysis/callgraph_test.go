package analysis

import (
	"testing"

	"github.com/wippyai/wasm-effects/ir"
)

func TestBuildCallGraph(t *testing.T) {
	fns := []*ir.Function{
		nil,
		{Index: 1, Body: &ir.Block{List: []ir.Expr{
			&ir.Call{Target: 2},
			&ir.Drop{Value: &ir.Call{Target: 2, Arity: 1}},
			&ir.CallImport{Target: 0},
		}}},
		{Index: 2, Body: &ir.Block{}},
	}
	cg := BuildCallGraph(fns)
	if got := cg[1]; len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Errorf("callees of 1 = %v, want [2 0]", got)
	}
	if len(cg[2]) != 0 {
		t.Errorf("callees of 2 = %v", cg[2])
	}
}

func TestRecursive(t *testing.T) {
	cg := CallGraph{
		0: {1},
		1: {2},
		2: {1},    // 1 and 2 are mutually recursive
		3: {3},    // self call
		4: {0, 9}, // out of range callee is ignored
	}
	got := cg.Recursive(5)
	want := map[uint32]bool{1: true, 2: true, 3: true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for f := range want {
		if !got[f] {
			t.Errorf("function %d not marked recursive", f)
		}
	}
}

func TestTransitiveCallees(t *testing.T) {
	cg := CallGraph{0: {1}, 1: {2}, 2: {1}, 3: {4}}
	got := cg.TransitiveCallees(0)
	for _, f := range []uint32{0, 1, 2} {
		if !got[f] {
			t.Errorf("%d not reachable from 0", f)
		}
	}
	if got[3] || got[4] {
		t.Errorf("unexpected reach: %v", got)
	}
}
