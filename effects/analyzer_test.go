package effects

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-effects/ir"
	"github.com/wippyai/wasm-effects/wasm"
)

func i32(v uint64) ir.Expr { return &ir.Const{Op: wasm.OpI32Const, Bits: v} }

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })
	return logs
}

func TestAnalyzePure(t *testing.T) {
	pure := []ir.Expr{
		&ir.Nop{},
		i32(1),
		&ir.Binary{Op: ir.I32Add, Left: i32(1), Right: i32(2)},
		&ir.Unary{Op: ir.I32Eqz, Value: i32(0)},
		&ir.Unary{Op: ir.I32TruncSatF32S, Value: &ir.Const{Op: wasm.OpF32Const}},
		&ir.Select{IfTrue: i32(1), IfFalse: i32(2), Cond: i32(0)},
		&ir.Drop{Value: i32(3)},
		&ir.If{Cond: i32(1), Then: &ir.Nop{}, Else: &ir.Nop{}},
		&ir.Block{Label: "$b", List: []ir.Expr{&ir.Nop{}}},
	}
	for _, e := range pure {
		a := New(Options{}, e)
		if a.HasAnything() {
			t.Errorf("%s: unexpected effects %s", ir.Format(e), a.String())
		}
	}
}

func TestAnalyzeClassifier(t *testing.T) {
	load := &ir.Load{Op: wasm.OpI32Load, Ptr: i32(0)}
	tests := []struct {
		name string
		opts Options
		e    ir.Expr
		want string
	}{
		{"return", Options{}, &ir.Return{}, "branches"},
		{"unreachable", Options{}, &ir.Unreachable{}, "branches"},
		{"escaping break", Options{}, &ir.Break{Label: "$out"}, "branches"},
		{"escaping conditional break", Options{}, &ir.Break{Label: "$out", Cond: &ir.GetLocal{Index: 0}}, "branches reads:[0] writes:[]"},
		{"switch", Options{}, &ir.Switch{Targets: []string{"$a"}, Default: "$b", Cond: i32(0)}, "branches"},
		{"call", Options{}, &ir.Call{Target: 1}, "calls"},
		{"indirect call", Options{}, &ir.CallIndirect{Target: i32(0)}, "calls"},
		{"host", Options{}, &ir.Host{Op: ir.MemorySize}, "calls"},
		{"import", Options{}, &ir.CallImport{Module: "env", Name: "f"}, "calls"},
		{"import with debug info", Options{DebugInfo: true}, &ir.CallImport{Module: "env", Name: "f"}, "branches calls"},
		{"get local", Options{}, &ir.GetLocal{Index: 4}, "reads:[4] writes:[]"},
		{"set local", Options{}, &ir.SetLocal{Index: 4, Value: i32(1)}, "reads:[] writes:[4]"},
		{"tee local", Options{}, &ir.SetLocal{Index: 2, Tee: true, Value: &ir.GetLocal{Index: 2}}, "reads:[2] writes:[2]"},
		{"get global", Options{}, &ir.GetGlobal{Name: "g"}, "gets:[g] sets:[]"},
		{"set global", Options{}, &ir.SetGlobal{Name: "g", Value: i32(1)}, "gets:[] sets:[g]"},
		{"load", Options{}, load, "mem:r- trap"},
		{"load ignoring traps", Options{IgnoreImplicitTraps: true}, load, "mem:r-"},
		{"store", Options{}, &ir.Store{Op: wasm.OpI32Store, Ptr: i32(0), Value: i32(1)}, "mem:-w trap"},
		{"store ignoring traps", Options{IgnoreImplicitTraps: true}, &ir.Store{Op: wasm.OpI32Store, Ptr: i32(0), Value: i32(1)}, "mem:-w"},
		{"division", Options{}, &ir.Binary{Op: ir.I32DivS, Left: i32(1), Right: i32(0)}, "trap"},
		{"division ignoring traps", Options{IgnoreImplicitTraps: true}, &ir.Binary{Op: ir.I32DivS, Left: i32(1), Right: i32(0)}, "none"},
		{"truncation", Options{}, &ir.Unary{Op: ir.I64TruncF64U, Value: &ir.Const{Op: wasm.OpF64Const}}, "trap"},
		{"loop", Options{}, &ir.Loop{Body: &ir.Block{}}, "branches"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.opts, tt.e)
			if got := a.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrappingOperators(t *testing.T) {
	trapping := 0
	for op := ir.UnaryOp(0); op < 0x100; op++ {
		if TrapsUnary(op) {
			trapping++
		}
	}
	for sub := uint32(0); sub <= wasm.MiscI64TruncSatF64U; sub++ {
		if TrapsUnary(ir.MiscUnary(sub)) {
			t.Errorf("%s should not trap", ir.MiscUnary(sub))
		}
	}
	for op := ir.BinaryOp(0); op < 0x100; op++ {
		if TrapsBinary(op) {
			trapping++
		}
	}
	if trapping != 16 {
		t.Errorf("got %d trapping operators, want 16", trapping)
	}
}

func TestAnalyzeScenarios(t *testing.T) {
	t.Run("set local from load", func(t *testing.T) {
		a := New(Options{}, &ir.SetLocal{Index: 0, Value: &ir.Load{Op: wasm.OpI32Load, Ptr: &ir.GetLocal{Index: 1}}})
		if !a.LocalsWritten.Has(0) || a.LocalsWritten.Len() != 1 {
			t.Errorf("LocalsWritten = %v", a.LocalsWritten.Sorted())
		}
		if !a.ReadsMemory || !a.ImplicitTrap || a.Branches || a.WritesMemory {
			t.Errorf("got %s", a.String())
		}
		if !a.HasSideEffects() {
			t.Error("HasSideEffects = false")
		}
	})

	t.Run("loop resolves its own break", func(t *testing.T) {
		logs := observe(t)
		a := New(Options{}, &ir.Loop{Label: "L", Body: &ir.Break{Label: "L"}})
		if !a.Branches {
			t.Error("loop should branch")
		}
		if n := logs.FilterMessage("unresolved break targets").Len(); n != 0 {
			t.Errorf("break to the loop reported unresolved %d times", n)
		}
	})

	t.Run("block resolves its own break", func(t *testing.T) {
		a := New(Options{}, &ir.Block{Label: "B", List: []ir.Expr{
			&ir.Break{Label: "B", Cond: &ir.GetLocal{Index: 0}},
			&ir.SetLocal{Index: 1, Value: i32(0)},
		}})
		if a.Branches {
			t.Error("break to the enclosing block should not branch")
		}
	})

	t.Run("unlabelled block does not resolve", func(t *testing.T) {
		logs := observe(t)
		a := New(Options{}, &ir.Block{List: []ir.Expr{&ir.Break{Label: "B"}}})
		if !a.Branches {
			t.Error("break should escape")
		}
		entries := logs.FilterMessage("unresolved break targets").All()
		if len(entries) != 1 {
			t.Fatalf("got %d log entries, want 1", len(entries))
		}
	})

	t.Run("switch escapes through one target", func(t *testing.T) {
		a := New(Options{}, &ir.Block{Label: "$a", List: []ir.Expr{
			&ir.Switch{Targets: []string{"$a"}, Default: "$z", Cond: i32(0)},
		}})
		if !a.Branches {
			t.Error("default target escapes")
		}
	})

	t.Run("global read versus call", func(t *testing.T) {
		g := New(Options{}, &ir.GetGlobal{Name: "g"})
		c := New(Options{}, &ir.Call{Target: 0})
		if !g.Invalidates(&c.Effects) || !c.Invalidates(&g.Effects) {
			t.Error("global access and call must invalidate both ways")
		}
	})
}

func TestAnalyzeAccumulates(t *testing.T) {
	a := New(Options{}, &ir.GetLocal{Index: 0})
	a.Analyze(&ir.Block{Label: "$x", List: []ir.Expr{&ir.Break{Label: "$y"}}})
	if !a.LocalsRead.Has(0) || !a.Branches {
		t.Errorf("got %s", a.String())
	}

	// break tracking restarts with every Analyze call
	b := New(Options{}, &ir.Break{Label: "$x"})
	b.Branches = false
	b.Analyze(&ir.Block{Label: "$x"})
	if b.Branches {
		t.Error("labels from an earlier traversal leaked into this one")
	}
}

func TestNewWithoutRoot(t *testing.T) {
	a := New(Options{IgnoreImplicitTraps: true}, nil)
	if a.HasAnything() || !a.IgnoreImplicitTraps {
		t.Errorf("got %s", a.String())
	}
}

func TestCheckPrePost(t *testing.T) {
	a := New(Options{}, nil)
	if a.CheckPre(&ir.Binary{Op: ir.I32Add, Left: i32(1), Right: i32(2)}) {
		t.Error("CheckPre of binary")
	}
	if a.CheckPost(&ir.Binary{Op: ir.I32Add, Left: i32(1), Right: i32(2)}) {
		t.Error("CheckPost of pure binary")
	}
	if !a.CheckPre(&ir.Loop{Body: &ir.Nop{}}) || !a.Branches {
		t.Error("CheckPre of loop should branch")
	}

	b := New(Options{}, nil)
	if !b.CheckPost(&ir.Loop{Label: "$l", Body: &ir.Nop{}}) || !b.Branches {
		t.Error("CheckPost of loop should branch")
	}

	c := New(Options{}, nil)
	if !c.CheckPost(&ir.Break{Label: "$l"}) || !c.Branches {
		t.Error("CheckPost of break should branch")
	}

	d := New(Options{}, nil)
	if !d.CheckPost(&ir.GetLocal{Index: 1}) || d.Branches || !d.LocalsRead.Has(1) {
		t.Errorf("CheckPost of local.get: %s", d.String())
	}
}

func sampleNode(k ir.Kind) ir.Expr {
	switch k {
	case ir.KindNop:
		return &ir.Nop{}
	case ir.KindBlock:
		return &ir.Block{}
	case ir.KindLoop:
		return &ir.Loop{}
	case ir.KindIf:
		return &ir.If{Cond: i32(0)}
	case ir.KindBreak:
		return &ir.Break{Label: "$l"}
	case ir.KindSwitch:
		return &ir.Switch{Default: "$l"}
	case ir.KindCall:
		return &ir.Call{}
	case ir.KindCallImport:
		return &ir.CallImport{}
	case ir.KindCallIndirect:
		return &ir.CallIndirect{}
	case ir.KindGetLocal:
		return &ir.GetLocal{}
	case ir.KindSetLocal:
		return &ir.SetLocal{}
	case ir.KindGetGlobal:
		return &ir.GetGlobal{Name: "g"}
	case ir.KindSetGlobal:
		return &ir.SetGlobal{Name: "g"}
	case ir.KindLoad:
		return &ir.Load{Op: wasm.OpI32Load}
	case ir.KindStore:
		return &ir.Store{Op: wasm.OpI32Store}
	case ir.KindConst:
		return i32(0)
	case ir.KindUnary:
		return &ir.Unary{Op: ir.I32Eqz}
	case ir.KindBinary:
		return &ir.Binary{Op: ir.I32Add}
	case ir.KindSelect:
		return &ir.Select{}
	case ir.KindDrop:
		return &ir.Drop{}
	case ir.KindReturn:
		return &ir.Return{}
	case ir.KindHost:
		return &ir.Host{Op: ir.MemorySize}
	case ir.KindUnreachable:
		return &ir.Unreachable{}
	}
	return nil
}

func TestEveryKindClassified(t *testing.T) {
	logs := observe(t)
	for _, k := range ir.Kinds() {
		e := sampleNode(k)
		if e == nil {
			t.Fatalf("no sample node for kind %s", k)
		}
		if e.Kind() != k {
			t.Fatalf("sample for %s has kind %s", k, e.Kind())
		}
		New(Options{}, nil).CheckPost(e)
	}
	if n := logs.FilterMessage("unclassified expression kind").Len(); n != 0 {
		t.Errorf("%d kinds fell through the classifier", n)
	}
}

func benchmarkTree() ir.Expr {
	var list []ir.Expr
	for i := 0; i < 64; i++ {
		idx := ir.Index(i % 8)
		list = append(list,
			&ir.SetLocal{Index: idx, Value: &ir.Binary{
				Op:    ir.I32Add,
				Left:  &ir.GetLocal{Index: idx},
				Right: &ir.Load{Op: wasm.OpI32Load, Ptr: &ir.GetGlobal{Name: "sp"}},
			}},
			&ir.Break{Label: "$exit", Cond: &ir.GetLocal{Index: idx}},
		)
	}
	return &ir.Block{Label: "$exit", List: []ir.Expr{&ir.Loop{Label: "$top", Body: &ir.Block{List: list}}}}
}

func BenchmarkAnalyze(b *testing.B) {
	tree := benchmarkTree()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		New(Options{}, tree)
	}
}

func BenchmarkInvalidates(b *testing.B) {
	x := New(Options{}, benchmarkTree())
	y := New(Options{}, &ir.SetLocal{Index: 100, Value: &ir.GetLocal{Index: 101}})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x.Invalidates(&y.Effects)
	}
}
