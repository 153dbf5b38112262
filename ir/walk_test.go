package ir

import (
	"strings"
	"testing"

	"github.com/wippyai/wasm-effects/wasm"
)

func sampleTree() Expr {
	return &Block{Label: "$outer", List: []Expr{
		&SetLocal{Index: 0, Value: &Binary{
			Op:    I32Add,
			Left:  &GetLocal{Index: 1},
			Right: &Const{Op: wasm.OpI32Const, Bits: 1},
		}},
		&If{
			Cond: &GetGlobal{Name: "g"},
			Then: &Break{Label: "$outer"},
		},
		&Store{
			Op:    wasm.OpI32Store,
			Ptr:   &Const{Op: wasm.OpI32Const},
			Value: &Load{Op: wasm.OpI32Load, Ptr: &Const{Op: wasm.OpI32Const, Bits: 8}},
		},
	}}
}

func TestWalkOrder(t *testing.T) {
	var pre, post []string
	WalkFunc(sampleTree(),
		func(e Expr) bool { pre = append(pre, e.Kind().String()); return true },
		func(e Expr) { post = append(post, e.Kind().String()) },
	)

	wantPre := "block set_local binary get_local const if get_global break store const load const"
	wantPost := "get_local const binary set_local get_global break if const const load store block"
	if got := strings.Join(pre, " "); got != wantPre {
		t.Errorf("pre order:\n got  %s\n want %s", got, wantPre)
	}
	if got := strings.Join(post, " "); got != wantPost {
		t.Errorf("post order:\n got  %s\n want %s", got, wantPost)
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	var post []Kind
	WalkFunc(sampleTree(),
		func(e Expr) bool { return e.Kind() != KindIf },
		func(e Expr) { post = append(post, e.Kind()) },
	)
	for _, k := range post {
		if k == KindGetGlobal || k == KindBreak {
			t.Fatalf("children of if were visited: %v", post)
		}
	}
	found := false
	for _, k := range post {
		if k == KindIf {
			found = true
		}
	}
	if !found {
		t.Error("post not called for skipped node")
	}
}

func TestWalkNil(t *testing.T) {
	called := false
	WalkFunc(nil, func(Expr) bool { called = true; return true }, nil)
	if called {
		t.Error("walk of nil root called visitor")
	}
}

func TestChildren(t *testing.T) {
	tests := []struct {
		e    Expr
		want int
	}{
		{&Nop{}, 0},
		{&If{Cond: &Const{}, Then: &Nop{}}, 2},
		{&If{Cond: &Const{}, Then: &Nop{}, Else: &Nop{}}, 3},
		{&Break{Label: "$l"}, 0},
		{&Switch{Cond: &Const{}, Value: &Const{}}, 2},
		{&CallIndirect{Target: &Const{}, Operands: []Expr{&Const{}, &Const{}}}, 3},
		{&Select{IfTrue: &Const{}, IfFalse: &Const{}, Cond: &Const{}}, 3},
		{&Return{}, 0},
		{&Host{Op: MemoryFill, Operands: []Expr{&Const{}, &Const{}, &Const{}}}, 3},
	}
	for _, tt := range tests {
		if got := len(Children(tt.e)); got != tt.want {
			t.Errorf("%s: %d children, want %d", Format(tt.e), got, tt.want)
		}
	}
}

func TestCallIndirectTargetIsLast(t *testing.T) {
	target := &GetLocal{Index: 9}
	ci := &CallIndirect{Target: target, Operands: []Expr{&Const{}}}
	children := Children(ci)
	if children[len(children)-1] != Expr(target) {
		t.Errorf("target should be evaluated after operands: %s", Format(ci))
	}
}

func TestCount(t *testing.T) {
	if got := Count(sampleTree()); got != 12 {
		t.Errorf("Count = %d, want 12", got)
	}
	if got := Count(nil); got != 0 {
		t.Errorf("Count(nil) = %d", got)
	}
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != int(numKinds) {
		t.Fatalf("Kinds returned %d, want %d", len(kinds), numKinds)
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		name := k.String()
		if name == "unknown" || seen[name] {
			t.Errorf("kind %d has bad name %q", k, name)
		}
		seen[name] = true
	}
	if Kind(200).String() != "unknown" {
		t.Error("out of range kind should be unknown")
	}
}

func TestOpNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{I32TruncF64U.String(), "i32.trunc_f64_u"},
		{I32TruncSatF32S.String(), "i32.trunc_sat_f32_s"},
		{I64RemU.String(), "i64.rem_u"},
		{MemoryGrow.String(), "memory.grow"},
		{HostOp(99).String(), "host"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		e    Expr
		want string
	}{
		{nil, "<nil>"},
		{&Nop{}, "(nop)"},
		{&Unreachable{}, "(unreachable)"},
		{&CallImport{Module: "env", Name: "log"}, "(call_import env.log)"},
		{&SetLocal{Index: 2, Tee: true, Value: &GetLocal{Index: 1}}, "(local.tee 2 (local.get 1))"},
		{&Host{Op: MemorySize}, "(memory.size)"},
		{&Unary{Op: I32Eqz, Value: &Const{Op: wasm.OpI32Const, Bits: 0}}, "(i32.eqz (i32.const 0))"},
	}
	for _, tt := range tests {
		if got := Format(tt.e); got != tt.want {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}

func TestProducesValue(t *testing.T) {
	tests := []struct {
		e    Expr
		want bool
	}{
		{&Break{Label: "$l"}, false},
		{&Break{Label: "$l", Cond: &Const{}}, false},
		{&Break{Label: "$l", Cond: &Const{}, Value: &Const{}}, true},
		{&SetLocal{Value: &Const{}}, false},
		{&SetLocal{Value: &Const{}, Tee: true}, true},
		{&Host{Op: MemoryGrow}, true},
		{&Host{Op: MemoryFill}, false},
		{&Call{Arity: 1}, true},
		{&Store{}, false},
	}
	for _, tt := range tests {
		if got := producesValue(tt.e); got != tt.want {
			t.Errorf("producesValue(%s) = %v, want %v", Format(tt.e), got, tt.want)
		}
	}
}
