package ir

import (
	"strconv"
	"strings"

	"github.com/wippyai/wasm-effects/wasm"
)

// Format renders e as a single-line s-expression, for logs and tests.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	if e == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteByte('(')
	b.WriteString(head(e))
	forEachChild(e, func(c Expr) {
		b.WriteByte(' ')
		format(b, c)
	})
	b.WriteByte(')')
}

func head(e Expr) string {
	switch n := e.(type) {
	case *Block:
		return withLabel("block", n.Label)
	case *Loop:
		return withLabel("loop", n.Label)
	case *Break:
		if n.Cond != nil {
			return "br_if " + n.Label
		}
		return "br " + n.Label
	case *Switch:
		return "br_table " + strings.Join(n.Targets, " ") + " default=" + n.Default
	case *Call:
		return "call " + strconv.FormatUint(uint64(n.Target), 10)
	case *CallImport:
		return "call_import " + n.Module + "." + n.Name
	case *CallIndirect:
		return "call_indirect type=" + strconv.FormatUint(uint64(n.Type), 10)
	case *GetLocal:
		return "local.get " + strconv.FormatUint(uint64(n.Index), 10)
	case *SetLocal:
		if n.Tee {
			return "local.tee " + strconv.FormatUint(uint64(n.Index), 10)
		}
		return "local.set " + strconv.FormatUint(uint64(n.Index), 10)
	case *GetGlobal:
		return "global.get " + n.Name
	case *SetGlobal:
		return "global.set " + n.Name
	case *Load:
		return wasm.OpcodeName(n.Op)
	case *Store:
		return wasm.OpcodeName(n.Op)
	case *Const:
		return wasm.OpcodeName(n.Op) + " " + strconv.FormatUint(n.Bits, 10)
	case *Unary:
		return n.Op.String()
	case *Binary:
		return n.Op.String()
	case *Host:
		return n.Op.String()
	}
	return e.Kind().String()
}

func withLabel(name, label string) string {
	if label == "" {
		return name
	}
	return name + " " + label
}
