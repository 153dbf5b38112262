package effects

import (
	"strconv"
	"strings"

	"github.com/wippyai/wasm-effects/ir"
)

// Options configures the analysis.
type Options struct {
	// IgnoreImplicitTraps assumes loads, stores, division and float
	// truncation never trap.
	IgnoreImplicitTraps bool `yaml:"ignore_implicit_traps"`
	// DebugInfo pins calls to imports in place by treating them as branches.
	DebugInfo bool `yaml:"debug_info"`
}

// Effects summarizes what an expression may do.
type Effects struct {
	LocalsRead     Set[ir.Index]
	LocalsWritten  Set[ir.Index]
	GlobalsRead    Set[string]
	GlobalsWritten Set[string]

	// Branches is set when control may leave the expression other than by
	// falling through: returns, traps, escaping breaks and loops.
	Branches bool
	// Calls is set for any call, including indirect, imported and host calls.
	Calls        bool
	ReadsMemory  bool
	WritesMemory bool
	// ImplicitTrap is set for operations that may fault. Traps may be
	// reordered with each other but not removed or moved across a branch.
	ImplicitTrap bool
}

func (e *Effects) AccessesLocal() bool {
	return e.LocalsRead.Len()+e.LocalsWritten.Len() > 0
}

func (e *Effects) AccessesGlobal() bool {
	return e.GlobalsRead.Len()+e.GlobalsWritten.Len() > 0
}

// AccessesMemory includes calls, which may touch any memory.
func (e *Effects) AccessesMemory() bool {
	return e.Calls || e.ReadsMemory || e.WritesMemory
}

// HasSideEffects reports effects that make the expression unremovable. A
// memory or variable read alone is not one.
func (e *Effects) HasSideEffects() bool {
	return e.Calls ||
		e.LocalsWritten.Len() > 0 ||
		e.WritesMemory ||
		e.Branches ||
		e.GlobalsWritten.Len() > 0 ||
		e.ImplicitTrap
}

// HasAnything reports whether any effect at all was recorded.
func (e *Effects) HasAnything() bool {
	return e.Branches ||
		e.Calls ||
		e.AccessesLocal() ||
		e.ReadsMemory ||
		e.WritesMemory ||
		e.AccessesGlobal() ||
		e.ImplicitTrap
}

// Invalidates reports whether code with effects e cannot be reordered with
// code with effects other.
func (e *Effects) Invalidates(other *Effects) bool {
	if e.Branches || other.Branches {
		return true
	}
	if (e.WritesMemory || e.Calls) && other.AccessesMemory() {
		return true
	}
	if e.AccessesMemory() && (other.WritesMemory || other.Calls) {
		return true
	}
	for local := range e.LocalsWritten {
		if other.LocalsWritten.Has(local) || other.LocalsRead.Has(local) {
			return true
		}
	}
	for local := range e.LocalsRead {
		if other.LocalsWritten.Has(local) {
			return true
		}
	}
	if (e.AccessesGlobal() && other.Calls) || (other.AccessesGlobal() && e.Calls) {
		return true
	}
	for global := range e.GlobalsWritten {
		if other.GlobalsWritten.Has(global) || other.GlobalsRead.Has(global) {
			return true
		}
	}
	for global := range e.GlobalsRead {
		if other.GlobalsWritten.Has(global) {
			return true
		}
	}
	// traps may move relative to straight-line code but not be conditionalized
	return (e.ImplicitTrap && other.Branches) || (other.ImplicitTrap && e.Branches)
}

// MergeIn adds other's effects to e, as if both ran in sequence.
func (e *Effects) MergeIn(other *Effects) {
	e.Branches = e.Branches || other.Branches
	e.Calls = e.Calls || other.Calls
	e.ReadsMemory = e.ReadsMemory || other.ReadsMemory
	e.WritesMemory = e.WritesMemory || other.WritesMemory
	e.ImplicitTrap = e.ImplicitTrap || other.ImplicitTrap
	e.LocalsRead.Union(other.LocalsRead)
	e.LocalsWritten.Union(other.LocalsWritten)
	e.GlobalsRead.Union(other.GlobalsRead)
	e.GlobalsWritten.Union(other.GlobalsWritten)
}

// Clone returns a deep copy of e.
func (e *Effects) Clone() Effects {
	c := *e
	c.LocalsRead = e.LocalsRead.Clone()
	c.LocalsWritten = e.LocalsWritten.Clone()
	c.GlobalsRead = e.GlobalsRead.Clone()
	c.GlobalsWritten = e.GlobalsWritten.Clone()
	return c
}

// String renders e compactly with sorted sets, e.g.
//
//	branches calls reads:[0 3] writes:[1] gets:[g] sets:[] mem:r- trap
//
// Flags that are unset are omitted. The empty record renders as "none".
func (e *Effects) String() string {
	if !e.HasAnything() {
		return "none"
	}
	var parts []string
	if e.Branches {
		parts = append(parts, "branches")
	}
	if e.Calls {
		parts = append(parts, "calls")
	}
	if e.AccessesLocal() {
		parts = append(parts,
			"reads:"+formatIndices(e.LocalsRead.Sorted()),
			"writes:"+formatIndices(e.LocalsWritten.Sorted()))
	}
	if e.AccessesGlobal() {
		parts = append(parts,
			"gets:["+strings.Join(e.GlobalsRead.Sorted(), " ")+"]",
			"sets:["+strings.Join(e.GlobalsWritten.Sorted(), " ")+"]")
	}
	if e.ReadsMemory || e.WritesMemory {
		mem := []byte("mem:--")
		if e.ReadsMemory {
			mem[4] = 'r'
		}
		if e.WritesMemory {
			mem[5] = 'w'
		}
		parts = append(parts, string(mem))
	}
	if e.ImplicitTrap {
		parts = append(parts, "trap")
	}
	return strings.Join(parts, " ")
}

func formatIndices(idx []ir.Index) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range idx {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	b.WriteByte(']')
	return b.String()
}
