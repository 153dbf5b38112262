package wasm

import (
	"sort"

	"github.com/wippyai/wasm-effects/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format. Opaque sections
// are written back at their canonical position; custom sections and the
// name section go last.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeForm)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.Section(SectionType, sec)
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				sec.WriteU32(imp.Desc.TypeIdx)
			case KindTable:
				writeTableType(sec, *imp.Desc.Table)
			case KindMemory:
				writeLimits(sec, imp.Desc.Memory.Limits)
			case KindGlobal:
				writeGlobalType(sec, *imp.Desc.Global)
			}
		}
		w.Section(SectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, idx := range m.Funcs {
			sec.WriteU32(idx)
		}
		w.Section(SectionFunction, sec)
	}

	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(sec, t)
		}
		w.Section(SectionTable, sec)
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		w.Section(SectionMemory, sec)
	}

	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(sec, g.Type)
			sec.WriteBytes(EncodeInstructions(g.Init))
			sec.Byte(OpEnd)
		}
		w.Section(SectionGlobal, sec)
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		w.Section(SectionExport, sec)
	}

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		w.Section(SectionStart, sec)
	}

	m.writeOpaque(w, SectionElement)
	m.writeOpaque(w, SectionDataCount)

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			fb := binary.NewWriter()
			fb.WriteU32(uint32(len(body.Locals)))
			for _, l := range body.Locals {
				fb.WriteU32(l.Count)
				fb.Byte(byte(l.ValType))
			}
			fb.WriteBytes(body.Code)
			sec.WriteU32(uint32(fb.Len()))
			sec.WriteBytes(fb.Bytes())
		}
		w.Section(SectionCode, sec)
	}

	m.writeOpaque(w, SectionData)

	for _, s := range m.Opaque {
		if s.ID == SectionCustom {
			sec := binary.NewWriter()
			sec.WriteName(s.Name)
			sec.WriteBytes(s.Data)
			w.Section(SectionCustom, sec)
		}
	}
	if m.Names != nil {
		w.Section(SectionCustom, encodeNameSection(m.Names))
	}

	return w.Bytes()
}

func (m *Module) writeOpaque(w *binary.Writer, id byte) {
	for _, s := range m.Opaque {
		if s.ID == id {
			w.Byte(id)
			w.WriteU32(uint32(len(s.Data)))
			w.WriteBytes(s.Data)
		}
	}
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max == nil {
		w.Byte(0)
		w.WriteU32(uint32(l.Min))
		return
	}
	w.Byte(1)
	w.WriteU32(uint32(l.Min))
	w.WriteU32(uint32(*l.Max))
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func encodeNameSection(ns *NameSection) *binary.Writer {
	sec := binary.NewWriter()
	sec.WriteName("name")
	if ns.Module != "" {
		sub := binary.NewWriter()
		sub.WriteName(ns.Module)
		sec.Section(nameSubsectionModule, sub)
	}
	if len(ns.Functions) > 0 {
		sec.Section(nameSubsectionFunction, encodeNameMap(ns.Functions))
	}
	if len(ns.Globals) > 0 {
		sec.Section(nameSubsectionGlobal, encodeNameMap(ns.Globals))
	}
	return sec
}

// encodeNameMap writes entries in increasing index order, as the format requires.
func encodeNameMap(names map[uint32]string) *binary.Writer {
	idxs := make([]uint32, 0, len(names))
	for idx := range names {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	w := binary.NewWriter()
	w.WriteU32(uint32(len(idxs)))
	for _, idx := range idxs {
		w.WriteU32(idx)
		w.WriteName(names[idx])
	}
	return w
}

// NewFuncBody builds a body from decoded instructions, appending the final
// end when it is missing.
func NewFuncBody(locals []LocalEntry, instrs []Instruction) FuncBody {
	code := EncodeInstructions(instrs)
	if len(instrs) == 0 || instrs[len(instrs)-1].Opcode != OpEnd {
		code = append(code, OpEnd)
	}
	return FuncBody{Locals: locals, Code: code}
}
