// Package wasm reads and writes the subset of the WebAssembly binary format
// that effect analysis consumes.
//
// Decoded in full: type, import, function, table, memory, global, export,
// start and code sections, plus the function and global subsections of
// the "name" custom section. Element, data and data count sections are
// carried as opaque payloads so that Encode reproduces them.
//
// Function bodies stay as raw bytes until DecodeInstructions is called;
// instruction immediates are decoded into typed structs (BlockImm,
// BranchImm, MemoryImm, ...) stored in Instruction.Imm.
//
//	data, _ := os.ReadFile("module.wasm")
//	m, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	instrs, err := wasm.DecodeInstructions(m.Code[0].Code)
//
// Only single-value and void function types are expected downstream, but
// the decoder itself accepts any number of results.
package wasm
