// Package wasmeffects computes side-effect summaries of WebAssembly code
// and uses them to decide which pieces of code may be reordered.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	wasmeffects/
//	├── effects/         Effect records, the tree analyzer, invalidation and merge
//	├── ir/              Expression trees, the depth-first walker, lifting from wasm
//	├── wasm/            Core WASM binary decoding and encoding
//	├── analysis/        Whole-module driver: validation, call graph, reports
//	├── errors/          Structured error types for debugging
//	└── cmd/effects/     Command-line report, interactive browser, watch mode
//
// # Quick Start
//
// Analyze an expression tree:
//
//	a := effects.New(effects.Options{}, &ir.SetLocal{
//	    Index: 0,
//	    Value: &ir.Load{Op: wasm.OpI32Load, Ptr: &ir.GetLocal{Index: 1}},
//	})
//	fmt.Println(a.String()) // "reads:[1] writes:[0] mem:r- trap"
//
// Analyze every function of a module:
//
//	report, err := analysis.Analyze(ctx, wasmBytes, analysis.Config{Validate: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, fr := range report.Functions {
//	    fmt.Println(fr.Name, fr.Pure(), fr.Effects.String())
//	}
//
// # Effects
//
// An effect record tracks:
//
//   - Control flow: returns, traps, loops and breaks escaping the tree
//   - Calls: direct, indirect, imported and host intrinsics
//   - Locals read and written, by index
//   - Globals read and written, by name
//   - Linear memory reads and writes, without address ranges
//   - Implicit traps from memory access, division and float truncation
//
// # Thread Safety
//
// An Analyzer belongs to one goroutine. Effect records are plain values;
// analysis.Analyze runs one analyzer per function in parallel.
package wasmeffects
