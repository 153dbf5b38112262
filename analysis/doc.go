// Package analysis runs the effect analyzer over every function of a
// WebAssembly module.
//
// Analyze optionally validates the module with wazero, decodes it, lifts
// each defined function into an expression tree and analyzes the body and
// each top-level statement concurrently. The Report lists per-function
// effects, how many adjacent statements could be swapped, and which
// functions are recursive according to the direct call graph.
package analysis
