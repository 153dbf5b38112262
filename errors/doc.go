// Package errors provides structured error types for the wasm-effects module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the failing location (function, section or label path),
// an optional offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLift, errors.KindUnsupported).
//		Path("func[3]", "block[1]").
//		Value(2).
//		Detail("multi-value block with %d results", 2).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidData(errors.PhaseDecode, path, "truncated section")
//	err := errors.OutOfBounds(errors.PhaseLift, path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
