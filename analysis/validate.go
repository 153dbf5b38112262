package analysis

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-effects/errors"
	"github.com/wippyai/wasm-effects/wasm"
)

// Validate compiles data with wazero's interpreter, which performs full
// WebAssembly validation, and checks that wazero and m agree on the
// number of imported functions.
func Validate(ctx context.Context, data []byte, m *wasm.Module) error {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "compile module")
	}
	defer compiled.Close(ctx)

	if got, want := len(compiled.ImportedFunctions()), m.NumImportedFuncs(); got != want {
		return errors.New(errors.PhaseValidate, errors.KindInvalidData).
			Detail("wazero reports %d imported functions, decoder %d", got, want).
			Build()
	}
	return nil
}
