package analysis

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-effects/effects"
	"github.com/wippyai/wasm-effects/ir"
	"github.com/wippyai/wasm-effects/wasm"
)

// FunctionReport holds the analysis of one function.
type FunctionReport struct {
	// Err is set when the function could not be lifted; the effect fields
	// are then empty.
	Err  error
	Name string
	// Statements holds the effects of each top-level statement of the body.
	Statements []effects.Effects
	Effects    effects.Effects
	Index      uint32
	// Independent counts adjacent statement pairs that may be swapped.
	Independent int
	// Hoistable counts statements, after the first, that may be moved
	// above all statements preceding them.
	Hoistable int
	Imported  bool
	// ExplicitTrap is set when the body contains an unreachable
	// instruction. The effect record sees it only as a branch.
	ExplicitTrap bool
}

// Pure reports whether a call to the function may be removed when its
// result is unused. Locals and returns are private to the function and do
// not count; termination is not considered. Implicit and explicit traps
// both make a function impure.
func (r *FunctionReport) Pure() bool {
	if r.Err != nil || r.ExplicitTrap {
		return false
	}
	e := &r.Effects
	return !e.Calls && !e.WritesMemory && e.GlobalsWritten.Len() == 0 && !e.ImplicitTrap
}

// Report is the analysis of a whole module.
type Report struct {
	Module    *wasm.Module
	Calls     CallGraph
	Recursive map[uint32]bool
	// Functions is indexed by function index, imports first.
	Functions []FunctionReport
}

// Function looks a function up by name.
func (r *Report) Function(name string) (*FunctionReport, bool) {
	for i := range r.Functions {
		if r.Functions[i].Name == name {
			return &r.Functions[i], true
		}
	}
	return nil, false
}

// ReachableImports returns the sorted names of imported functions that
// funcIdx may reach through direct calls. An import does not reach itself.
func (r *Report) ReachableImports(funcIdx uint32) []string {
	var names []string
	for idx := range r.Calls.TransitiveCallees(funcIdx) {
		if idx == funcIdx {
			continue
		}
		if int(idx) < len(r.Functions) && r.Functions[idx].Imported {
			names = append(names, r.Functions[idx].Name)
		}
	}
	slices.Sort(names)
	return names
}

// CanReorder reports whether code with effects a and code with effects b
// may be swapped, checking invalidation in both directions.
func CanReorder(a, b *effects.Effects) bool {
	return !a.Invalidates(b) && !b.Invalidates(a)
}

// Analyze decodes and analyzes a binary module.
func Analyze(ctx context.Context, data []byte, cfg Config) (*Report, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, err
	}
	if cfg.Validate {
		if err := Validate(ctx, data, m); err != nil {
			return nil, err
		}
	}
	return AnalyzeModule(ctx, m, cfg)
}

// AnalyzeModule analyzes every function of a decoded module. Functions
// that fail to lift are reported with Err set; only context cancellation
// fails the whole analysis.
func AnalyzeModule(ctx context.Context, m *wasm.Module, cfg Config) (*Report, error) {
	n := m.NumFuncs()
	imported := m.NumImportedFuncs()
	report := &Report{
		Module:    m,
		Functions: make([]FunctionReport, n),
	}
	lifted := make([]*ir.Function, n)

	for i := 0; i < imported; i++ {
		fr := &report.Functions[i]
		fr.Index = uint32(i)
		fr.Name = m.FuncName(uint32(i))
		fr.Imported = true
		fr.Effects.Calls = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i := imported; i < n; i++ {
		idx := uint32(i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr := &report.Functions[idx]
			fr.Index = idx
			fr.Name = m.FuncName(idx)

			fn, err := ir.Lift(m, idx)
			if err != nil {
				fr.Err = err
				Logger().Warn("lift failed", zap.String("func", fr.Name), zap.Error(err))
				return nil
			}
			lifted[idx] = fn
			analyzeFunction(fr, fn, cfg.Options)
			Logger().Debug("analyzed",
				zap.String("func", fr.Name),
				zap.Int("statements", len(fr.Statements)),
				zap.Stringer("effects", &fr.Effects))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Calls = BuildCallGraph(lifted)
	report.Recursive = report.Calls.Recursive(n)
	return report, nil
}

func analyzeFunction(fr *FunctionReport, fn *ir.Function, opts effects.Options) {
	fr.Effects = effects.New(opts, fn.Body).Effects
	ir.WalkFunc(fn.Body, nil, func(e ir.Expr) {
		if e.Kind() == ir.KindUnreachable {
			fr.ExplicitTrap = true
		}
	})

	stmts := fn.Statements()
	fr.Statements = make([]effects.Effects, len(stmts))
	for i, s := range stmts {
		fr.Statements[i] = effects.New(opts, s).Effects
	}

	var prefix effects.Effects
	for i := range fr.Statements {
		cur := &fr.Statements[i]
		if i > 0 {
			if CanReorder(&fr.Statements[i-1], cur) {
				fr.Independent++
			}
			if CanReorder(&prefix, cur) {
				fr.Hoistable++
			}
		}
		prefix.MergeIn(cur)
	}
}
