package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-effects/analysis"
	"github.com/wippyai/wasm-effects/effects"
	"github.com/wippyai/wasm-effects/errors"
)

type options struct {
	wasmFile string
	funcName string
	cfg      analysis.Config
}

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to core wasm module")
		cfgFile     = flag.String("config", "", "YAML configuration file")
		ignoreTraps = flag.Bool("ignore-traps", false, "Assume loads, stores, division and truncation never trap")
		debugInfo   = flag.Bool("debug-info", false, "Keep code from moving across imported calls")
		validate    = flag.Bool("validate", false, "Validate the module with wazero before analysis")
		workers     = flag.Int("workers", 0, "Functions analyzed concurrently (0 = GOMAXPROCS)")
		funcName    = flag.String("func", "", "Report one function with per-statement effects")
		watch       = flag.Bool("watch", false, "Re-run the report when the module file changes")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging to stderr")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: effects -wasm <file.wasm> [-config cfg.yaml] [-ignore-traps] [-debug-info] [-validate]")
		fmt.Fprintln(os.Stderr, "       effects -wasm <file.wasm> -func name")
		fmt.Fprintln(os.Stderr, "       effects -wasm <file.wasm> -watch")
		fmt.Fprintln(os.Stderr, "       effects -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()
	effects.SetLogger(logger)
	analysis.SetLogger(logger)

	var cfg analysis.Config
	if *cfgFile != "" {
		c, err := analysis.LoadConfig(*cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	}
	// flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ignore-traps":
			cfg.IgnoreImplicitTraps = *ignoreTraps
		case "debug-info":
			cfg.DebugInfo = *debugInfo
		case "validate":
			cfg.Validate = *validate
		case "workers":
			cfg.Workers = *workers
		}
	})

	opts := options{wasmFile: *wasmFile, funcName: *funcName, cfg: cfg}

	if *interactive {
		if err := runInteractive(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := newRenderer(os.Stdout)
	var err error
	if *watch {
		err = runWatch(ctx, opts, r, os.Stdout)
	} else {
		err = run(ctx, opts, r, os.Stdout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func analyzeFile(ctx context.Context, opts options) (*analysis.Report, error) {
	data, err := os.ReadFile(opts.wasmFile)
	if err != nil {
		return nil, errors.Load("read "+opts.wasmFile, err)
	}
	return analysis.Analyze(ctx, data, opts.cfg)
}

func run(ctx context.Context, opts options, r renderer, out io.Writer) error {
	report, err := analyzeFile(ctx, opts)
	if err != nil {
		return err
	}
	if opts.funcName == "" {
		r.report(out, opts.wasmFile, report)
		return nil
	}
	fr, ok := report.Function(opts.funcName)
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "function", opts.funcName)
	}
	r.function(out, report, fr)
	return nil
}
