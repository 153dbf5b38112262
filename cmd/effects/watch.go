package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-effects/analysis"
	"github.com/wippyai/wasm-effects/errors"
)

// settle is how long the module file must stay quiet before a re-run.
const settle = 150 * time.Millisecond

// runWatch prints the report, then prints it again whenever the module
// file is written or replaced, until ctx is done. Analysis errors are
// printed and watching continues.
func runWatch(ctx context.Context, opts options, r renderer, out io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Load("create watcher", err)
	}
	defer w.Close()

	// Watch the directory: editors and build tools often replace the file.
	target := filepath.Clean(opts.wasmFile)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return errors.Load("watch "+filepath.Dir(target), err)
	}

	rerun := func() {
		if err := run(ctx, opts, r, out); err != nil {
			fmt.Fprintln(out, r.paint(errorStyle, "Error: "+err.Error()))
		}
	}
	rerun()

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			analysis.Logger().Debug("module changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return errors.Load("watch "+target, err)
		case <-timer.C:
			fmt.Fprintln(out)
			rerun()
		}
	}
}
