package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-effects/analysis"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	effectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	pureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// renderer prints reports, styled only when writing to a terminal.
type renderer struct {
	styled bool
}

func newRenderer(f *os.File) renderer {
	return renderer{styled: term.IsTerminal(int(f.Fd()))}
}

func (r renderer) paint(style lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return style.Render(s)
}

func (r renderer) report(out io.Writer, filename string, report *analysis.Report) {
	fmt.Fprintln(out, r.paint(titleStyle, "Effects")+" "+filename)
	width := 0
	for i := range report.Functions {
		width = max(width, len(report.Functions[i].Name))
	}
	pure := 0
	for i := range report.Functions {
		fr := &report.Functions[i]
		if fr.Pure() {
			pure++
		}
		fmt.Fprintln(out, r.summary(report, fr, width))
	}
	fmt.Fprintf(out, "%d functions, %d pure, %d recursive\n", len(report.Functions), pure, len(report.Recursive))
}

// summary renders one function as a single line.
func (r renderer) summary(report *analysis.Report, fr *analysis.FunctionReport, width int) string {
	name := r.paint(funcStyle, fmt.Sprintf("%-*s", width, fr.Name))
	switch {
	case fr.Imported:
		return name + "  import  " + r.paint(effectStyle, fr.Effects.String())
	case fr.Err != nil:
		return name + "  " + r.paint(errorStyle, "error   "+fr.Err.Error())
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString("  ")
	if fr.Pure() {
		b.WriteString(r.paint(pureStyle, "pure  "))
	} else {
		b.WriteString("impure")
	}
	b.WriteString("  ")
	b.WriteString(r.paint(effectStyle, fr.Effects.String()))
	if n := len(fr.Statements); n > 1 {
		fmt.Fprintf(&b, "  independent=%d/%d hoistable=%d", fr.Independent, n-1, fr.Hoistable)
	}
	if report.Recursive[fr.Index] {
		b.WriteString("  recursive")
	}
	return b.String()
}

// function renders one function with its statements and reachable imports.
func (r renderer) function(out io.Writer, report *analysis.Report, fr *analysis.FunctionReport) {
	fmt.Fprintln(out, r.summary(report, fr, len(fr.Name)))
	for i := range fr.Statements {
		fmt.Fprintf(out, "  #%-3d %s\n", i, r.paint(effectStyle, fr.Statements[i].String()))
	}
	if !fr.Imported {
		if imports := report.ReachableImports(fr.Index); len(imports) > 0 {
			fmt.Fprintf(out, "  reaches %s\n", strings.Join(imports, ", "))
		}
	}
}
