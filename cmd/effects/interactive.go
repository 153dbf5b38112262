package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-effects/analysis"
)

type interactiveModel struct {
	err      error
	report   *analysis.Report
	opts     options
	filter   textinput.Model
	visible  []int // indices into report.Functions matching the filter
	selected int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateShowFunc
)

// styled output is always on inside the TUI
var tuiRenderer = renderer{styled: true}

func newInteractiveModel(opts options) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "filter functions"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()
	return &interactiveModel{
		opts:   opts,
		filter: ti,
		state:  stateSelectFunc,
	}
}

type loadedMsg struct {
	err    error
	report *analysis.Report
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.loadReport, textinput.Blink)
}

func (m *interactiveModel) loadReport() tea.Msg {
	report, err := analyzeFile(context.Background(), m.opts)
	return loadedMsg{report: report, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateSelectFunc && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.visible) > 0 {
					m.state = stateShowFunc
				}
			case stateShowFunc:
				m.state = stateSelectFunc
			}
			return m, nil

		case "esc":
			if m.state == stateShowFunc {
				m.state = stateSelectFunc
				return m, nil
			}
			return m, tea.Quit

		case "q":
			if m.state == stateShowFunc || m.err != nil {
				return m, tea.Quit
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.report = msg.report
		m.applyFilter()
		return m, nil
	}

	if m.state == stateSelectFunc {
		var cmd tea.Cmd
		prev := m.filter.Value()
		m.filter, cmd = m.filter.Update(msg)
		if m.filter.Value() != prev {
			m.applyFilter()
		}
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) applyFilter() {
	m.visible = m.visible[:0]
	if m.report == nil {
		return
	}
	needle := strings.ToLower(m.filter.Value())
	for i := range m.report.Functions {
		if strings.Contains(strings.ToLower(m.report.Functions[i].Name), needle) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(0, len(m.visible)-1)
	}
}

func (m *interactiveModel) current() *analysis.FunctionReport {
	return &m.report.Functions[m.visible[m.selected]]
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.report == nil {
		return "Analyzing module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WASM Effects"))
	b.WriteString(" ")
	b.WriteString(m.opts.wasmFile)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		width := 0
		for _, i := range m.visible {
			width = max(width, len(m.report.Functions[i].Name))
		}
		for row, i := range m.visible {
			line := tuiRenderer.summary(m.report, &m.report.Functions[i], width)
			if row == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("  no matching functions"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter details • esc quit"))

	case stateShowFunc:
		tuiRenderer.function(&b, m.report, m.current())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
	}

	return b.String()
}

func runInteractive(opts options) error {
	p := tea.NewProgram(newInteractiveModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
