package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	wasmwat "github.com/wippyai/wasm-wat"
	"github.com/wippyai/wasm-wat/config"
)

type browserModel struct {
	err      error
	module   *wasmwat.Module
	opts     config.Options
	filename string
	text     string
	funcs    []wasmwat.FunctionSummary
	visible  []int
	filter   textinput.Model
	selected int
	state    browserState
}

type browserState int

const (
	stateBrowse browserState = iota
	stateDetail
	stateText
)

type loadedMsg struct {
	err    error
	module *wasmwat.Module
	funcs  []wasmwat.FunctionSummary
}

type textMsg struct {
	err  error
	text string
}

func newBrowserModel(filename string, opts config.Options) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "filter by name"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()
	return &browserModel{
		filename: filename,
		opts:     opts,
		filter:   ti,
		state:    stateBrowse,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return tea.Batch(m.loadModule, textinput.Blink)
}

func (m *browserModel) loadModule() tea.Msg {
	h, _, err := load(m.filename, m.opts)
	if err != nil {
		return loadedMsg{err: err}
	}
	funcs, err := wasmwat.ListFunctions(h)
	if err != nil {
		_ = h.Close()
		return loadedMsg{err: err}
	}
	return loadedMsg{module: h, funcs: funcs}
}

func (m *browserModel) renderText() tea.Msg {
	ecfg := m.opts.EncodeConfig()
	ecfg.FoldExprs = true
	text, err := wasmwat.ModuleToText(m.module, ecfg)
	return textMsg{text: text, err: err}
}

func (m *browserModel) applyFilter() {
	m.visible = m.visible[:0]
	for i, f := range m.funcs {
		if matches(f, m.filter.Value()) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "up":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateBrowse && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.state == stateBrowse && len(m.visible) > 0 {
				m.state = stateDetail
			}
			return m, nil

		case "ctrl+t":
			if m.module != nil && m.state != stateText {
				return m, m.renderText
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateBrowse:
				return m, m.quit()
			default:
				m.state = stateBrowse
				m.text = ""
			}
			return m, nil
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.module = msg.module
		m.funcs = msg.funcs
		m.applyFilter()
		return m, nil

	case textMsg:
		m.text = msg.text
		m.err = msg.err
		m.state = stateText
		return m, nil
	}

	if m.state == stateBrowse {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	return m, nil
}

func (m *browserModel) quit() tea.Cmd {
	if m.module != nil {
		_ = m.module.Close()
	}
	return tea.Quit
}

func (m *browserModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}

	if m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WAT Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, idx := range m.visible {
			line := m.formatFunc(m.funcs[idx])
			if i == m.selected {
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
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • ctrl+t module text • esc quit"))

	case stateDetail:
		f := m.funcs[m.visible[m.selected]]
		b.WriteString(fmt.Sprintf("Function %s\n\n", funcStyle.Render(displayName(f))))
		b.WriteString(fmt.Sprintf("  index:     %d\n", f.Index))
		b.WriteString(fmt.Sprintf("  kind:      %s\n", kind(f)))
		b.WriteString(fmt.Sprintf("  signature: %s\n", typeStyle.Render(f.Signature())))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • ctrl+t module text • ctrl+c quit"))

	case stateText:
		b.WriteString(m.text)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • ctrl+c quit"))
	}

	return b.String()
}

func (m *browserModel) formatFunc(f wasmwat.FunctionSummary) string {
	name := funcStyle.Render(displayName(f))
	if f.Imported {
		name += " " + importStyle.Render("import")
	}
	if sig := f.Signature(); sig != "" {
		name += " " + typeStyle.Render(sig)
	}
	return name
}

func runInteractive(filename string, opts config.Options) error {
	p := tea.NewProgram(newBrowserModel(filename, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
