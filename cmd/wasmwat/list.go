package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	wasmwat "github.com/wippyai/wasm-wat"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	importStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func kind(f wasmwat.FunctionSummary) string {
	if f.Imported {
		return "import"
	}
	return "defined"
}

// renderFunctions formats a function listing, as a styled table for
// terminals and as tab-aligned columns otherwise.
func renderFunctions(funcs []wasmwat.FunctionSummary, styled bool) string {
	if !styled {
		var b strings.Builder
		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tKIND\tSIGNATURE")
		for _, f := range funcs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.Index, displayName(f), kind(f), f.Signature())
		}
		_ = w.Flush()
		return b.String()
	}

	rows := make([][]string, len(funcs))
	for i, f := range funcs {
		rows[i] = []string{fmt.Sprint(f.Index), displayName(f), kind(f), f.Signature()}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(helpStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			switch col {
			case 1:
				return base.Inherit(funcStyle)
			case 2:
				if row >= 0 && row < len(funcs) && funcs[row].Imported {
					return base.Inherit(importStyle)
				}
			case 3:
				return base.Inherit(typeStyle)
			}
			return base
		}).
		Headers("INDEX", "NAME", "KIND", "SIGNATURE").
		Rows(rows...)
	return titleStyle.Render(fmt.Sprintf("%d functions", len(funcs))) + "\n" + t.String() + "\n"
}
