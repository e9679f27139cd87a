package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B9BD5")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7A100"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC3333")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable draws a bordered table; rows shorter than headers are padded.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		for len(r) < len(headers) {
			r = append(r, "")
		}
		t.Row(r...)
	}
	return t.String()
}

func printTitle(w io.Writer, s string) {
	fmt.Fprintln(w, titleStyle.Render(s))
}

func printMuted(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf(format, args...)))
}
