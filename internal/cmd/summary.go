package cmd

import (
	"io"
	"os"
	"strconv"

	"downsort/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	movedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func runRows(stats types.RunStats) [][]string {
	return [][]string{
		{"Scanned", strconv.Itoa(stats.Scanned)},
		{"Moved", strconv.Itoa(stats.Moved)},
		{"Skipped", strconv.Itoa(stats.Skipped)},
		{"Unsupported", strconv.Itoa(stats.Unsupported)},
		{"Errors", strconv.Itoa(stats.Errors)},
	}
}

// renderSummary draws a two column count table under a title line.
// Terminals get rounded borders, everything else plain ASCII.
func renderSummary(w io.Writer, title string, rows [][]string) string {
	tw := table.NewWriter()
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	tw.AppendHeader(table.Row{"Result", "Files"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	return styled(w, titleStyle, title) + "\n" + tw.Render()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// styled applies style only when w is a terminal.
func styled(w io.Writer, style lipgloss.Style, s string) string {
	if !isTerminal(w) {
		return s
	}
	return style.Render(s)
}
