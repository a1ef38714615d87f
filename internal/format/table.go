package format

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
)

// Tabular is implemented by CLI payloads that have a table rendering.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// MaxCellWidth bounds a single cell; longer values are truncated with an ellipsis.
const MaxCellWidth = 48

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func WriteTable(w io.Writer, t Tabular) error {
	rows := t.Rows()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(no results)")
		return err
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(t.Headers()...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = ansi.Truncate(c, MaxCellWidth, "…")
		}
		tbl.Row(cells...)
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

// KV is a two-column field/value table for detail views.
type KV [][2]string

func (kv KV) Headers() []string { return []string{"field", "value"} }

func (kv KV) Rows() [][]string {
	out := make([][]string, 0, len(kv))
	for _, p := range kv {
		out = append(out, []string{p[0], p[1]})
	}
	return out
}
