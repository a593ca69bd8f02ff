package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows under column headings with aligned columns
type Table struct {
	Headers []string
	Rows    [][]string
	Plain   bool
}

// NewTable creates a table with the given headings
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers, Plain: !IsInteractive()}
}

// AddRow appends a row. Missing cells render empty, extra cells are dropped.
func (t *Table) AddRow(cells ...string) *Table {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	return t
}

// Render returns the table as a string
func (t *Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, t.renderRow(t.Headers, widths, TableHeaderStyle))
	for _, row := range t.Rows {
		lines = append(lines, t.renderRow(row, widths, TableCellStyle))
	}
	return strings.Join(lines, "\n")
}

func (t *Table) renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		padded := cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		if t.Plain {
			parts[i] = padded
		} else {
			parts[i] = style.Render(padded)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// String implements fmt.Stringer
func (t *Table) String() string {
	return t.Render()
}
