package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column. Width is in terminal cells.
type Column struct {
	Title string
	Width int
	Align lipgloss.Position
}

// Cell is one table value with an optional style override.
type Cell struct {
	Text  string
	Style *lipgloss.Style
}

// Table renders fixed-width rows with alternating styles.
type Table struct {
	theme   *Theme
	columns []Column
	rows    [][]Cell
}

// NewTable creates an empty table.
func NewTable(theme *Theme, columns ...Column) *Table {
	return &Table{theme: theme, columns: columns}
}

// AddRow appends a row of plain cells.
func (t *Table) AddRow(cells ...string) {
	row := make([]Cell, len(cells))
	for i, c := range cells {
		row[i] = Cell{Text: c}
	}
	t.rows = append(t.rows, row)
}

// AddStyledRow appends a row whose cells may carry their own style.
func (t *Table) AddStyledRow(cells ...Cell) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render draws the header, a rule and every row.
func (t *Table) Render() string {
	var b strings.Builder

	width := 0
	headers := make([]Cell, len(t.columns))
	for i, col := range t.columns {
		width += col.Width + 3
		headers[i] = Cell{Text: col.Title}
	}
	rule := t.theme.Border.Render(strings.Repeat("─", width))

	b.WriteString(t.renderRow(headers, t.theme.Header))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")

	for i, row := range t.rows {
		style := t.theme.Row
		if i%2 == 1 {
			style = t.theme.RowAlt
		}
		b.WriteString(t.renderRow(row, style))
		b.WriteString("\n")
	}

	if len(t.rows) == 0 {
		b.WriteString(t.theme.Muted.Render(" (none)"))
		b.WriteString("\n")
	}
	return b.String()
}

func (t *Table) renderRow(cells []Cell, style lipgloss.Style) string {
	parts := make([]string, len(t.columns))
	for i, col := range t.columns {
		var cell Cell
		if i < len(cells) {
			cell = cells[i]
		}
		s := style
		if cell.Style != nil {
			s = *cell.Style
		}
		parts[i] = s.Render(fit(cell.Text, col.Width, col.Align))
	}
	return " " + strings.Join(parts, " │ ") + " "
}

// fit truncates or pads text to exactly width cells.
func fit(text string, width int, align lipgloss.Position) string {
	if lipgloss.Width(text) > width {
		runes := []rune(text)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		text = string(runes) + "…"
	}

	pad := width - lipgloss.Width(text)
	if pad <= 0 {
		return text
	}
	switch align {
	case lipgloss.Right:
		return strings.Repeat(" ", pad) + text
	case lipgloss.Center:
		left := pad / 2
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", pad-left)
	default:
		return text + strings.Repeat(" ", pad)
	}
}
