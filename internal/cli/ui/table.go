package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	evenRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	oddRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0"))
)

// Table is a header row plus data rows, rendered styled for terminals or as
// plain pipes for logs and redirected output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// widths returns the display width of every column.
func (t *Table) widths() []int {
	w := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		w[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(w) && i < len(row); i++ {
			if cw := lipgloss.Width(row[i]); cw > w[i] {
				w[i] = cw
			}
		}
	}
	return w
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Render renders the table with lipgloss styles.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	w := t.widths()

	var sb strings.Builder
	for i, h := range t.Headers {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(headerStyle.Render(padRight(h, w[i])))
	}
	sb.WriteString("\n")

	for r, row := range t.Rows {
		style := evenRowStyle
		if r%2 == 1 {
			style = oddRowStyle
		}
		for i := range t.Headers {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(style.Render(cellStyle.Render(padRight(cell(row, i), w[i]))))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderPlain renders a pipe-delimited table without escape codes.
func (t *Table) RenderPlain() string {
	if len(t.Headers) == 0 {
		return ""
	}
	w := t.widths()

	line := func(cells func(int) string) string {
		parts := make([]string, len(w))
		for i := range w {
			parts[i] = padRight(cells(i), w[i])
		}
		return "| " + strings.Join(parts, " | ") + " |\n"
	}

	var sb strings.Builder
	sb.WriteString(line(func(i int) string { return t.Headers[i] }))
	sb.WriteString(line(func(i int) string { return strings.Repeat("-", w[i]) }))
	for _, row := range t.Rows {
		sb.WriteString(line(func(i int) string { return cell(row, i) }))
	}
	return sb.String()
}

// Print writes the table to stdout, styled when styled is true.
func (t *Table) Print(styled bool) {
	if styled {
		fmt.Println(t.Render())
		return
	}
	fmt.Print(t.RenderPlain())
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
