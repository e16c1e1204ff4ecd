package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// descriptionWidth caps the description column of catalog listings.
const descriptionWidth = 60

// Column is one table column. Max caps its width in cells (0 = content width).
type Column struct {
	Title string
	Max   int
}

// Table renders rows in a compact aligned layout. Widths are measured in
// terminal cells so emoji icons line up.
type Table struct {
	Columns []Column
	Rows    [][]string
}

// CatalogRow is one agent line of a catalog listing.
type CatalogRow struct {
	Icon        string
	Key         string
	Name        string
	Description string
	Source      string
}

// RenderCatalog lists agents as icon, key, name and description, plus the
// source module when withSource is set.
func RenderCatalog(rows []CatalogRow, withSource bool) string {
	t := &Table{Columns: []Column{{}, {Title: "Key"}, {Title: "Name"}, {Title: "Description", Max: descriptionWidth}}}
	if withSource {
		t.Columns = append(t.Columns, Column{Title: "Source"})
	}
	for _, r := range rows {
		cells := []string{r.Icon, r.Key, r.Name, r.Description}
		if withSource {
			cells = append(cells, r.Source)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t.Render()
}

// Widths returns the width of every column in cells.
func (t *Table) Widths() []int {
	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = lipgloss.Width(col.Title)
		for _, row := range t.Rows {
			if i < len(row) {
				widths[i] = max(widths[i], lipgloss.Width(row[i]))
			}
		}
		if col.Max > 0 {
			widths[i] = min(widths[i], col.Max)
		}
	}
	return widths
}

// Render returns the header, a rule and one line per row. Missing cells
// render blank; long cells are cut with an ellipsis.
func (t *Table) Render() string {
	if len(t.Columns) == 0 {
		return ""
	}
	widths := t.Widths()

	head := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	body := lipgloss.NewStyle().Foreground(ColorText)

	var sb strings.Builder
	line := func(cells []string, style lipgloss.Style, sep string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = style.Render(padRight(c, widths[i]))
		}
		sb.WriteString(" " + strings.Join(parts, sep) + "\n")
	}

	titles := make([]string, len(t.Columns))
	rule := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		titles[i] = col.Title
		rule[i] = strings.Repeat("─", widths[i])
	}
	line(titles, head, "  ")
	line(rule, StyleSubtle, "──")

	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = truncateCells(row[i], widths[i])
			}
		}
		line(cells, body, "  ")
	}
	return sb.String()
}

// truncateCells shortens s to at most width cells, ending in an ellipsis.
func truncateCells(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	var sb strings.Builder
	used := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width-1 {
			break
		}
		sb.WriteRune(r)
		used += w
	}
	return sb.String() + "…"
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
