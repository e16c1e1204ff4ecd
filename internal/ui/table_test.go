package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Widths(t *testing.T) {
	table := &Table{
		Columns: []Column{{}, {Title: "Key"}, {Title: "Description", Max: 12}},
		Rows: [][]string{
			{"🤖", "basic_agent", "A friendly general purpose agent"},
			{"💰", "finance", "Stocks"},
		},
	}
	assert.Equal(t, []int{2, 11, 12}, table.Widths())
}

func TestTable_Render(t *testing.T) {
	table := &Table{
		Columns: []Column{{Title: "Key"}, {Title: "Name", Max: 8}},
		Rows: [][]string{
			{"web", "Web Researcher"},
			{"finance"},
		},
	}

	lines := strings.Split(strings.TrimRight(table.Render(), "\n"), "\n")
	assert.Len(t, lines, 4, "header, rule and one line per row")
	assert.Contains(t, lines[0], "Key")
	assert.Contains(t, lines[1], "─")
	assert.Contains(t, lines[2], "Web Res…")
	assert.Contains(t, lines[3], "finance")
}

func TestTable_RenderNoColumns(t *testing.T) {
	assert.Empty(t, (&Table{Rows: [][]string{{"x"}}}).Render())
}

func TestRenderCatalog(t *testing.T) {
	rows := []CatalogRow{
		{Icon: "🛫", Key: "travel_agent", Name: "TripTailor", Description: "Plans trips", Source: "travel_agent"},
		{Icon: "🤖", Key: "level2", Name: "Level2", Description: "No description provided", Source: "my_first_agents.level2"},
	}

	plain := RenderCatalog(rows, false)
	assert.Contains(t, plain, "travel_agent")
	assert.Contains(t, plain, "TripTailor")
	assert.NotContains(t, plain, "Source")
	assert.NotContains(t, plain, "my_first_agents.level2")

	verbose := RenderCatalog(rows, true)
	assert.Contains(t, verbose, "Source")
	assert.Contains(t, verbose, "my_first_agents.level2")
}

func TestRenderCatalog_LongDescription(t *testing.T) {
	rows := []CatalogRow{{Key: "study", Description: strings.Repeat("word ", 30)}}
	for _, line := range strings.Split(RenderCatalog(rows, false), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 200)
	}
	assert.Contains(t, RenderCatalog(rows, false), "…")
}

func TestTruncateCells(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abcdef", 4, "abc…"},
		{"abcdef", 1, "…"},
		{"abc", 3, "abc"},
		{"abc", 0, "abc"},
		{"🤖🤖🤖", 4, "🤖…"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateCells(tt.in, tt.width), tt.in)
	}
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "abc  ", padRight("abc", 5))
	assert.Equal(t, "longer", padRight("longer", 3))
	assert.Equal(t, "🤖 ", padRight("🤖", 3))
}
