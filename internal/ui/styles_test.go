package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestTranscriptPrefixes(t *testing.T) {
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI256)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	prefixes := map[string]lipgloss.Style{
		"agent":  StylePrefixAgent,
		"user":   StylePrefixUser,
		"member": StylePrefixMember,
		"error":  StylePrefixError,
	}
	seen := make(map[string]string)
	for who, style := range prefixes {
		out := style.Render("Finance Agent:")
		assert.Contains(t, out, "Finance Agent:", who)
		assert.NotEqual(t, "Finance Agent:", out, "%s prefix should be colored", who)
		if other, dup := seen[out]; dup {
			t.Errorf("%s and %s prefixes render identically", who, other)
		}
		seen[out] = who
	}
}
