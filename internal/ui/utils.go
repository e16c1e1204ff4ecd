package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal. Spinners and markdown
// rendering are only used on terminals.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// RenderPageHeader writes the boxed console title with an optional subtitle.
func RenderPageHeader(w io.Writer, title, subtitle string) {
	box := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary)

	_, _ = fmt.Fprintln(w, box.Render("🤖 "+title))
	if subtitle != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", StyleSubtle.Render(subtitle))
	}
}

// RenderInfoPanel renders body in a cyan bordered box under a bold title.
func RenderInfoPanel(title, body string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorInfo).
		Padding(0, 1)
	if title != "" {
		body = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render(title) + "\n" + body
	}
	return box.Render(body)
}

// Summarize returns the first non-blank line of s cut to maxLen runes.
// Team member replies are shown this way under the leader's answer.
func Summarize(s string, maxLen int) string {
	var first string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			first = line
			break
		}
	}
	r := []rune(first)
	if maxLen <= 0 || len(r) <= maxLen {
		return first
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
