// Package ui holds the terminal presentation helpers shared by the console
// and the CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorPrimary   = lipgloss.Color("205") // pink
	ColorSecondary = lipgloss.Color("241") // gray
	ColorUser      = lipgloss.Color("42")  // green
	ColorError     = lipgloss.Color("160")
	ColorWarning   = lipgloss.Color("214")
	ColorText      = lipgloss.Color("252")
	ColorInfo      = lipgloss.Color("87") // cyan
	ColorMember    = lipgloss.Color("75") // blue
)

var (
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)

	// Transcript prefixes: who is speaking.
	StylePrefixAgent  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StylePrefixUser   = lipgloss.NewStyle().Foreground(ColorUser).Bold(true)
	StylePrefixMember = lipgloss.NewStyle().Foreground(ColorMember).Bold(true)
	StylePrefixError  = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
)
