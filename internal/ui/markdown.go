package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const defaultWrap = 100

var (
	mdOnce     sync.Once
	mdRenderer *glamour.TermRenderer
	mdErr      error
)

// RenderMarkdown renders md for a terminal. The source text is returned
// unchanged when the renderer cannot be built or fails.
func RenderMarkdown(md string) string {
	mdOnce.Do(func() {
		mdRenderer, mdErr = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(defaultWrap),
			glamour.WithEmoji(),
		)
	})
	if mdErr != nil {
		return md
	}
	out, err := mdRenderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
