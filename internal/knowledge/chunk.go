// Package knowledge indexes local documents for agents and searches them.
package knowledge

import (
	"strings"
	"unicode/utf8"
)

// MaxChunkChars is the upper bound on a chunk's length in bytes.
const MaxChunkChars = 1200

// SplitParagraphs packs blank-line separated paragraphs into chunks of at most
// maxChars. A paragraph longer than maxChars is cut on line, then word, then
// rune boundaries.
func SplitParagraphs(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxChars {
			flush()
			chunks = append(chunks, splitLong(para, maxChars)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > maxChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}

func splitLong(s string, maxChars int) []string {
	var out []string
	for len(s) > maxChars {
		cut := strings.LastIndex(s[:maxChars], "\n")
		if cut <= 0 {
			cut = strings.LastIndex(s[:maxChars], " ")
		}
		if cut <= 0 {
			cut = maxChars
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		if piece := strings.TrimSpace(s[:cut]); piece != "" {
			out = append(out, piece)
		}
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
