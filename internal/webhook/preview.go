package webhook

import (
	"strings"

	"github.com/rivo/uniseg"
)

const previewLength = 60

// preview shortens text for log lines without splitting grapheme clusters.
func preview(text string, limit int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if uniseg.GraphemeClusterCount(text) <= limit {
		return text
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(text)
	for n := 0; n < limit && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("…")
	return b.String()
}
