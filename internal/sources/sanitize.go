package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxDescriptionLen bounds normalized descriptions; longer text is cut and
// marked with an ellipsis.
const maxDescriptionLen = 200

// cleanDescription strips HTML tags and entities from upstream description
// text, collapses whitespace (including non-breaking spaces) and truncates
// to maxDescriptionLen runes.
func cleanDescription(raw string) string {
	text := raw

	if strings.ContainsAny(raw, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			text = doc.Text()
		}
	}

	// Fields treats NBSP as whitespace, so entity remnants collapse too
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > maxDescriptionLen {
		return string(runes[:maxDescriptionLen]) + "..."
	}
	return text
}
