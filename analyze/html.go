package analyze

import (
	"strings"

	"golang.org/x/net/html"
)

// CleanHTML strips tags from comment HTML, decodes entities, and collapses
// whitespace, leaving plain text suitable for prompt embedding. Malformed
// input degrades to whatever text the parser salvages.
func CleanHTML(raw string) string {
	if raw == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}

	var b strings.Builder
	collectText(doc, &b)

	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
