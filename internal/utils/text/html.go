package text

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML converts an HTML fragment to plain text with collapsed whitespace.
// Script and style elements are dropped. Input that fails to parse is returned
// with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return CollapseWhitespace(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CollapseWhitespace(fragment)
	}
	doc.Find("script, style, noscript").Remove()

	// Keep block boundaries as spaces so words from adjacent paragraphs do not merge.
	doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return CollapseWhitespace(doc.Text())
}

// CollapseWhitespace trims text and replaces every whitespace run with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
