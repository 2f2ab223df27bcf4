package fixtures

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// FeedEntry is one item in a generated feed. Empty fields are omitted from
// the document, which is how tests produce items without a GUID or date.
type FeedEntry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Published   time.Time
}

// Entries returns n entries whose publish times step back from newest.
func Entries(prefix string, n int, newest time.Time, step time.Duration) []FeedEntry {
	out := make([]FeedEntry, n)
	for i := range out {
		out[i] = FeedEntry{
			GUID:        fmt.Sprintf("%s-%d", prefix, i),
			Title:       fmt.Sprintf("%s post %d", prefix, i),
			Link:        fmt.Sprintf("https://%s.example/posts/%d", prefix, i),
			Description: fmt.Sprintf("<p>Summary of %s post %d</p>", prefix, i),
			Published:   newest.Add(-time.Duration(i) * step),
		}
	}
	return out
}

// RSS renders an RSS 2.0 document.
func RSS(title string, entries ...FeedEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
`)
	fmt.Fprintf(&b, "<title>%s</title>\n<link>https://example.com</link>\n", html.EscapeString(title))
	for _, e := range entries {
		b.WriteString("<item>\n")
		writeElem(&b, "title", e.Title)
		writeElem(&b, "link", e.Link)
		writeElem(&b, "guid", e.GUID)
		writeElem(&b, "description", e.Description)
		writeElem(&b, "content:encoded", e.Content)
		if !e.Published.IsZero() {
			writeElem(&b, "pubDate", e.Published.Format(time.RFC1123Z))
		}
		b.WriteString("</item>\n")
	}
	b.WriteString("</channel>\n</rss>\n")
	return b.String()
}

// Atom renders an Atom 1.0 document. Published becomes <updated>.
func Atom(title string, entries ...FeedEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
`)
	writeElem(&b, "title", title)
	for _, e := range entries {
		b.WriteString("<entry>\n")
		writeElem(&b, "title", e.Title)
		if e.Link != "" {
			fmt.Fprintf(&b, "<link href=%q/>\n", e.Link)
		}
		writeElem(&b, "id", e.GUID)
		writeElem(&b, "summary", e.Description)
		writeElem(&b, "content", e.Content)
		if !e.Published.IsZero() {
			writeElem(&b, "updated", e.Published.Format(time.RFC3339))
		}
		b.WriteString("</entry>\n")
	}
	b.WriteString("</feed>\n")
	return b.String()
}

func writeElem(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<%s>%s</%s>\n", name, html.EscapeString(value), name)
}
