// Package fixtures provides reusable feed and article documents for tests.
// Fetcher, scraper and annotator tests share them so thresholds and size
// limits are exercised against the same content.
package fixtures

import (
	"fmt"
	"html"
	"strings"
)

var articleSentences = []string{
	"The release notes list three changes to the scheduler and one to the garbage collector.",
	"Benchmarks on the build farm show a modest improvement in tail latency.",
	"Most of the work went into making the new API safe for concurrent callers.",
	"Existing programs keep working without changes, although some deprecated flags now log a warning.",
	"The maintainers thank everyone who tested the release candidates and filed issues.",
	"A follow-up post will cover the migration path for plugin authors.",
	"Several long-standing bugs around timeouts and retries were fixed along the way.",
	"Documentation for every new option is available on the project site.",
}

// ArticleBody returns plain English prose of at least length characters.
// The text never ends mid-sentence, so it may overshoot by one sentence.
func ArticleBody(length int) string {
	var b strings.Builder
	for i := 0; b.Len() < length; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(articleSentences[i%len(articleSentences)])
	}
	return b.String()
}

// ShortArticle is below the default content-fetch threshold.
func ShortArticle() string { return ArticleBody(300) }

// LongArticle is well above the default content-fetch threshold and the
// annotator's default input cap.
func LongArticle() string { return ArticleBody(12000) }

// ArticleHTML wraps body in a page with navigation and footer noise so that
// readability extraction has something to strip. Paragraph breaks are
// inserted every few sentences.
func ArticleHTML(title, body string) string {
	var paragraphs strings.Builder
	sentences := strings.SplitAfter(body, ". ")
	for i := 0; i < len(sentences); i += 3 {
		end := min(i+3, len(sentences))
		fmt.Fprintf(&paragraphs, "<p>%s</p>\n", html.EscapeString(strings.Join(sentences[i:end], "")))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%[1]s</title></head>
<body>
<nav><a href="/">Home</a> <a href="/archive">Archive</a> <a href="/about">About</a></nav>
<article>
<h1>%[1]s</h1>
%[2]s</article>
<footer>Copyright Example Blog. All rights reserved.</footer>
</body>
</html>`, html.EscapeString(title), paragraphs.String())
}
