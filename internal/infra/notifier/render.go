package notifier

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/utils/text"
)

const (
	defaultExcerptLength = 600
	excerptSuffix        = "…"
)

// RenderOptions controls digest rendering.
type RenderOptions struct {
	// SubjectPrefix is prepended to the subject line, e.g. "[feed-digest]".
	SubjectPrefix string

	// ExcerptLength caps each entry's body excerpt in characters.
	ExcerptLength int
}

// RenderedDigest is a digest ready to hand to a mail provider.
type RenderedDigest struct {
	Subject string
	HTML    string
	Text    string
}

type entryView struct {
	Title      string
	Link       string
	Source     string
	Published  string
	Excerpt    string
	Annotation string
	SkipReason string
}

type digestView struct {
	ID        string
	Generated string
	Total     int
	Surfaced  []entryView
	Skipped   []entryView
}

var htmlDigest = htmltemplate.Must(htmltemplate.New("digest.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 720px;">
<p style="color:#666;">{{.Total}} new item{{if ne .Total 1}}s{{end}} · {{.Generated}}</p>
{{range .Surfaced}}
<div style="margin-bottom: 24px;">
  <h3 style="margin-bottom: 4px;"><a href="{{.Link}}">{{.Title}}</a></h3>
  <div style="color:#666; font-size: 13px;">{{.Source}} · {{.Published}}</div>
  {{if .Excerpt}}<p>{{.Excerpt}}</p>{{end}}
  {{if .Annotation}}<blockquote style="border-left: 3px solid #5865F2; margin: 0; padding-left: 12px;">{{.Annotation}}</blockquote>{{end}}
</div>
{{end}}
{{if .Skipped}}
<h4 style="color:#666;">Skipped ({{len .Skipped}})</h4>
<ul>
{{range .Skipped}}  <li><a href="{{.Link}}">{{.Title}}</a> <span style="color:#666;">({{.Source}}) {{.SkipReason}}</span></li>
{{end}}</ul>
{{end}}
<p style="color:#999; font-size: 11px;">digest {{.ID}}</p>
</body>
</html>
`))

var textDigest = texttemplate.Must(texttemplate.New("digest.txt").Parse(`{{.Total}} new item{{if ne .Total 1}}s{{end}} ({{.Generated}})
{{range .Surfaced}}
* {{.Title}}
  {{.Link}}
  {{.Source}} · {{.Published}}
{{- if .Excerpt}}

  {{.Excerpt}}
{{- end}}
{{- if .Annotation}}

  > {{.Annotation}}
{{- end}}
{{end}}
{{- if .Skipped}}
Skipped ({{len .Skipped}}):
{{range .Skipped}}- {{.Title}} ({{.Source}}) {{.SkipReason}}
  {{.Link}}
{{end}}
{{- end}}
--
digest {{.ID}}
`))

// RenderDigest renders the subject, HTML and plain-text bodies of a digest.
// Entries keep their digest order; skipped entries are listed after the rest
// without their annotation.
func RenderDigest(d *entity.Digest, opts RenderOptions) (*RenderedDigest, error) {
	view := buildDigestView(d, opts.ExcerptLength)

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlDigest.Execute(&htmlBuf, view); err != nil {
		return nil, fmt.Errorf("render html digest: %w", err)
	}
	if err := textDigest.Execute(&textBuf, view); err != nil {
		return nil, fmt.Errorf("render text digest: %w", err)
	}

	return &RenderedDigest{
		Subject: digestSubject(d, opts.SubjectPrefix),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

func digestSubject(d *entity.Digest, prefix string) string {
	n := len(d.Entries)
	noun := "items"
	if n == 1 {
		noun = "item"
	}
	subject := fmt.Sprintf("%d new %s", n, noun)

	if sources := distinctSources(d); len(sources) == 1 {
		subject += " from " + sources[0]
	} else if len(sources) > 1 {
		subject += fmt.Sprintf(" from %d feeds", len(sources))
	}

	if prefix = strings.TrimSpace(prefix); prefix != "" {
		subject = prefix + " " + subject
	}
	return subject
}

func distinctSources(d *entity.Digest) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range d.Entries {
		name := e.Item.SourceName
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func buildDigestView(d *entity.Digest, excerptLength int) digestView {
	if excerptLength <= 0 {
		excerptLength = defaultExcerptLength
	}

	view := digestView{
		ID:        d.ID,
		Generated: d.GeneratedAt.UTC().Format(time.RFC1123),
		Total:     len(d.Entries),
	}
	for _, e := range d.Entries {
		ev := buildEntryView(e, excerptLength)
		if e.Skipped {
			view.Skipped = append(view.Skipped, ev)
		} else {
			view.Surfaced = append(view.Surfaced, ev)
		}
	}
	return view
}

func buildEntryView(e entity.DigestEntry, excerptLength int) entryView {
	title := strings.TrimSpace(e.Item.Title)
	if title == "" {
		title = e.Item.Link
	}

	ev := entryView{
		Title:   title,
		Link:    e.Item.Link,
		Source:  e.Item.SourceName,
		Excerpt: text.Truncate(text.StripHTML(e.Body), excerptLength, excerptSuffix),
	}
	if !e.Item.PublishedAt.IsZero() {
		ev.Published = e.Item.PublishedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	if e.Skipped {
		ev.SkipReason = e.SkipReason
		ev.Excerpt = ""
	} else if e.Annotation != nil {
		ev.Annotation = strings.TrimSpace(e.Annotation.Text)
	}
	return ev
}
