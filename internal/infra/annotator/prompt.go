package annotator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/utils/text"
)

const outputRules = `Respond with one JSON object and nothing else:
{"surface": true or false, "reply": "suggested reply, empty when surface is false", "reason": "why the item can be skipped, empty when surface is true"}`

const truncationSuffix = "\n[truncated]"

// systemPrompt combines the configured instruction with the output format.
func systemPrompt(instruction string) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultPrompt
	}
	return instruction + "\n\n" + outputRules
}

// userPrompt renders the item the model is asked about.
func userPrompt(item entity.FeedItem, body string, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", item.SourceName)
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	if item.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", item.Link)
	}
	if !item.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", item.PublishedAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")
	b.WriteString(text.Truncate(strings.TrimSpace(body), maxChars, truncationSuffix))
	return b.String()
}

type annotationJSON struct {
	Surface *bool  `json:"surface"`
	Reply   string `json:"reply"`
	Reason  string `json:"reason"`
}

// parseAnnotation turns a completion into an annotation.
//
// A JSON object (optionally inside a code fence or surrounded by prose) is
// decoded. Anything else is kept as a plain-text suggestion that surfaces the
// item. The boolean reports whether the structured format was honoured.
// An empty completion or a surfaced item with nothing to say yields nil.
func parseAnnotation(raw string) (*entity.Annotation, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, true
	}

	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		var parsed annotationJSON
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err == nil && parsed.Surface != nil {
			ann := &entity.Annotation{
				ShouldSurface: *parsed.Surface,
				Text:          strings.TrimSpace(parsed.Reply),
				Reason:        strings.TrimSpace(parsed.Reason),
			}
			if ann.ShouldSurface && ann.Text == "" {
				return nil, true
			}
			if !ann.ShouldSurface {
				ann.Text = ""
			}
			return ann, true
		}
	}

	return &entity.Annotation{ShouldSurface: true, Text: stripFence(trimmed)}, false
}

// stripFence removes a surrounding markdown code fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
