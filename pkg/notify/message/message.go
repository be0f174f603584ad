/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package message

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

// Emoji returns the marker used for the status in rich renderings
func (s Status) Emoji() string {
	switch s {
	case StatusSuccess:
		return "✅"
	case StatusFailure:
		return "❌"
	case StatusWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is one logical notification. Each channel renders it in the
// format its transport needs.
type Message struct {
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Body      string    `json:"body,omitempty"`
	Links     []Link    `json:"links,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func New(status Status, title string) *Message {
	return &Message{
		Title:     title,
		Status:    status,
		Links:     []Link{},
		Timestamp: time.Now(),
	}
}

// AddLink appends a link, skipping empty URLs
func (m *Message) AddLink(label, url string) *Message {
	if url != "" {
		m.Links = append(m.Links, Link{Label: label, URL: url})
	}
	return m
}

// PlainText renders the message without markup
func (m *Message) PlainText() string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteString("\n")
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(m.Body)
		b.WriteString("\n")
	}
	if len(m.Links) > 0 {
		b.WriteString("\n")
		for _, l := range m.Links {
			fmt.Fprintf(&b, "%s: %s\n", l.Label, l.URL)
		}
	}
	if !m.Timestamp.IsZero() {
		fmt.Fprintf(&b, "\n%s\n", m.Timestamp.Format(time.RFC3339))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`,
)

// EscapeMarkdown escapes the characters that open markdown entities so
// text shows up literally
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Markdown renders the message with a status emoji, bold title and
// [label](url) links. Title, body and labels are escaped.
func (m *Message) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", m.Status.Emoji(), EscapeMarkdown(m.Title))
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(EscapeMarkdown(m.Body))
		b.WriteString("\n")
	}
	if len(m.Links) > 0 {
		b.WriteString("\n")
		for _, l := range m.Links {
			fmt.Fprintf(&b, "[%s](%s)\n", EscapeMarkdown(l.Label), l.URL)
		}
	}
	if !m.Timestamp.IsZero() {
		fmt.Fprintf(&b, "\n_%s_\n", m.Timestamp.Format(time.RFC3339))
	}
	return b.String()
}

var htmlTemplate = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<h2>{{ .Emoji }} {{ .Title }}</h2>
{{- if .Body }}
<pre style="white-space: pre-wrap;">{{ .Body }}</pre>
{{- end }}
{{- if .Links }}
<ul>
{{- range .Links }}
<li><a href="{{ .URL }}">{{ .Label }}</a></li>
{{- end }}
</ul>
{{- end }}
{{- if .Time }}
<p><small>{{ .Time }}</small></p>
{{- end }}
</body>
</html>
`))

// HTML renders the message as an HTML document. All user supplied text
// is entity escaped.
func (m *Message) HTML() string {
	data := struct {
		Emoji string
		Title string
		Body  string
		Links []Link
		Time  string
	}{
		Emoji: m.Status.Emoji(),
		Title: m.Title,
		Body:  m.Body,
		Links: m.Links,
	}
	if !m.Timestamp.IsZero() {
		data.Time = m.Timestamp.Format(time.RFC3339)
	}
	var b bytes.Buffer
	if err := htmlTemplate.Execute(&b, data); err != nil {
		// The template is static, only a writer failure can land here
		return template.HTMLEscapeString(m.PlainText())
	}
	return b.String()
}
