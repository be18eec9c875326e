// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
)

// MarkdownExporter renders a conversation as a Markdown document with
// optional front matter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders conv. The directive becomes a block quote and each
// message gets its own third-level heading.
func (e *MarkdownExporter) Export(conv *storage.Archived) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}

	var doc mdDoc
	if e.options.IncludeMetadata {
		doc.frontMatter(conv)
	}
	doc.heading(1, escapeHeading(conv.Summary))

	if d := strings.TrimSpace(conv.Directive); d != "" {
		doc.heading(2, "System")
		doc.quote(d)
	}

	doc.heading(2, "Conversation")
	for i, msg := range conv.Messages {
		if i > 0 {
			doc.rule()
		}
		doc.heading(3, roleHeading(msg.Role))
		doc.para(strings.TrimSpace(msg.Content))
	}

	doc.rule()
	doc.line("*Exported from streamchat on " + e.options.now().Format("January 2, 2006 at 3:04 PM") + "*")
	return doc.Bytes(), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// mdDoc accumulates blocks separated by blank lines.
type mdDoc struct {
	bytes.Buffer
}

func (d *mdDoc) line(s string) {
	d.WriteString(s)
	d.WriteByte('\n')
}

func (d *mdDoc) para(s string) {
	d.line(s)
	d.WriteByte('\n')
}

func (d *mdDoc) heading(level int, text string) {
	d.para(strings.Repeat("#", level) + " " + text)
}

func (d *mdDoc) quote(text string) {
	for _, l := range strings.Split(text, "\n") {
		d.line("> " + l)
	}
	d.WriteByte('\n')
}

func (d *mdDoc) rule() {
	d.para("---")
}

func (d *mdDoc) frontMatter(conv *storage.Archived) {
	d.line("---")
	d.line("title: " + yamlScalar(conv.Summary))
	if !conv.CreatedAt.IsZero() {
		d.line("date: " + conv.CreatedAt.Format(time.RFC3339))
	}
	d.line("messages: " + strconv.Itoa(len(conv.Messages)))
	d.line("generator: streamchat")
	d.para("---")
}

func roleHeading(role model.Role) string {
	if role == "" {
		return "Unknown"
	}
	return "[" + role.DisplayName() + "]"
}

var headingEscaper = strings.NewReplacer(
	"#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
)

func escapeHeading(s string) string {
	return headingEscaper.Replace(s)
}

// yamlScalar leaves plain words bare and double-quotes anything YAML
// could misread.
func yamlScalar(s string) string {
	if s == "" || strings.TrimSpace(s) != s || strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") {
		return strconv.Quote(s)
	}
	return s
}
