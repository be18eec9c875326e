// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to Markdown or JSON files.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

// ErrEmptyConversation is returned when there is nothing to export.
var ErrEmptyConversation = errors.New("conversation has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format.
	Export(conv *storage.Archived) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is used when no explicit path is given (default: ".")
	OutputDir string

	// IncludeMetadata adds a front matter header.
	IncludeMetadata bool

	// Now overrides the clock stamped into the file. Used by tests.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// New returns the exporter for format ("md", "markdown" or "json").
func New(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (use md or json)", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// FromConversation wraps the live conversation so it can be exported
// without archiving it first.
func FromConversation(conv *model.Conversation, now time.Time) *storage.Archived {
	if conv == nil {
		return nil
	}
	return &storage.Archived{
		Summary:   summary(conv.Messages),
		Directive: conv.Directive,
		CreatedAt: now,
		Messages:  conv.History(),
	}
}

// ToFile exports conv to path. An empty path derives a file name from the
// summary inside opts.OutputDir. Returns the written path.
func ToFile(conv *storage.Archived, exporter Exporter, path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if conv == nil || len(conv.Messages) == 0 {
		return "", ErrEmptyConversation
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		dir := opts.OutputDir
		if dir == "" {
			dir = "."
		}
		name := fmt.Sprintf("conversation_%s_%s%s",
			sanitizeFilename(conv.Summary),
			opts.now().Format("20060102_150405"),
			exporter.FileExtension(),
		)
		path = filepath.Join(dir, name)
	}

	// RELIABILITY: Atomic write so an interrupted export never truncates an existing file
	if err := util.AtomicWriteFileWithDir(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Conversation exports the live conversation in format to path.
func Conversation(conv *model.Conversation, format, path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	exporter, err := New(format, opts)
	if err != nil {
		return "", err
	}
	return ToFile(FromConversation(conv, opts.now()), exporter, path, opts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func summary(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser && m.Content != "" {
			return util.TruncateRunes(util.OneLine(m.Content), 50)
		}
	}
	return "conversation"
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}
