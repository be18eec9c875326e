// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides key-value persistence for streamchat.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// ARCHIVED CONVERSATION
// =============================================================================

// Archived is a conversation saved with /save or before /clear.
type Archived struct {
	ID        string          `json:"id"`
	Summary   string          `json:"summary"`
	Directive string          `json:"directive,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Messages  []model.Message `json:"messages"`
}

// ArchiveMeta is the listing view of an archived conversation.
type ArchiveMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Conversation converts the archive back into a live conversation.
func (a *Archived) Conversation() *model.Conversation {
	conv := model.NewConversation()
	conv.Directive = a.Directive
	conv.Append(a.Messages...)
	return conv
}

// ErrArchiveNotFound is returned when an archived conversation doesn't exist.
var ErrArchiveNotFound = errors.New("archived conversation not found")

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive stores whole conversations as one JSON file each.
type Archive struct {
	// BaseDir default: ~/.streamchat/conversations/
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited)
	MaxConversations int
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Archive{BaseDir: dir, MaxConversations: 100}, nil
}

// Save writes conv and returns its ID. An empty conversation is not saved.
func (a *Archive) Save(conv *model.Conversation) (string, error) {
	if conv == nil || conv.IsEmpty() {
		return "", nil
	}
	entry := Archived{
		ID:        "conv_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16],
		Summary:   summarize(conv.Messages),
		Directive: conv.Directive,
		CreatedAt: time.Now(),
		Messages:  conv.History(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(a.filePath(entry.ID), data, 0600); err != nil {
		return "", err
	}

	if a.MaxConversations > 0 {
		a.enforceLimit()
	}
	return entry.ID, nil
}

// Load reads an archived conversation by ID or by list index ("0" is the
// most recent).
func (a *Archive) Load(ref string) (*Archived, error) {
	if idx, err := strconv.Atoi(ref); err == nil {
		metas, err := a.List()
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(metas) {
			return nil, ErrArchiveNotFound
		}
		ref = metas[idx].ID
	}

	data, err := os.ReadFile(a.filePath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}

	var entry Archived
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns all archived conversations, most recent first. Corrupt
// files are skipped.
func (a *Archive) List() ([]ArchiveMeta, error) {
	entries, err := os.ReadDir(a.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArchiveMeta{}, nil
		}
		return nil, err
	}

	metas := make([]ArchiveMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.BaseDir, e.Name()))
		if err != nil {
			continue
		}
		var entry Archived
		if err := json.Unmarshal(data, &entry); err != nil || entry.ID == "" {
			continue
		}
		metas = append(metas, ArchiveMeta{
			ID:           entry.ID,
			Summary:      entry.Summary,
			CreatedAt:    entry.CreatedAt,
			MessageCount: len(entry.Messages),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Delete removes an archived conversation.
func (a *Archive) Delete(id string) error {
	if err := os.Remove(a.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrArchiveNotFound
		}
		return err
	}
	return nil
}

func (a *Archive) enforceLimit() {
	metas, err := a.List()
	if err != nil || len(metas) <= a.MaxConversations {
		return
	}
	// List is newest first
	for _, m := range metas[a.MaxConversations:] {
		a.Delete(m.ID)
	}
}

func (a *Archive) filePath(id string) string {
	return filepath.Join(a.BaseDir, filepath.Base(id)+".json")
}

// summarize uses the first user message, flattened to one line.
func summarize(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser && m.Content != "" {
			return util.TruncateRunes(util.OneLine(m.Content), 50)
		}
	}
	return "New conversation"
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatArchiveList renders metas as a plain table for the terminal.
func FormatArchiveList(metas []ArchiveMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("#", 4) + util.PadRight("ID", 22) + util.PadRight("Saved", 18) + util.PadRight("Msgs", 6) + "Summary\n")
	for i, m := range metas {
		sb.WriteString(util.PadRight(strconv.Itoa(i), 4))
		sb.WriteString(util.PadRight(m.ID, 22))
		sb.WriteString(util.PadRight(m.CreatedAt.Format("2006-01-02 15:04"), 18))
		sb.WriteString(util.PadRight(strconv.Itoa(m.MessageCount), 6))
		sb.WriteString(util.TruncateWidth(m.Summary, 40))
		sb.WriteString("\n")
	}
	return sb.String()
}
