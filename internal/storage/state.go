// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides key-value persistence for streamchat.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jeranaias/streamchat/internal/model"
)

// Keys shared with the web client's local storage layout.
const (
	KeyMessages  = "messageList"
	KeyDirective = "currentSystemRoleSettings"
	KeyPass      = "pass"
)

// =============================================================================
// CONVERSATION STATE
// =============================================================================

// LoadState rehydrates the conversation. Absent or malformed data yields an
// empty conversation; the directive is only read when a message list is
// stored. The returned conversation is never nil; err reports store
// failures only.
func LoadState(ctx context.Context, s Store) (*model.Conversation, error) {
	conv := model.NewConversation()

	raw, ok, err := s.Get(ctx, KeyMessages)
	if err != nil {
		return conv, fmt.Errorf("failed to load messages: %w", err)
	}
	if !ok || raw == "" {
		return conv, nil
	}

	var msgs []model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		log.Printf("[storage] ignoring malformed %s: %v", KeyMessages, err)
		return conv, nil
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			log.Printf("[storage] ignoring %s: message %d has role %q", KeyMessages, i, m.Role)
			return conv, nil
		}
	}
	conv.Append(msgs...)

	directive, ok, err := s.Get(ctx, KeyDirective)
	if err != nil {
		return conv, fmt.Errorf("failed to load directive: %w", err)
	}
	if ok {
		conv.Directive = directive
	}
	return conv, nil
}

// SaveState writes the message list and the directive under their keys.
func SaveState(ctx context.Context, s Store, conv *model.Conversation) error {
	if conv == nil {
		conv = model.NewConversation()
	}
	msgs := conv.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	if err := s.Set(ctx, KeyMessages, string(data)); err != nil {
		return err
	}
	return s.Set(ctx, KeyDirective, conv.Directive)
}

// =============================================================================
// CREDENTIAL
// =============================================================================

// LoadPass returns the stored credential, or "" when none is stored.
func LoadPass(ctx context.Context, s Store) (string, error) {
	v, _, err := s.Get(ctx, KeyPass)
	return v, err
}

// SavePass stores the credential. An empty pass removes it.
func SavePass(ctx context.Context, s Store, pass string) error {
	if pass == "" {
		return s.Delete(ctx, KeyPass)
	}
	return s.Set(ctx, KeyPass, pass)
}
