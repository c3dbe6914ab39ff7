// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory holds per-session conversation history for the engine.
//
// History is process-local and bounded: each session keeps at most
// DefaultMaxMessages messages and silently drops the oldest when the cap
// is reached. Sessions never expire on their own; callers delete them
// explicitly.
package memory

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxMessages bounds each session's history. A "turn" appends two
// messages (user + assistant), so this keeps the last 15 exchanges.
const DefaultMaxMessages = 30

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the human.
	RoleUser Role = "user"

	// RoleAssistant marks a message produced by the engine.
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Manager is a thread-safe store of session histories.
//
// Thread Safety: all methods are safe for concurrent use. A single
// mutex guards the whole store; histories are small and operations are
// O(cap), so contention is not a concern at this scale.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string][]Message
	maxMessages int
}

// NewManager creates a Manager with the given per-session message cap.
// A non-positive cap falls back to DefaultMaxMessages.
func NewManager(maxMessages int) *Manager {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Manager{
		sessions:    make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

// Resolve returns the session id to use for a request. An empty id mints
// a fresh UUID; a non-empty id is adopted as-is (unknown ids simply start
// with empty history). The second return reports whether the id was
// newly generated.
func (m *Manager) Resolve(sessionID string) (string, bool) {
	if strings.TrimSpace(sessionID) != "" {
		return sessionID, false
	}
	return uuid.NewString(), true
}

// History returns a copy of the session's messages, oldest first. An
// unknown session yields an empty slice.
func (m *Manager) History(sessionID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.sessions[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// AppendTurn records one completed exchange: the user's question and the
// final assistant answer, in that order. If the addition would exceed
// the cap, the oldest messages are dropped first.
func (m *Manager) AppendTurn(sessionID, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.sessions[sessionID],
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: answer},
	)
	if over := len(msgs) - m.maxMessages; over > 0 {
		msgs = msgs[over:]
	}
	m.sessions[sessionID] = msgs
}

// Sessions returns the ids of all sessions with recorded history.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Delete removes a session's history. Deleting an unknown session is a
// no-op; the return reports whether anything was removed.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	return ok
}

// Render formats a history as alternating "User:"/"Assistant:" lines for
// prompt construction. Empty history renders as an empty string.
func Render(msgs []Message) string {
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case RoleUser:
			b.WriteString("User: ")
		case RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
