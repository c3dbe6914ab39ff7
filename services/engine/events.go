// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates stream events.
type EventType string

const (
	// EventThought carries one agent reasoning step.
	EventThought EventType = "agent_thought"

	// EventToolStart announces a tool invocation (name + input).
	EventToolStart EventType = "tool_start"

	// EventToolResult carries a truncated preview of a tool's
	// observation.
	EventToolResult EventType = "tool_result"

	// EventChunk carries one fragment of answer text. The final answer
	// arrives as one or more chunks in generation order.
	EventChunk EventType = "chunk"

	// EventError reports a recoverable failure. The stream still ends
	// with EventEnd.
	EventError EventType = "error"

	// EventEnd terminates every stream, success or not. Nothing
	// follows it.
	EventEnd EventType = "end"
)

// ToolResultPreviewLimit caps the observation preview, in runes.
const ToolResultPreviewLimit = 500

// Event is one element of a query's ordered stream. Events serialize
// to JSON on the wire; consumers dispatch on Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// Sink receives a query's events in emission order. A Send error means
// the consumer is gone; the engine stops producing.
type Sink interface {
	Send(event Event) error
}

func newEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
	}
}

// truncatePreview caps a tool observation at the preview limit without
// splitting a rune.
func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= ToolResultPreviewLimit {
		return s
	}
	return string(runes[:ToolResultPreviewLimit]) + "…"
}
