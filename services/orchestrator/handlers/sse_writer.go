// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/AleutianAI/codescout/services/engine"
)

// =============================================================================
// SSE Writer
// =============================================================================

// sseWriter streams engine events to an HTTP response in SSE format:
//
//	event: {type}
//	data: {json}
//
// Each event is flushed immediately so tokens reach the client as they
// are produced.
//
// # Thread Safety
//
// Thread-safe via mutex; the engine may emit from multiple callbacks.
//
// # Limitations
//
//   - Requires an http.Flusher-compatible ResponseWriter.
//   - Cannot be reused across requests.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

var _ engine.Sink = (*sseWriter)(nil)

// NewSSEWriter wraps a ResponseWriter for SSE streaming. The caller must
// set SSE headers first via SetSSEHeaders.
//
// # Outputs
//
//   - An error if the ResponseWriter does not support http.Flusher.
func NewSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// Send writes one event frame and flushes. A write error means the
// client disconnected; the engine stops producing on it.
func (w *sseWriter) Send(event engine.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// KeepAlive sends an SSE comment line. Comments are ignored by clients
// but reset load balancer idle timers during long tool runs.
func (w *sseWriter) KeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures the response for SSE streaming. Must be
// called before any body writes.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
