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
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codescout/services/engine"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/memory"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/engine/rag"
	"github.com/AleutianAI/codescout/services/engine/router"
	"github.com/AleutianAI/codescout/services/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRetriever struct {
	chunks []rag.Chunk
}

func (s *stubRetriever) Retrieve(context.Context, string, string, int) ([]rag.Chunk, error) {
	return s.chunks, nil
}

// newQueryEngine wires an engine over a temp data dir with one indexed
// project and scripted oracles.
func newQueryEngine(t *testing.T, routerVerdict, answer string) *engine.Engine {
	t.Helper()
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "proj"), 0750))
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "repos", "proj", "app.py"),
		[]byte("def main():\n    pass\n"), 0640))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "vectorstores", "proj"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "graphs"), 0750))
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "graphs", "proj.json"),
		[]byte(`{"nodes":[],"edges":[]}`), 0640))

	return engine.New(engine.Deps{
		Layout: project.Layout{DataDir: dataDir},
		Memory: memory.NewManager(0),
		Router: router.New(llm.NewMock(routerVerdict), nil),
		RAG: rag.NewEngine(
			&stubRetriever{chunks: []rag.Chunk{{Content: "def main(): pass", FilePath: "app.py"}}},
			llm.NewMock(answer), nil, 0),
		Graphs: graph.NewService(nil),
		Oracle: llm.NewMock(),
	})
}

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestHandleQueryValidation(t *testing.T) {
	r := gin.New()
	r.POST("/v1/query", HandleQuery(newQueryEngine(t, `{"route": "RAG"}`, "x"), nil))

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing question", `{"project_id": "proj"}`},
		{"missing project", `{"question": "q"}`},
		{"malformed json", `{"question": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleQueryStreamsSSE(t *testing.T) {
	r := gin.New()
	r.POST("/v1/query", HandleQuery(newQueryEngine(t, `{"route": "RAG"}`, "main does nothing"), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query",
		strings.NewReader(`{"question": "What does main do?", "project_id": "proj"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: chunk\n")
	assert.Contains(t, body, "event: end\n")
	assert.Contains(t, body, `"session_id"`)

	// The terminal frame is the last one on the wire.
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	assert.Contains(t, frames[len(frames)-1], "event: end")
}

func TestHandleQueryStreamsErrorInBand(t *testing.T) {
	// A prose verdict is unroutable; the failure must arrive as SSE
	// events, not as an HTTP error status.
	r := gin.New()
	r.POST("/v1/query", HandleQuery(newQueryEngine(t, "no idea", ""), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query",
		strings.NewReader(`{"question": "q", "project_id": "proj"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, "event: end\n")
}

func TestHandleCreateRepoValidation(t *testing.T) {
	r := gin.New()
	r.POST("/v1/repos", HandleCreateRepo(nil))

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"blank url", `{"git_url": "  "}`},
		{"underivable name", `{"git_url": "?ref=main"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/repos", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleSessions(t *testing.T) {
	mem := memory.NewManager(0)
	mem.AppendTurn("sess-1", "q", "a")

	r := gin.New()
	r.GET("/v1/sessions", HandleListSessions(mem))
	r.DELETE("/v1/sessions/:sessionId", HandleDeleteSession(mem))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sess-1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess-1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "a cleared session is gone")
}

func TestHandleListProjects(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "alpha"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "beta"), 0750))

	r := gin.New()
	r.GET("/v1/projects", HandleListProjects(project.Layout{DataDir: dataDir}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alpha")
	assert.Contains(t, w.Body.String(), "beta")
}

func TestRemovePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifact")
	require.NoError(t, os.MkdirAll(dir, 0750))

	assert.Equal(t, "deleted", removePath(dir))
	assert.Equal(t, "absent", removePath(dir))
}
