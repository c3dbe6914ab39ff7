// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine answers questions about indexed repositories.
//
// One query flows resolve -> route -> execute -> persist: the project
// context is resolved, the router picks RAG or the agent loop, the
// chosen path streams typed events into the caller's Sink, and the
// completed turn is written to session memory. Every stream terminates
// with an "end" event no matter how the query went.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/pkg/metrics"
	"github.com/AleutianAI/codescout/services/engine/agent"
	"github.com/AleutianAI/codescout/services/engine/agent/tools"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/memory"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/engine/rag"
	"github.com/AleutianAI/codescout/services/engine/router"
	"github.com/AleutianAI/codescout/services/llm"
)

// Deps carries everything a query needs. All fields except Logger and
// MaxAgentSteps are required.
type Deps struct {
	Layout        project.Layout
	Memory        *memory.Manager
	Router        *router.Router
	RAG           *rag.Engine
	Graphs        *graph.Service
	Oracle        llm.Client
	Logger        *logging.Logger
	MaxAgentSteps int
}

// Engine executes streamed queries against indexed projects.
//
// Thread Safety: safe for concurrent use; per-query state is local to
// each Query call.
type Engine struct {
	layout   project.Layout
	memory   *memory.Manager
	router   *router.Router
	rag      *rag.Engine
	graphs   *graph.Service
	oracle   llm.Client
	logger   *logging.Logger
	maxSteps int
}

// New creates an Engine from its dependencies. A nil Logger falls back
// to the default.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		layout:   deps.Layout,
		memory:   deps.Memory,
		router:   deps.Router,
		rag:      deps.RAG,
		graphs:   deps.Graphs,
		oracle:   deps.Oracle,
		logger:   logger,
		maxSteps: deps.MaxAgentSteps,
	}
}

// QueryRequest is one question against one indexed project. An empty
// SessionID starts a fresh conversation.
type QueryRequest struct {
	ProjectID string `json:"project_id"`
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// Query answers one question, streaming events into sink.
//
// # Description
//
// The session id is resolved first (minted if empty) so that every
// event, including failures, can carry it. The router then commits the
// question to exactly one path: RAG streams answer chunks as the model
// produces them; the agent path streams its reasoning trace and
// delivers the final answer as a single chunk. The completed turn is
// recorded in session memory only after the answer is fully produced;
// a failed or abandoned query leaves history untouched.
//
// # Outputs
//
//   - The session id in use, always.
//   - A nil error when an answer was streamed and persisted; otherwise
//     the underlying failure, which was also reported to the sink as an
//     "error" event before the terminal "end".
//
// If sink.Send fails the client is considered gone: production is
// cancelled and nothing further is sent.
func (e *Engine) Query(ctx context.Context, req QueryRequest, sink Sink) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionID, minted := e.memory.Resolve(req.SessionID)
	em := &emitter{sink: sink, cancel: cancel, sessionID: sessionID}
	defer em.end()

	e.logger.Info("query received",
		"project_id", req.ProjectID, "session_id", sessionID, "new_session", minted)

	pctx, err := e.layout.Resolve(req.ProjectID)
	if err != nil {
		em.fail(fmt.Sprintf("Project '%s' is not available: %v", req.ProjectID, err))
		return sessionID, err
	}

	history := memory.Render(e.memory.History(sessionID))

	route, err := e.router.Classify(ctx, req.Question, history)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(classifyLabel(err)).Inc()
		em.fail(classifyMessage(err))
		return sessionID, err
	}
	metrics.QueriesTotal.WithLabelValues(strings.ToLower(string(route))).Inc()

	var answer string
	switch route {
	case router.RouteRAG:
		answer, err = e.rag.Answer(ctx, req.ProjectID, req.Question, history,
			func(token string) { em.chunk(token) })
	case router.RouteAgent:
		answer, err = e.runAgent(ctx, pctx, req.Question, history, em)
	default:
		err = fmt.Errorf("unhandled route %q", route)
	}
	if err == nil {
		// A cancelled context means the consumer left mid-stream; the
		// turn never fully reached them, so it is not persisted.
		err = ctx.Err()
	}
	if err != nil {
		e.logger.Warn("query failed",
			"project_id", req.ProjectID, "route", string(route), "error", err)
		em.fail(failureMessage(err))
		return sessionID, err
	}

	e.memory.AppendTurn(sessionID, req.Question, answer)
	return sessionID, nil
}

// runAgent assembles the project-scoped toolset and drives the
// reasoning loop, relaying its trace into the stream. The final answer
// goes out as one chunk.
func (e *Engine) runAgent(ctx context.Context, pctx *project.Context,
	question, history string, em *emitter) (string, error) {

	registry := tools.NewRegistry(tools.Deps{
		Project: pctx,
		Graph:   e.graphs,
		Oracle:  e.oracle,
		Logger:  e.logger,
	})
	a := agent.New(e.oracle, registry, e.logger, e.maxSteps)

	answer, err := a.Run(ctx, question, history, streamEvents{em})
	if err != nil {
		return "", err
	}
	em.chunk(answer)
	return answer, nil
}

// classifyLabel maps a routing failure to its metrics label: a bad
// verdict counts as unroutable, anything else as a transport error.
func classifyLabel(err error) string {
	if errors.Is(err, router.ErrUnroutable) {
		return "unroutable"
	}
	return "error"
}

func classifyMessage(err error) string {
	if errors.Is(err, router.ErrUnroutable) {
		return "I could not work out how to approach that question. Try rephrasing it."
	}
	return "The question could not be routed: " + err.Error()
}

func failureMessage(err error) string {
	if errors.Is(err, agent.ErrMaxSteps) {
		return "The investigation ran out of reasoning steps before reaching an answer. Try a narrower question."
	}
	return "The query failed: " + err.Error()
}

// emitter serializes sends to one sink and tracks whether the consumer
// is still there.
type emitter struct {
	sink      Sink
	cancel    context.CancelFunc
	sessionID string

	mu   sync.Mutex
	dead bool
}

func (em *emitter) emit(ev Event) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.dead {
		return
	}
	ev.SessionID = em.sessionID
	if err := em.sink.Send(ev); err != nil {
		em.dead = true
		em.cancel()
	}
}

func (em *emitter) chunk(text string) {
	ev := newEvent(EventChunk)
	ev.Content = text
	em.emit(ev)
}

func (em *emitter) fail(message string) {
	ev := newEvent(EventError)
	ev.Content = message
	em.emit(ev)
}

func (em *emitter) end() {
	em.emit(newEvent(EventEnd))
}

// streamEvents adapts the agent's trace callbacks onto the event
// stream. Tool observations can be huge; only a preview goes out.
type streamEvents struct {
	em *emitter
}

var _ agent.Events = streamEvents{}

func (s streamEvents) Thought(text string) {
	ev := newEvent(EventThought)
	ev.Content = text
	s.em.emit(ev)
}

func (s streamEvents) ToolStart(tool, input string) {
	ev := newEvent(EventToolStart)
	ev.ToolName = tool
	ev.Content = input
	s.em.emit(ev)
}

func (s streamEvents) ToolResult(tool, result string) {
	ev := newEvent(EventToolResult)
	ev.ToolName = tool
	ev.Content = truncatePreview(result)
	s.em.emit(ev)
}
