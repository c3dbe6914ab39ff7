// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router classifies each question as a retrieval lookup or an
// agent investigation with a single constrained model call.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/llm"
)

// Route is the classifier's verdict.
type Route string

const (
	// RouteRAG answers "what is / where is / explain" questions from
	// retrieved context alone.
	RouteRAG Route = "RAG"

	// RouteAgent handles multi-step investigation and modification
	// requests via the tool-using agent.
	RouteAgent Route = "AGENT"
)

// ErrUnroutable indicates the classifier produced something other than
// the two permitted payloads. The caller surfaces this to the user; a
// silent default would hide misconfigured models.
var ErrUnroutable = errors.New("could not classify the question")

const routePrompt = `You are a query classifier for a code comprehension system.
Based on the question AND the conversation so far, classify the question
into exactly one route:

- "RAG": the question asks what code is, where it lives, or how it works,
  and can be answered by reading relevant source snippets.
- "AGENT": the question requires multi-step investigation, running tests,
  tracing callers, or modifying code, or refers back to something in the
  conversation so far.

Respond with ONLY a JSON object of this exact shape, nothing else:
{"route": "RAG"} or {"route": "AGENT"}

Conversation so far:
%s

Question: %s`

// routePayload is the only response shape the classifier may produce.
type routePayload struct {
	Route string `json:"route"`
}

// Router picks the execution path for a question.
//
// Thread Safety: safe for concurrent use.
type Router struct {
	oracle llm.Client
	logger *logging.Logger
}

// New creates a Router. A nil logger falls back to the default.
func New(oracle llm.Client, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{oracle: oracle, logger: logger}
}

// Classify runs the single routing call and parses the verdict. The
// rendered session history rides along so that follow-ups like
// "summarize that again" land on the agent path rather than a fresh
// retrieval.
//
// # Outputs
//
//   - RouteRAG or RouteAgent on success.
//   - ErrUnroutable (wrapped with the offending payload) when the model
//     response is anything else. Model transport errors pass through.
func (r *Router) Classify(ctx context.Context, question, history string) (Route, error) {
	if history == "" {
		history = "(empty)"
	}
	raw, err := r.oracle.Generate(ctx, fmt.Sprintf(routePrompt, history, question), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
	})
	if err != nil {
		return "", fmt.Errorf("routing call failed: %w", err)
	}

	route, err := parseRoute(raw)
	if err != nil {
		r.logger.Warn("router produced an unroutable payload", "payload", raw)
		return "", err
	}
	r.logger.Debug("question classified", "route", string(route))
	return route, nil
}

// parseRoute extracts the verdict from the model output. Markdown code
// fences are tolerated; any other decoration is not.
func parseRoute(raw string) (Route, error) {
	cleaned := stripFences(strings.TrimSpace(raw))

	var payload routePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnroutable, raw)
	}
	switch Route(payload.Route) {
	case RouteRAG:
		return RouteRAG, nil
	case RouteAgent:
		return RouteAgent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnroutable, raw)
	}
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		// Drop a language tag like "json" on the opening fence line.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
