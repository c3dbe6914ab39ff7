// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the agent's closed toolset. Every tool is
// scoped to one project and returns observations as strings; tool
// failures are error strings, never Go errors, because the consumer is
// a language model reading observation text.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/pkg/metrics"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/llm"
)

// Tool is one capability the agent can invoke.
type Tool interface {
	// Name is the identifier the model uses in its Action line.
	Name() string

	// Description tells the model what the tool does and what input it
	// expects. It is rendered verbatim into the agent prompt.
	Description() string

	// Execute runs the tool. The raw input string comes straight from
	// the model; tools parse it tolerantly. The return value is always
	// an observation string, including for failures.
	Execute(ctx context.Context, input string) string
}

// Deps carries everything the standard toolset needs.
type Deps struct {
	Project *project.Context
	Graph   *graph.Service
	Oracle  llm.Client
	Logger  *logging.Logger
}

// Registry is the closed set of tools for one project context.
//
// Thread Safety: read-only after construction; safe for concurrent use.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds the standard toolset for a project.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	r := &Registry{tools: make(map[string]Tool)}
	runner := newRunTestsTool(deps)
	generator := newGenerateTestsTool(deps)

	for _, t := range []Tool{
		newReadFileTool(deps),
		newListFilesTool(deps),
		newQueryCodeGraphTool(deps),
		newCreateWorkspaceFileTool(deps),
		newUpdateWorkspaceFileTool(deps),
		newListWorkspaceFilesTool(deps),
		generator,
		runner,
		newRefactorCodeTool(deps),
		newFixBugTool(deps, generator, runner),
	} {
		r.register(t)
	}
	return r
}

func (r *Registry) register(t Tool) {
	r.order = append(r.order, t.Name())
	r.tools[t.Name()] = t
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Describe renders the "name: description" list for the agent prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.order {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(r.tools[name].Description())
		b.WriteString("\n")
	}
	return b.String()
}

// Dispatch executes the named tool. An unknown name yields an error
// observation listing the valid tools, so the model can self-correct.
func (r *Registry) Dispatch(ctx context.Context, name, input string) string {
	t, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		metrics.ToolExecutionsTotal.WithLabelValues("unknown", "error").Inc()
		return fmt.Sprintf("Error: Unknown tool '%s'. Available tools: %s",
			name, strings.Join(r.order, ", "))
	}

	result := t.Execute(ctx, input)
	outcome := "ok"
	if strings.HasPrefix(result, "Error") {
		outcome = "error"
	}
	metrics.ToolExecutionsTotal.WithLabelValues(t.Name(), outcome).Inc()
	return result
}
