// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the bounded tool-using reasoning loop.
//
// The loop alternates THINK (ask the oracle), ACT (dispatch a tool),
// and OBSERVE (feed the tool result back) until the oracle produces a
// final answer (FINISH) or the step cap is reached. Tools never throw
// out of the loop: their failures are observation strings the oracle
// reads on the next turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/pkg/metrics"
	"github.com/AleutianAI/codescout/services/engine/agent/tools"
	"github.com/AleutianAI/codescout/services/llm"
)

// DefaultMaxSteps caps reasoning iterations per query.
const DefaultMaxSteps = 15

// ErrMaxSteps indicates the loop hit its iteration cap without the
// oracle producing a final answer.
var ErrMaxSteps = errors.New("agent exceeded the maximum number of reasoning steps")

// Events receives loop transitions as they happen, in order: each
// thought before the action it motivated, each tool start before its
// result.
type Events interface {
	Thought(text string)
	ToolStart(tool, input string)
	ToolResult(tool, result string)
}

// nopEvents lets callers run the loop without streaming.
type nopEvents struct{}

func (nopEvents) Thought(string)            {}
func (nopEvents) ToolStart(string, string)  {}
func (nopEvents) ToolResult(string, string) {}

// Agent drives one project's toolset against the oracle.
//
// Thread Safety: safe for concurrent use; per-run state lives on the
// stack.
type Agent struct {
	oracle   llm.Client
	registry *tools.Registry
	logger   *logging.Logger
	maxSteps int
}

// New creates an Agent. maxSteps <= 0 falls back to DefaultMaxSteps; a
// nil logger falls back to the default.
func New(oracle llm.Client, registry *tools.Registry, logger *logging.Logger, maxSteps int) *Agent {
	if logger == nil {
		logger = logging.Default()
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Agent{oracle: oracle, registry: registry, logger: logger, maxSteps: maxSteps}
}

// Run executes the reasoning loop for one question.
//
// # Outputs
//
//   - The final answer text on FINISH.
//   - ErrMaxSteps when the cap is exhausted; oracle transport errors
//     pass through wrapped. Partial progress is not returned.
func (a *Agent) Run(ctx context.Context, question, history string, events Events) (string, error) {
	if events == nil {
		events = nopEvents{}
	}

	var scratchpad strings.Builder
	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		prompt := a.buildPrompt(question, history, scratchpad.String())
		output, err := a.oracle.Generate(ctx, prompt, llm.GenerationParams{
			Stop: []string{markerObservation},
		})
		if err != nil {
			return "", fmt.Errorf("reasoning step %d failed: %w", step, err)
		}

		d := parseDecision(output)
		if d.Thought != "" {
			events.Thought(d.Thought)
		}

		if d.IsFinal {
			a.logger.Info("agent finished", "steps", step)
			metrics.AgentStepsPerQuery.Observe(float64(step))
			return d.FinalAnswer, nil
		}

		events.ToolStart(d.Action, d.ActionInput)
		observation := a.registry.Dispatch(ctx, d.Action, d.ActionInput)
		events.ToolResult(d.Action, observation)

		scratchpad.WriteString(markerThought + " " + d.Thought + "\n")
		scratchpad.WriteString(markerAction + " " + d.Action + "\n")
		scratchpad.WriteString(markerActionInput + " " + d.ActionInput + "\n")
		scratchpad.WriteString(markerObservation + " " + observation + "\n")
	}

	a.logger.Warn("agent hit the step cap", "max_steps", a.maxSteps)
	metrics.AgentStepsPerQuery.Observe(float64(a.maxSteps))
	return "", ErrMaxSteps
}

func (a *Agent) buildPrompt(question, history, scratchpad string) string {
	var b strings.Builder
	b.WriteString("You are a code investigation agent working inside one indexed repository. ")
	b.WriteString("Answer the user's request by reasoning step by step and using tools.\n\n")
	b.WriteString("You have access to the following tools:\n\n")
	b.WriteString(a.registry.Describe())
	b.WriteString("\nUse this exact format:\n\n")
	b.WriteString("Thought: what you are thinking about doing next\n")
	b.WriteString("Action: the tool to use, one of [" + strings.Join(a.registry.Names(), ", ") + "]\n")
	b.WriteString("Action Input: the input for the tool, as a JSON object\n")
	b.WriteString("Observation: the tool's result\n")
	b.WriteString("(Thought/Action/Action Input/Observation can repeat)\n")
	b.WriteString("Thought: I now know the final answer\n")
	b.WriteString("Final Answer: the complete answer to the user's request\n\n")
	if history != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString("Question: " + question + "\n")
	if scratchpad != "" {
		b.WriteString(scratchpad)
	}
	b.WriteString(markerThought)
	return b.String()
}
