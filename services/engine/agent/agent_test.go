// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codescout/services/engine/agent/tools"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/llm"
)

// recorder captures emitted loop transitions in order.
type recorder struct {
	entries []string
}

func (r *recorder) Thought(text string)            { r.entries = append(r.entries, "thought:"+text) }
func (r *recorder) ToolStart(tool, _ string)       { r.entries = append(r.entries, "start:"+tool) }
func (r *recorder) ToolResult(tool, result string) { r.entries = append(r.entries, "result:"+tool) }

func newTestRegistry(t *testing.T, oracle llm.Client) *tools.Registry {
	t.Helper()
	dataDir := t.TempDir()
	repoPath := filepath.Join(dataDir, "repos", "proj")
	require.NoError(t, os.MkdirAll(repoPath, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "app.py"),
		[]byte("def main():\n    pass\n"), 0640))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "vectorstores", "proj"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "graphs"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "graphs", "proj.json"),
		[]byte(`{"nodes":[],"edges":[]}`), 0640))

	ctx, err := project.Layout{DataDir: dataDir}.Resolve("proj")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(ctx.WorkspacePath, 0750))

	return tools.NewRegistry(tools.Deps{
		Project: ctx,
		Graph:   graph.NewService(nil),
		Oracle:  oracle,
	})
}

func TestRunImmediateFinalAnswer(t *testing.T) {
	oracle := llm.NewMock("Thought: This is simple.\nFinal Answer: main() does nothing.")
	a := New(oracle, newTestRegistry(t, oracle), nil, 0)
	rec := &recorder{}

	answer, err := a.Run(context.Background(), "What does main do?", "", rec)
	require.NoError(t, err)
	assert.Equal(t, "main() does nothing.", answer)
	assert.Equal(t, []string{"thought:This is simple."}, rec.entries)
}

func TestRunToolThenFinalAnswer(t *testing.T) {
	oracle := llm.NewMock(
		"Thought: I should read the file first.\nAction: read_file\nAction Input: {\"file_path\": \"app.py\"}",
		"Thought: I have seen the code.\nFinal Answer: main is a no-op.",
	)
	a := New(oracle, newTestRegistry(t, oracle), nil, 0)
	rec := &recorder{}

	answer, err := a.Run(context.Background(), "Describe main", "", rec)
	require.NoError(t, err)
	assert.Equal(t, "main is a no-op.", answer)

	// Thought precedes the action it motivated; start precedes result.
	assert.Equal(t, []string{
		"thought:I should read the file first.",
		"start:read_file",
		"result:read_file",
		"thought:I have seen the code.",
	}, rec.entries)

	// The second prompt must carry the observation.
	require.Len(t, oracle.Prompts, 2)
	assert.Contains(t, oracle.Prompts[1], "Observation: def main():")
}

func TestRunToolErrorBecomesObservation(t *testing.T) {
	oracle := llm.NewMock(
		"Thought: Read it.\nAction: read_file\nAction Input: {\"file_path\": \"nope.py\"}",
		"Final Answer: The file does not exist.",
	)
	a := New(oracle, newTestRegistry(t, oracle), nil, 0)

	answer, err := a.Run(context.Background(), "Read nope.py", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "The file does not exist.", answer)
	assert.Contains(t, oracle.Prompts[1], "Observation: Error")
}

func TestRunUnknownToolSelfCorrects(t *testing.T) {
	oracle := llm.NewMock(
		"Thought: Try something odd.\nAction: teleport\nAction Input: {}",
		"Final Answer: done.",
	)
	a := New(oracle, newTestRegistry(t, oracle), nil, 0)

	_, err := a.Run(context.Background(), "q", "", nil)
	require.NoError(t, err)
	assert.Contains(t, oracle.Prompts[1], "Unknown tool 'teleport'")
}

func TestRunMaxStepsExhausted(t *testing.T) {
	// The oracle never finishes; the fallback response keeps proposing
	// the same tool call.
	oracle := &llm.Mock{
		Fallback: "Thought: again\nAction: list_files\nAction Input: {}",
	}
	a := New(oracle, newTestRegistry(t, oracle), nil, 3)

	_, err := a.Run(context.Background(), "q", "", nil)
	assert.ErrorIs(t, err, ErrMaxSteps)
	assert.Equal(t, 3, oracle.Calls())
}

func TestRunUnstructuredOutputIsFinal(t *testing.T) {
	oracle := llm.NewMock("main simply returns None.")
	a := New(oracle, newTestRegistry(t, oracle), nil, 0)

	answer, err := a.Run(context.Background(), "q", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "main simply returns None.", answer)
}

func TestRunHistoryInPrompt(t *testing.T) {
	oracle := llm.NewMock("Final Answer: ok")
	a := New(oracle, newTestRegistry(t, oracle), nil, 0)

	_, err := a.Run(context.Background(), "and then?", "User: hello\nAssistant: hi\n", nil)
	require.NoError(t, err)
	assert.Contains(t, oracle.Prompts[0], "Previous conversation:")
	assert.Contains(t, oracle.Prompts[0], "User: hello")
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want decision
	}{
		{
			name: "tool call",
			raw:  "Thought: look around\nAction: list_files\nAction Input: {\"directory_path\": \".\"}",
			want: decision{Thought: "look around", Action: "list_files",
				ActionInput: `{"directory_path": "."}`},
		},
		{
			name: "final answer",
			raw:  "Thought: done\nFinal Answer: it works",
			want: decision{Thought: "done", FinalAnswer: "it works", IsFinal: true},
		},
		{
			name: "hallucinated observation is cut",
			raw:  "Thought: t\nAction: read_file\nAction Input: {\"file_path\": \"a.py\"}\nObservation: fake",
			want: decision{Thought: "t", Action: "read_file",
				ActionInput: `{"file_path": "a.py"}`},
		},
		{
			name: "final answer wins over earlier action",
			raw:  "Action: read_file\nAction Input: {}\nFinal Answer: skip the tool",
			want: decision{FinalAnswer: "skip the tool", IsFinal: true,
				Thought: "Action: read_file\nAction Input: {}"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDecision(tt.raw))
		})
	}
}
