// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/llm"
)

func fullRegistry(t *testing.T) *Registry {
	t.Helper()
	deps := newTestDeps(t)
	deps.Graph = graph.NewService(nil)
	deps.Oracle = llm.NewMock()
	return NewRegistry(deps)
}

func TestRegistryContainsFullToolset(t *testing.T) {
	r := fullRegistry(t)

	assert.Equal(t, []string{
		"read_file",
		"list_files",
		"query_code_graph",
		"create_file_in_workspace",
		"update_file_in_workspace",
		"list_workspace_files",
		"generate_tests",
		"run_tests",
		"refactor_code",
		"fix_bug",
	}, r.Names())
}

func TestRegistryDescribeListsEveryTool(t *testing.T) {
	r := fullRegistry(t)
	desc := r.Describe()
	for _, name := range r.Names() {
		assert.Contains(t, desc, name+": ")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := fullRegistry(t)

	out := r.Dispatch(context.Background(), "teleport", "{}")
	assert.Contains(t, out, "Unknown tool 'teleport'")
	assert.Contains(t, out, "read_file", "the observation lists valid tools")
}

func TestDispatchExecutesTool(t *testing.T) {
	r := fullRegistry(t)

	out := r.Dispatch(context.Background(), "list_files", "")
	assert.Contains(t, out, `"directories"`)

	// Tool errors come back as observations, not panics.
	out = r.Dispatch(context.Background(), "read_file", `{"file_path": "missing.py"}`)
	assert.Contains(t, out, "Error")
}

func TestDispatchTrimsToolName(t *testing.T) {
	r := fullRegistry(t)

	out := r.Dispatch(context.Background(), "  list_files \n", "")
	assert.Contains(t, out, `"files"`)
}
