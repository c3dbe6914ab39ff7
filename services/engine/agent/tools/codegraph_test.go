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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codescout/services/engine/graph"
)

func depsWithGraph(t *testing.T) Deps {
	t.Helper()
	deps := newTestDeps(t)
	deps.Graph = graph.NewService(nil)

	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "app.py::main", Type: graph.NodeFunction, Name: "main", File: "app.py"},
			{ID: "app.py::helper", Type: graph.NodeFunction, Name: "helper", File: "app.py"},
		},
		Edges: []graph.Edge{
			{Source: "app.py::main", Target: "app.py::helper", Type: graph.EdgeCalls, Confidence: 0.9},
		},
	}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(deps.Project.GraphPath), 0750))
	require.NoError(t, os.WriteFile(deps.Project.GraphPath, data, 0640))
	return deps
}

func TestQueryCodeGraphCallees(t *testing.T) {
	deps := depsWithGraph(t)
	tool := newQueryCodeGraphTool(deps)

	out := tool.Execute(context.Background(),
		`{"entity_name": "main", "relationship": "callees"}`)
	assert.Contains(t, out, "app.py::helper")
}

func TestQueryCodeGraphConfidenceFilter(t *testing.T) {
	deps := depsWithGraph(t)
	tool := newQueryCodeGraphTool(deps)

	out := tool.Execute(context.Background(),
		`{"entity_name": "main", "relationship": "callees", "min_confidence": 0.95}`)
	assert.Contains(t, out, "No callees found for 'main' with confidence >= 0.95")
}

func TestQueryCodeGraphErrorStrings(t *testing.T) {
	deps := depsWithGraph(t)
	tool := newQueryCodeGraphTool(deps)
	ctx := context.Background()

	assert.Contains(t,
		tool.Execute(ctx, `{"entity_name": "ghost", "relationship": "callers"}`),
		"Entity 'ghost' not found")
	assert.Contains(t,
		tool.Execute(ctx, `{"entity_name": "main", "relationship": "siblings"}`),
		"Invalid relationship")
	assert.Contains(t,
		tool.Execute(ctx, `{"entity_name": "main"}`),
		"must contain 'entity_name' and 'relationship'")
}

func TestQueryCodeGraphUnavailable(t *testing.T) {
	deps := newTestDeps(t)
	deps.Graph = graph.NewService(nil)
	tool := newQueryCodeGraphTool(deps)

	out := tool.Execute(context.Background(),
		`{"entity_name": "main", "relationship": "callers"}`)
	assert.Contains(t, out, "not available or is empty")
}
