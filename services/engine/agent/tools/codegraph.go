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
	"errors"
	"fmt"

	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/project"
)

// DefaultMinConfidence filters heuristic edges out of graph answers
// unless the model explicitly lowers the bar.
const DefaultMinConfidence = 0.8

type queryCodeGraphTool struct {
	projectCtx *project.Context
	service    *graph.Service
}

func newQueryCodeGraphTool(deps Deps) *queryCodeGraphTool {
	return &queryCodeGraphTool{projectCtx: deps.Project, service: deps.Graph}
}

func (t *queryCodeGraphTool) Name() string { return "query_code_graph" }

func (t *queryCodeGraphTool) Description() string {
	return "Queries the code structure graph for callers or callees of a function, method, or class. " +
		"Input: {\"entity_name\": \"foo\", \"relationship\": \"callers\"|\"callees\", \"min_confidence\": 0.8}."
}

func (t *queryCodeGraphTool) Execute(_ context.Context, input string) string {
	args, err := ParseInput(input)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	entity := stringField(args, "entity_name")
	relationship := stringField(args, "relationship")
	minConfidence := floatField(args, "min_confidence", DefaultMinConfidence)
	if entity == "" || relationship == "" {
		return "Error: Input must contain 'entity_name' and 'relationship' keys."
	}

	results, err := t.service.Query(t.projectCtx.ProjectID, t.projectCtx.GraphPath,
		entity, relationship, minConfidence)
	switch {
	case errors.Is(err, graph.ErrGraphUnavailable):
		return fmt.Sprintf("Error: The code graph for project '%s' is not available or is empty.",
			t.projectCtx.ProjectID)
	case errors.Is(err, graph.ErrInvalidRelationship):
		return "Error: Invalid relationship. Must be 'callers' or 'callees'."
	case errors.Is(err, graph.ErrEntityNotFound):
		return fmt.Sprintf("Error: Entity '%s' not found in the code graph.", entity)
	case errors.Is(err, graph.ErrNoResults):
		return fmt.Sprintf("No %s found for '%s' with confidence >= %g.",
			relationship, entity, minConfidence)
	case err != nil:
		return fmt.Sprintf("Error querying the code graph: %v", err)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error querying the code graph: %v", err)
	}
	return string(out)
}
