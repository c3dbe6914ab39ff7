// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/codescout/pkg/logging"
)

// ==========================================================================
// Errors
// ==========================================================================

var (
	// ErrGraphUnavailable indicates no usable graph exists for the
	// project (missing or corrupt file). Callers treat this as "empty".
	ErrGraphUnavailable = errors.New("code graph is not available or is empty")

	// ErrEntityNotFound indicates the queried name matches no node.
	ErrEntityNotFound = errors.New("entity not found in the code graph")

	// ErrInvalidRelationship indicates the relationship was neither
	// "callers" nor "callees".
	ErrInvalidRelationship = errors.New("invalid relationship: must be 'callers' or 'callees'")

	// ErrNoResults indicates the entity exists but no edges satisfy the
	// confidence threshold.
	ErrNoResults = errors.New("no results at the requested confidence")
)

// Valid relationship arguments for Service.Query.
const (
	RelCallers = "callers"
	RelCallees = "callees"
)

// ==========================================================================
// Service
// ==========================================================================

// Service answers caller/callee queries against persisted per-project
// graphs. Graphs are loaded lazily, cached for the process lifetime, and
// loaded at most once per project even under concurrent first queries.
//
// Thread Safety: safe for concurrent use.
type Service struct {
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]*Graph
	group singleflight.Group
}

// NewService creates a Service. A nil logger falls back to the default.
func NewService(logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		logger: logger,
		cache:  make(map[string]*Graph),
	}
}

// load returns the cached graph for graphPath, reading it from disk on
// first access. A missing or corrupt file caches an empty graph so the
// query path degrades instead of erroring on every call.
func (s *Service) load(projectID, graphPath string) *Graph {
	s.mu.RLock()
	g, ok := s.cache[projectID]
	s.mu.RUnlock()
	if ok {
		return g
	}

	v, _, _ := s.group.Do(projectID, func() (any, error) {
		loaded := s.readGraph(graphPath)
		s.mu.Lock()
		s.cache[projectID] = loaded
		s.mu.Unlock()
		return loaded, nil
	})
	return v.(*Graph)
}

func (s *Service) readGraph(graphPath string) *Graph {
	data, err := os.ReadFile(graphPath)
	if err != nil {
		s.logger.Warn("code graph file not readable", "path", graphPath, "error", err)
		return &Graph{}
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		s.logger.Warn("code graph file is corrupt", "path", graphPath, "error", err)
		return &Graph{}
	}
	return &g
}

// Invalidate drops the cached graph for a project so the next query
// reloads from disk. Call after a rebuild or project deletion.
func (s *Service) Invalidate(projectID string) {
	s.mu.Lock()
	delete(s.cache, projectID)
	s.mu.Unlock()
}

// Query finds the callers or callees of a named entity.
//
// # Inputs
//
//   - projectID/graphPath: identify the persisted graph.
//   - entity: the bare name (not id) of a function, method, or class.
//     When several nodes share the name, the first in the persisted node
//     list wins; that order is the file-walk discovery order, so the
//     choice is deterministic.
//   - relationship: RelCallers or RelCallees.
//   - minConfidence: edges below this score are ignored.
//
// # Outputs
//
//   - The matching nodes, or one of ErrGraphUnavailable,
//     ErrInvalidRelationship, ErrEntityNotFound, ErrNoResults.
func (s *Service) Query(projectID, graphPath, entity, relationship string,
	minConfidence float64) ([]Node, error) {

	g := s.load(projectID, graphPath)
	if g.Empty() {
		return nil, ErrGraphUnavailable
	}
	if relationship != RelCallers && relationship != RelCallees {
		return nil, ErrInvalidRelationship
	}

	var target *Node
	for i := range g.Nodes {
		if g.Nodes[i].Name == entity {
			target = &g.Nodes[i]
			break
		}
	}
	if target == nil {
		return nil, ErrEntityNotFound
	}

	wanted := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Confidence < minConfidence {
			continue
		}
		switch relationship {
		case RelCallers:
			if e.Target == target.ID {
				wanted[e.Source] = true
			}
		case RelCallees:
			if e.Source == target.ID {
				wanted[e.Target] = true
			}
		}
	}

	var results []Node
	for _, n := range g.Nodes {
		if wanted[n.ID] {
			results = append(results, n)
		}
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}
