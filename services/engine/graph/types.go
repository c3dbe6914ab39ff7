// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds and queries static call graphs of Python
// repositories.
//
// The builder runs two passes over every .py file: the first discovers
// definitions (classes, functions, methods) into a symbol table, the
// second resolves call sites against that table using each file's import
// context. Every resolved edge carries a confidence score expressing how
// certain the resolution is; consumers filter on it.
package graph

// Node types.
const (
	NodeClass    = "class"
	NodeFunction = "function"
	NodeMethod   = "method"
)

// EdgeCalls is the only edge type currently produced.
const EdgeCalls = "CALLS"

// Confidence scores assigned by the resolver, highest to lowest.
const (
	// ConfidenceDirect: callee resolved through an explicit from-import
	// or a self.method call inside a known class.
	ConfidenceDirect = 1.0

	// ConfidenceLocal: callee found in the same file's scope, or an
	// attribute call on a from-imported name.
	ConfidenceLocal = 0.9

	// ConfidenceModule: attribute call on a plain-imported module alias.
	ConfidenceModule = 0.8

	// ConfidenceHeuristic: method name matched by a suffix scan of the
	// symbol table. A guess.
	ConfidenceHeuristic = 0.4
)

// Node is one definition in the call graph. IDs are path-scoped:
// "dir/file.py::Class::method" for methods, "dir/file.py::name" for
// top-level definitions.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	File string `json:"file"`
}

// Edge records that Source calls Target. Targets of imported calls may
// name modules outside the analyzed tree; such edges have no matching
// node and queries simply never surface them.
type Edge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Graph is the persisted artifact: the full node list (in file-walk
// discovery order) plus deduplicated edges.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty reports whether the graph has no definitions.
func (g *Graph) Empty() bool {
	return g == nil || len(g.Nodes) == 0
}
