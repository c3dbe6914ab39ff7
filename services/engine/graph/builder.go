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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/codescout/pkg/logging"
)

// ErrSourceMissing indicates the project source tree does not exist.
// Builds fail outright rather than persisting an empty graph.
var ErrSourceMissing = errors.New("project source tree not found")

// skipDirs are directory names excluded from the source walk.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	".tox":         true,
	".mypy_cache":  true,
}

// Builder constructs call graphs from Python source trees.
//
// Thread Safety: a Builder is stateless between Build calls and safe for
// concurrent use; each call creates its own parser.
type Builder struct {
	logger *logging.Logger
}

// NewBuilder creates a Builder. A nil logger falls back to the default.
func NewBuilder(logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{logger: logger}
}

// Build analyzes every Python file under projectRoot and returns the
// call graph.
//
// # Description
//
// Pass 1 walks all files collecting definitions into a symbol table.
// Pass 2 re-parses each file and resolves call sites against that table
// using the file's own import statements, assigning a confidence score
// per edge. Files that fail to read or parse are logged and skipped; a
// missing projectRoot fails the whole build.
func (b *Builder) Build(ctx context.Context, projectRoot string) (*Graph, error) {
	info, err := os.Stat(projectRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, projectRoot)
	}

	files, err := collectPythonFiles(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("walk source tree: %w", err)
	}
	b.logger.Info("starting call graph construction",
		"root", projectRoot, "python_files", len(files))

	g := &Graph{Nodes: []Node{}, Edges: []Edge{}}
	symbols := make(map[string]bool)

	// Pass 1: definitions.
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		relPath, content, root, cleanup, err := b.parseFile(ctx, projectRoot, file)
		if err != nil {
			b.logger.Error("skipping file in definition pass", "file", file, "error", err)
			continue
		}
		collectDefinitions(root, content, relPath, nil, g, symbols)
		cleanup()
	}
	b.logger.Info("definition pass complete", "definitions", len(g.Nodes))

	// The heuristic fallback must be deterministic, so resolve against a
	// sorted view of the symbol table.
	sortedSymbols := make([]string, 0, len(symbols))
	for id := range symbols {
		sortedSymbols = append(sortedSymbols, id)
	}
	sort.Strings(sortedSymbols)

	// Pass 2: call resolution.
	var rawEdges []Edge
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		relPath, content, root, cleanup, err := b.parseFile(ctx, projectRoot, file)
		if err != nil {
			b.logger.Error("skipping file in call pass", "file", file, "error", err)
			continue
		}
		resolver := &callResolver{
			relPath:       relPath,
			content:       content,
			symbols:       symbols,
			sortedSymbols: sortedSymbols,
			imports:       make(map[string]string),
			fromImports:   make(map[string]string),
		}
		resolver.walk(root, nil)
		rawEdges = append(rawEdges, resolver.edges...)
		cleanup()
	}

	g.Edges = dedupeEdges(rawEdges)
	b.logger.Info("call pass complete", "edges", len(g.Edges))
	return g, nil
}

// BuildAndSave builds the graph and persists it as indented JSON at
// graphPath, creating parent directories as needed.
func (b *Builder) BuildAndSave(ctx context.Context, projectRoot, graphPath string) (*Graph, error) {
	g, err := b.Build(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(graphPath), 0750); err != nil {
		return nil, fmt.Errorf("create graph dir: %w", err)
	}
	if err := os.WriteFile(graphPath, data, 0640); err != nil {
		return nil, fmt.Errorf("write graph: %w", err)
	}
	b.logger.Info("call graph saved", "path", graphPath,
		"nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

func (b *Builder) parseFile(ctx context.Context, projectRoot, file string) (
	relPath string, content []byte, root *sitter.Node, cleanup func(), err error) {

	relPath, err = filepath.Rel(projectRoot, file)
	if err != nil {
		return "", nil, nil, nil, err
	}
	relPath = filepath.ToSlash(relPath)

	content, err = os.ReadFile(file)
	if err != nil {
		return "", nil, nil, nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return "", nil, nil, nil, err
	}
	return relPath, content, tree.RootNode(), func() { tree.Close() }, nil
}

func collectPythonFiles(projectRoot string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".py") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// collectDefinitions is the pass-1 walker. classStack tracks enclosing
// class names only; nested functions do not open a new scope here, so a
// function inside a method still registers as that class's method.
func collectDefinitions(n *sitter.Node, content []byte, relPath string,
	classStack []string, g *Graph, symbols map[string]bool) {

	switch n.Type() {
	case "class_definition":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nameNode.Content(content)
		id := relPath + "::" + strings.Join(append(classStack, name), "::")
		g.Nodes = append(g.Nodes, Node{ID: id, Type: NodeClass, Name: name, File: relPath})
		symbols[id] = true

		body := n.ChildByFieldName("body")
		if body != nil {
			inner := append(classStack, name)
			for i := 0; i < int(body.NamedChildCount()); i++ {
				collectDefinitions(body.NamedChild(i), content, relPath, inner, g, symbols)
			}
		}
		return

	case "function_definition":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nameNode.Content(content)
		var id, nodeType string
		if len(classStack) > 0 {
			id = relPath + "::" + strings.Join(classStack, "::") + "::" + name
			nodeType = NodeMethod
		} else {
			id = relPath + "::" + name
			nodeType = NodeFunction
		}
		g.Nodes = append(g.Nodes, Node{ID: id, Type: nodeType, Name: name, File: relPath})
		symbols[id] = true
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectDefinitions(n.NamedChild(i), content, relPath, classStack, g, symbols)
	}
}

// callResolver is the pass-2 walker for a single file. It accumulates
// the file's import aliases as it encounters them and resolves each call
// site against the global symbol table.
type callResolver struct {
	relPath       string
	content       []byte
	symbols       map[string]bool
	sortedSymbols []string
	imports       map[string]string // alias -> module (import x [as y])
	fromImports   map[string]string // alias -> qualified name (from m import x [as y])
	edges         []Edge
}

func (r *callResolver) text(n *sitter.Node) string {
	return n.Content(r.content)
}

func (r *callResolver) scopeID(scopeStack []string) string {
	if len(scopeStack) == 0 {
		return r.relPath
	}
	return r.relPath + "::" + strings.Join(scopeStack, "::")
}

// walk visits named nodes depth-first. scopeStack tracks enclosing class
// and function names; unlike pass 1, functions push scope here so call
// sources are attributed to the innermost definition.
func (r *callResolver) walk(n *sitter.Node, scopeStack []string) {
	switch n.Type() {
	case "import_statement":
		r.recordImport(n)
	case "import_from_statement":
		r.recordFromImport(n)
	case "class_definition", "function_definition":
		nameNode := n.ChildByFieldName("name")
		if nameNode != nil {
			inner := append(scopeStack, r.text(nameNode))
			for i := 0; i < int(n.NamedChildCount()); i++ {
				r.walk(n.NamedChild(i), inner)
			}
			return
		}
	case "call":
		r.resolveCall(n, scopeStack)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		r.walk(n.NamedChild(i), scopeStack)
	}
}

// recordImport handles "import a.b" and "import a.b as c".
func (r *callResolver) recordImport(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			name := r.text(child)
			r.imports[name] = name
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode != nil && aliasNode != nil {
				r.imports[r.text(aliasNode)] = r.text(nameNode)
			}
		}
	}
}

// recordFromImport handles "from m import x", "from . import x" and the
// aliased variants. Relative imports are anchored to the file's own
// directory path, one level stripped per leading dot.
func (r *callResolver) recordFromImport(n *sitter.Node) {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	var module string
	level := 0
	switch moduleNode.Type() {
	case "dotted_name":
		module = r.text(moduleNode)
	case "relative_import":
		for i := 0; i < int(moduleNode.NamedChildCount()); i++ {
			child := moduleNode.NamedChild(i)
			switch child.Type() {
			case "import_prefix":
				level = len(r.text(child))
			case "dotted_name":
				module = r.text(child)
			}
		}
	}

	if level > 0 {
		pathParts := strings.Split(r.relPath, "/")
		var prefix string
		if level < len(pathParts) {
			prefix = strings.Join(pathParts[:len(pathParts)-level], ".")
		}
		if module != "" {
			module = prefix + "." + module
		} else {
			module = prefix
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Equal(moduleNode) {
			continue
		}
		var nameText, alias string
		switch child.Type() {
		case "dotted_name":
			nameText = r.text(child)
			alias = nameText
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				continue
			}
			nameText = r.text(nameNode)
			alias = r.text(aliasNode)
		default:
			continue
		}
		full := strings.ReplaceAll(module+"."+nameText, "/", ".")
		r.fromImports[alias] = full
	}
}

// resolveCall classifies one call site and appends an edge when the
// callee can be named. Unresolvable calls produce nothing.
func (r *callResolver) resolveCall(n *sitter.Node, scopeStack []string) {
	funcNode := n.ChildByFieldName("function")
	if funcNode == nil {
		return
	}

	callerID := r.scopeID(scopeStack)
	var calleeID string
	var confidence float64

	switch funcNode.Type() {
	case "identifier":
		funcName := r.text(funcNode)
		if target, ok := r.fromImports[funcName]; ok {
			calleeID = target
			confidence = ConfidenceDirect
		} else if localID := r.relPath + "::" + funcName; r.symbols[localID] {
			calleeID = localID
			confidence = ConfidenceLocal
		}

	case "attribute":
		attrNode := funcNode.ChildByFieldName("attribute")
		objNode := funcNode.ChildByFieldName("object")
		if attrNode == nil || objNode == nil {
			return
		}
		methodName := r.text(attrNode)
		if objNode.Type() == "identifier" {
			objName := r.text(objNode)
			switch {
			case objName == "self" && len(scopeStack) > 0:
				// The outermost scope entry is the enclosing class.
				calleeID = r.relPath + "::" + scopeStack[0] + "::" + methodName
				confidence = ConfidenceDirect
			default:
				if module, ok := r.imports[objName]; ok {
					calleeID = module + "." + methodName
					confidence = ConfidenceModule
				} else if module, ok := r.fromImports[objName]; ok {
					calleeID = module + "::" + methodName
					confidence = ConfidenceLocal
				}
			}
		}
	}

	// Heuristic fallback: suffix scan over the sorted symbol table, so
	// ties always break to the lexicographically smallest id.
	if calleeID == "" && funcNode.Type() == "attribute" {
		if attrNode := funcNode.ChildByFieldName("attribute"); attrNode != nil {
			suffix := "::" + r.text(attrNode)
			for _, id := range r.sortedSymbols {
				if strings.HasSuffix(id, suffix) {
					calleeID = id
					confidence = ConfidenceHeuristic
					break
				}
			}
		}
	}

	if calleeID != "" {
		r.edges = append(r.edges, Edge{
			Source:     callerID,
			Target:     calleeID,
			Type:       EdgeCalls,
			Confidence: confidence,
		})
	}
}

// dedupeEdges drops exact duplicates (all four fields equal), keeping
// first-appearance order.
func dedupeEdges(edges []Edge) []Edge {
	seen := make(map[Edge]bool, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
