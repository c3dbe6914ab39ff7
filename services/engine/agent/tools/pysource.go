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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// functionSpan is the located source of one Python function.
type functionSpan struct {
	Source    string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
}

// findFunction locates the first definition of the named function at
// any nesting depth and returns its exact source span. Returns false
// when the file does not parse or the function is absent.
func findFunction(ctx context.Context, content []byte, name string) (functionSpan, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return functionSpan{}, false
	}
	defer tree.Close()

	node := findFunctionNode(tree.RootNode(), content, name)
	if node == nil {
		return functionSpan{}, false
	}
	return functionSpan{
		Source:    node.Content(content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}, true
}

func findFunctionNode(n *sitter.Node, content []byte, name string) *sitter.Node {
	if n.Type() == "function_definition" {
		if nameNode := n.ChildByFieldName("name"); nameNode != nil &&
			nameNode.Content(content) == name {
			return n
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := findFunctionNode(n.NamedChild(i), content, name); found != nil {
			return found
		}
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence (```python,
// ```json, or bare) from model output.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
