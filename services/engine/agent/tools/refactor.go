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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/llm"
)

type refactorCodeTool struct {
	projectCtx *project.Context
	oracle     llm.Client
	logger     *logging.Logger
}

func newRefactorCodeTool(deps Deps) *refactorCodeTool {
	return &refactorCodeTool{projectCtx: deps.Project, oracle: deps.Oracle, logger: deps.Logger}
}

func (t *refactorCodeTool) Name() string { return "refactor_code" }

func (t *refactorCodeTool) Description() string {
	return "Extracts a code snippet from a function into a new function and saves the rewritten file to the workspace. " +
		"Input: {\"file_path\": \"module.py\", \"function_name\": \"big_fn\", " +
		"\"code_to_extract\": \"...\", \"new_function_name\": \"helper\"}."
}

// refactorPlan is the structured response the oracle must produce.
type refactorPlan struct {
	NewFunctionCode             string `json:"new_function_code"`
	UpdatedOriginalFunctionCode string `json:"updated_original_function_code"`
}

func (t *refactorCodeTool) Execute(ctx context.Context, input string) string {
	args, err := ParseInput(input)
	if err != nil {
		return "Error: Invalid input. Must be a JSON object with keys 'file_path', 'function_name', " +
			"'code_to_extract', and 'new_function_name'."
	}
	filePath := stringField(args, "file_path")
	functionName := stringField(args, "function_name")
	codeToExtract := stringField(args, "code_to_extract")
	newFunctionName := stringField(args, "new_function_name")
	if filePath == "" || functionName == "" || codeToExtract == "" || newFunctionName == "" {
		return "Error: Invalid input. Must be a JSON object with keys 'file_path', 'function_name', " +
			"'code_to_extract', and 'new_function_name'."
	}

	denied := "Error: Access denied. You can only read files within the project repository."
	abs, errMsg := resolveUnder(t.projectCtx.RepoPath, filePath, denied)
	if errMsg != "" {
		return errMsg
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("Error: Source file not found at '%s'.", filePath)
	}

	span, ok := findFunction(ctx, content, functionName)
	if !ok {
		return fmt.Sprintf("Error: Function '%s' not found in '%s'.", functionName, filePath)
	}

	prompt := buildRefactorPrompt(filePath, string(content), functionName, codeToExtract, newFunctionName)
	response, err := t.oracle.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return fmt.Sprintf("Error: Failed to get a refactoring plan from the AI. Details: %v", err)
	}

	var plan refactorPlan
	cleaned := strings.TrimSpace(stripCodeFence(response))
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil ||
		plan.NewFunctionCode == "" || plan.UpdatedOriginalFunctionCode == "" {
		return fmt.Sprintf("Error: Failed to get a valid refactoring plan from the AI. Raw AI response:\n%s", response)
	}

	newSource := spliceRefactoring(string(content), span, plan)

	outAbs, errMsg := resolveUnder(t.projectCtx.WorkspacePath, filePath, workspaceDenial)
	if errMsg != "" {
		return errMsg
	}
	if err := os.MkdirAll(filepath.Dir(outAbs), 0750); err != nil {
		return fmt.Sprintf("Error: Failed to save the refactored file to the workspace. Details: %v", err)
	}
	if err := os.WriteFile(outAbs, []byte(newSource), 0640); err != nil {
		return fmt.Sprintf("Error: Failed to save the refactored file to the workspace. Details: %v", err)
	}

	t.logger.Info("refactored file written to workspace",
		"project_id", t.projectCtx.ProjectID, "file", filePath, "new_function", newFunctionName)
	return fmt.Sprintf("Success: Refactored code was saved to '%s' in the workspace. Please review the changes.",
		filePath)
}

// spliceRefactoring replaces the original function's line range with the
// rewritten body and appends the extracted function after it.
func spliceRefactoring(source string, span functionSpan, plan refactorPlan) string {
	lines := strings.Split(source, "\n")
	var out []string

	for i, line := range lines {
		lineNum := i + 1
		switch {
		case lineNum == span.StartLine:
			out = append(out, strings.Split(plan.UpdatedOriginalFunctionCode, "\n")...)
		case lineNum > span.StartLine && lineNum <= span.EndLine:
			// Old function body, dropped.
		default:
			out = append(out, line)
		}
		if lineNum == span.EndLine {
			out = append(out, "")
			out = append(out, strings.Split(plan.NewFunctionCode, "\n")...)
		}
	}
	return strings.Join(out, "\n")
}

func buildRefactorPrompt(filePath, source, functionName, codeToExtract, newFunctionName string) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineer specializing in Python refactoring. ")
	b.WriteString("Extract a block of code from an existing function into a new function.\n\n")
	b.WriteString("Full source of `" + filePath + "`:\n```python\n" + source + "\n```\n\n")
	b.WriteString("Original function name: `" + functionName + "`\n")
	b.WriteString("Code snippet to extract:\n```python\n" + codeToExtract + "\n```\n")
	b.WriteString("New function name: `" + newFunctionName + "`\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("1. Create the new function containing the extracted code; infer its arguments and return values.\n")
	b.WriteString("2. Rewrite the original function so it calls the new function.\n")
	b.WriteString("3. Respond with a single valid JSON object with exactly two keys: ")
	b.WriteString("\"new_function_code\" and \"updated_original_function_code\".\n")
	return b.String()
}
