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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/llm"
)

type generateTestsTool struct {
	projectCtx *project.Context
	oracle     llm.Client
	logger     *logging.Logger
}

func newGenerateTestsTool(deps Deps) *generateTestsTool {
	return &generateTestsTool{projectCtx: deps.Project, oracle: deps.Oracle, logger: deps.Logger}
}

func (t *generateTestsTool) Name() string { return "generate_tests" }

func (t *generateTestsTool) Description() string {
	return "Generates pytest unit tests for a function and saves them to the workspace as test_<function_name>.py. " +
		"Input: {\"file_path\": \"module.py\", \"function_name\": \"foo\", \"bug_description\": \"optional\"}."
}

func (t *generateTestsTool) Execute(ctx context.Context, input string) string {
	args, err := ParseInput(input)
	if err != nil {
		return fmt.Sprintf("Error: Invalid input format. Expected 'file_path' and 'function_name'. %v", err)
	}
	filePath := stringField(args, "file_path")
	functionName := stringField(args, "function_name")
	bugDescription := stringField(args, "bug_description")
	if filePath == "" || functionName == "" {
		return "Error: Input must contain 'file_path' and 'function_name' keys."
	}
	return t.generate(ctx, filePath, functionName, bugDescription)
}

// generate is the shared implementation; fix_bug calls it directly
// against an already-prepared workspace copy.
func (t *generateTestsTool) generate(ctx context.Context, filePath, functionName, bugDescription string) string {
	denied := "Error: Access denied. You can only read files within the project repository."
	abs, errMsg := resolveUnder(t.projectCtx.RepoPath, filePath, denied)
	if errMsg != "" {
		return errMsg
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("Error: Could not find function '%s' in file '%s' or the file could not be parsed.",
			functionName, filePath)
	}
	span, ok := findFunction(ctx, content, functionName)
	if !ok {
		return fmt.Sprintf("Error: Could not find function '%s' in file '%s' or the file could not be parsed.",
			functionName, filePath)
	}

	prompt := buildTestPrompt(filePath, span.Source, bugDescription)
	response, err := t.oracle.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return fmt.Sprintf("Error: Failed to generate test code from the AI model. Details: %v", err)
	}
	testCode := stripCodeFence(response)
	if strings.TrimSpace(testCode) == "" {
		return "Error: The AI model returned an empty response."
	}

	outputName := "test_" + functionName + ".py"
	outAbs, errMsg := resolveUnder(t.projectCtx.WorkspacePath, outputName, workspaceDenial)
	if errMsg != "" {
		return errMsg
	}
	if err := os.MkdirAll(filepath.Dir(outAbs), 0750); err != nil {
		return fmt.Sprintf("Error: Failed to save the generated test file. Details: %v", err)
	}
	if err := os.WriteFile(outAbs, []byte(testCode), 0640); err != nil {
		return fmt.Sprintf("Error: Failed to save the generated test file. Details: %v", err)
	}

	t.logger.Info("test file generated", "project_id", t.projectCtx.ProjectID,
		"function", functionName, "output", outputName)
	return fmt.Sprintf("Success: Test file '%s' was generated and saved to the workspace.", outputName)
}

func buildTestPrompt(filePath, functionSource, bugDescription string) string {
	var b strings.Builder
	b.WriteString("You are an expert Python test engineer specializing in pytest. ")
	b.WriteString("Write a set of robust unit tests for the following function.\n\n")
	b.WriteString("Function to test (from `" + filePath + "`):\n")
	b.WriteString("```python\n")
	b.WriteString(functionSource)
	b.WriteString("\n```\n\n")
	if bugDescription != "" {
		b.WriteString("Known bug to expose: " + bugDescription + "\n")
		b.WriteString("At least one test MUST fail on the current (buggy) implementation.\n\n")
	}
	b.WriteString("Requirements:\n")
	b.WriteString("1. Include all necessary imports (pytest and the function under test from its module path).\n")
	b.WriteString("2. Cover at least one typical scenario and one edge case.\n")
	b.WriteString("3. Respond with ONLY the Python code for the test file, in a single ```python code block.\n")
	return b.String()
}
