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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/llm"
)

type fixBugTool struct {
	projectCtx *project.Context
	oracle     llm.Client
	logger     *logging.Logger
	generator  *generateTestsTool
	runner     *runTestsTool
}

func newFixBugTool(deps Deps, generator *generateTestsTool, runner *runTestsTool) *fixBugTool {
	return &fixBugTool{
		projectCtx: deps.Project,
		oracle:     deps.Oracle,
		logger:     deps.Logger,
		generator:  generator,
		runner:     runner,
	}
}

func (t *fixBugTool) Name() string { return "fix_bug" }

func (t *fixBugTool) Description() string {
	return "Attempts to fix a described bug using a TDD cycle: generate a failing test, apply an AI fix " +
		"in the workspace, and re-run the test. Returns the full mission log. " +
		"Input: {\"file_path\": \"module.py\", \"function_name\": \"foo\", \"bug_description\": \"...\"}."
}

// Execute runs the whole TDD mission. Every stage appends its outcome to
// the mission log; the first stage that misbehaves aborts the mission,
// and the log so far is the observation.
func (t *fixBugTool) Execute(ctx context.Context, input string) string {
	args, err := ParseInput(input)
	if err != nil {
		return fmt.Sprintf("Error: Invalid input format. Expected 'file_path', 'function_name', "+
			"and 'bug_description'. %v", err)
	}
	filePath := stringField(args, "file_path")
	functionName := stringField(args, "function_name")
	bugDescription := stringField(args, "bug_description")
	if filePath == "" || functionName == "" || bugDescription == "" {
		return "Error: Input must include 'file_path', 'function_name', and 'bug_description'."
	}

	log := []string{fmt.Sprintf("### Starting Bug Fix Mission for `%s` ###", functionName)}
	appendLog := func(lines ...string) { log = append(log, lines...) }
	missionLog := func() string { return strings.Join(log, "\n") }

	// Step 0: clean workspace copy of the project.
	appendLog("", "--- Step 0: Preparing clean workspace ---")
	if err := t.copyProjectToWorkspace(); err != nil {
		appendLog(fmt.Sprintf("Error: Failed to copy project to workspace. Details: %v", err))
		return missionLog()
	}
	appendLog(fmt.Sprintf("Successfully copied '%s' to workspace.", t.projectCtx.ProjectID))

	// Step 1: generate a test that should expose the bug.
	appendLog("", "--- Step 1: Generating a failing test ---")
	genResult := t.generator.generate(ctx, filePath, functionName, bugDescription)
	appendLog(genResult)
	if strings.HasPrefix(genResult, "Error") {
		return missionLog()
	}
	testFileName := "test_" + functionName + ".py"

	// Step 2: the new test must fail against the buggy code.
	appendLog("", "--- Step 2: Running test to confirm failure ---")
	firstRun := t.runner.runWithRoot(ctx, testFileName, t.projectCtx.WorkspacePath)
	appendLog(firstRun)
	if testsPassed(firstRun) {
		appendLog("ABORT: Generated test did not fail as expected. Cannot verify the bug.")
		return missionLog()
	}
	appendLog("Test failed as expected. Proceeding with fix.")

	// Step 3: ask for a fix given the failing test.
	appendLog("", "--- Step 3: Generating code fix ---")
	sourceAbs, errMsg := resolveUnder(t.projectCtx.WorkspacePath, filePath, workspaceDenial)
	if errMsg != "" {
		appendLog(errMsg)
		return missionLog()
	}
	source, err := os.ReadFile(sourceAbs)
	if err != nil {
		appendLog(fmt.Sprintf("Error: Could not read '%s' from the workspace. Details: %v", filePath, err))
		return missionLog()
	}
	testSource := ""
	if testAbs, msg := resolveUnder(t.projectCtx.WorkspacePath, testFileName, workspaceDenial); msg == "" {
		if data, err := os.ReadFile(testAbs); err == nil {
			testSource = string(data)
		}
	}

	fixPrompt := buildFixPrompt(filePath, string(source), testFileName, testSource, bugDescription)
	response, err := t.oracle.Generate(ctx, fixPrompt, llm.GenerationParams{})
	if err != nil {
		appendLog(fmt.Sprintf("Error: AI model failed to generate a fix. Details: %v", err))
		return missionLog()
	}
	fixedCode := stripCodeFence(response)
	if strings.TrimSpace(fixedCode) == "" {
		appendLog("Error: AI model returned an empty fix.")
		return missionLog()
	}
	appendLog("AI has generated a potential fix.")

	// Step 4: apply the fix in the workspace only.
	appendLog("", "--- Step 4: Applying fix to file in workspace ---")
	if err := os.WriteFile(sourceAbs, []byte(fixedCode), 0640); err != nil {
		appendLog(fmt.Sprintf("Error: Failed to apply the fix. Details: %v", err))
		return missionLog()
	}
	appendLog(fmt.Sprintf("Applied fix to `%s` in workspace.", filePath))

	// Step 5: the test must now pass.
	appendLog("", "--- Step 5: Running tests again to confirm fix ---")
	finalRun := t.runner.runWithRoot(ctx, testFileName, t.projectCtx.WorkspacePath)
	appendLog(finalRun)

	if testsPassed(finalRun) {
		appendLog("", "### MISSION SUCCESS: All tests passed. The bug has been fixed. ###")
	} else {
		appendLog("", "### MISSION FAILED: The AI-generated fix did not resolve the test failures. ###")
	}
	return missionLog()
}

// testsPassed inspects a run_tests report for a clean exit.
func testsPassed(report string) bool {
	return strings.Contains(report, "Exit Code: 0")
}

// copyProjectToWorkspace resets the workspace to a pristine copy of the
// repository.
func (t *fixBugTool) copyProjectToWorkspace() error {
	if err := os.RemoveAll(t.projectCtx.WorkspacePath); err != nil {
		return err
	}
	return copyTree(t.projectCtx.RepoPath, t.projectCtx.WorkspacePath)
}

// copyTree copies a directory recursively, skipping symlinks and the
// usual transient directories.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			if skipDirsForCopy[info.Name()] && rel != "." {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0750)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}

var skipDirsForCopy = map[string]bool{
	".git":        true,
	"__pycache__": true,
	"venv":        true,
	".venv":       true,
}

func buildFixPrompt(filePath, source, testFileName, testSource, bugDescription string) string {
	var b strings.Builder
	b.WriteString("You are an expert Python software engineer. A test has failed, indicating a bug. Fix the bug.\n\n")
	b.WriteString("Failing test code (`" + testFileName + "`):\n```python\n" + testSource + "\n```\n\n")
	b.WriteString("Original source code (`" + filePath + "`):\n```python\n" + source + "\n```\n\n")
	b.WriteString("Bug description: " + bugDescription + "\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("1. Analyze the original code and the failing test.\n")
	b.WriteString("2. Respond with ONLY the complete, corrected Python code for `" + filePath + "`, ")
	b.WriteString("in a single markdown code block.\n")
	return b.String()
}
