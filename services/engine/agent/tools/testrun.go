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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/AleutianAI/codescout/services/engine/project"
)

// TestTimeout bounds a single pytest run.
const TestTimeout = 120 * time.Second

type runTestsTool struct {
	projectCtx *project.Context
	python     string
}

func newRunTestsTool(deps Deps) *runTestsTool {
	return &runTestsTool{projectCtx: deps.Project, python: "python3"}
}

func (t *runTestsTool) Name() string { return "run_tests" }

func (t *runTestsTool) Description() string {
	return "Runs a pytest test file from the workspace and returns the captured output. " +
		"Input: {\"test_file\": \"test_foo.py\"}."
}

func (t *runTestsTool) Execute(ctx context.Context, input string) string {
	testFile := singleStringInput(input, "test_file")
	if testFile == "" {
		return "Error: Input must contain a 'test_file'."
	}
	return t.run(ctx, testFile)
}

// run executes pytest against one workspace test file. The subprocess
// gets the repository root on PYTHONPATH and as its working directory
// so the tests can import the project under test.
func (t *runTestsTool) run(ctx context.Context, testFile string) string {
	return t.runWithRoot(ctx, testFile, t.projectCtx.RepoPath)
}

// runWithRoot runs pytest with an explicit import root. fix_bug points
// this at the workspace copy so an applied fix is what gets imported.
func (t *runTestsTool) runWithRoot(ctx context.Context, testFile, importRoot string) string {
	denied := "Error: Access denied. Test file must be inside the workspace."
	abs, errMsg := resolveUnder(t.projectCtx.WorkspacePath, testFile, denied)
	if errMsg != "" {
		return errMsg
	}
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		return fmt.Sprintf("Error: Test file not found at '%s' in the workspace.", testFile)
	}

	runCtx, cancel := context.WithTimeout(ctx, TestTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.python, "-m", "pytest", abs, "-v")
	cmd.Dir = importRoot

	env := os.Environ()
	pythonPath := importRoot
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		pythonPath = pythonPath + string(os.PathListSeparator) + existing
	}
	cmd.Env = append(env, "PYTHONPATH="+pythonPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "Error: Test execution timed out after 120 seconds."
	}
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return fmt.Sprintf("Error: Failed to run the test command. "+
				"Make sure python3 and pytest are installed. Details: %v", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- Test Results for %s ---\n", testFile)
	fmt.Fprintf(&b, "Exit Code: %d\n\n", exitCode)
	if stdout.Len() > 0 {
		fmt.Fprintf(&b, "STDOUT:\n%s\n", stdout.String())
	}
	if stderr.Len() > 0 {
		fmt.Fprintf(&b, "STDERR:\n%s\n", stderr.String())
	}
	return b.String()
}
