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
)

const workspaceDenial = "Error: Access denied. You can only write files within the workspace."

// workspaceWriteArgs parses the shared create/update input shape.
func workspaceWriteArgs(input string) (relPath, content, errMsg string) {
	args, err := ParseInput(input)
	if err != nil {
		return "", "", fmt.Sprintf("Error: %v", err)
	}
	relPath = stringField(args, "file_path")
	if relPath == "" {
		return "", "", "Error: Input must contain 'file_path' and 'content' keys."
	}
	raw, ok := args["content"]
	if !ok {
		return "", "", "Error: Input must contain 'file_path' and 'content' keys."
	}
	content, _ = raw.(string)
	return relPath, content, ""
}

// ==========================================================================
// create_file_in_workspace
// ==========================================================================

type createWorkspaceFileTool struct {
	workspacePath string
}

func newCreateWorkspaceFileTool(deps Deps) *createWorkspaceFileTool {
	return &createWorkspaceFileTool{workspacePath: deps.Project.WorkspacePath}
}

func (t *createWorkspaceFileTool) Name() string { return "create_file_in_workspace" }

func (t *createWorkspaceFileTool) Description() string {
	return "Creates a new file in the workspace scratch area. " +
		"Input: {\"file_path\": \"notes.md\", \"content\": \"...\"}. Fails if the file already exists."
}

func (t *createWorkspaceFileTool) Execute(_ context.Context, input string) string {
	relPath, content, errMsg := workspaceWriteArgs(input)
	if errMsg != "" {
		return errMsg
	}

	abs, errMsg := resolveUnder(t.workspacePath, relPath, workspaceDenial)
	if errMsg != "" {
		return errMsg
	}
	if _, err := os.Lstat(abs); err == nil {
		return fmt.Sprintf("Error: File '%s' already exists. Use update_file_in_workspace to modify it.", relPath)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		return fmt.Sprintf("Error: Failed to create the file. Details: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0640); err != nil {
		return fmt.Sprintf("Error: Failed to create the file. Details: %v", err)
	}
	return fmt.Sprintf("Success: File '%s' was created in the workspace.", relPath)
}

// ==========================================================================
// update_file_in_workspace
// ==========================================================================

type updateWorkspaceFileTool struct {
	workspacePath string
}

func newUpdateWorkspaceFileTool(deps Deps) *updateWorkspaceFileTool {
	return &updateWorkspaceFileTool{workspacePath: deps.Project.WorkspacePath}
}

func (t *updateWorkspaceFileTool) Name() string { return "update_file_in_workspace" }

func (t *updateWorkspaceFileTool) Description() string {
	return "Overwrites an existing workspace file. " +
		"Input: {\"file_path\": \"notes.md\", \"content\": \"...\"}. Fails if the file does not exist."
}

func (t *updateWorkspaceFileTool) Execute(_ context.Context, input string) string {
	relPath, content, errMsg := workspaceWriteArgs(input)
	if errMsg != "" {
		return errMsg
	}

	abs, errMsg := resolveUnder(t.workspacePath, relPath, workspaceDenial)
	if errMsg != "" {
		return errMsg
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Sprintf("Error: File '%s' does not exist. Use create_file_in_workspace first.", relPath)
	}
	if !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: '%s' is not a regular file.", relPath)
	}

	if err := os.WriteFile(abs, []byte(content), 0640); err != nil {
		return fmt.Sprintf("Error: Failed to update the file. Details: %v", err)
	}
	return fmt.Sprintf("Success: File '%s' was updated in the workspace.", relPath)
}
