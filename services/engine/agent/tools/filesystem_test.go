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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codescout/services/engine/project"
)

// newTestDeps builds a Deps with a real repo and workspace under a
// temp dir. Oracle is nil; tests needing one set it explicitly.
func newTestDeps(t *testing.T) Deps {
	t.Helper()
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "proj"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "vectorstores", "proj"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "graphs"), 0750))
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "graphs", "proj.json"), []byte(`{"nodes":[],"edges":[]}`), 0640))

	layout := project.Layout{DataDir: dataDir}
	ctx, err := layout.Resolve("proj")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(ctx.WorkspacePath, 0750))
	return Deps{Project: ctx}
}

func writeRepoFile(t *testing.T, deps Deps, rel string, content []byte) {
	t.Helper()
	full := filepath.Join(deps.Project.RepoPath, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0750))
	require.NoError(t, os.WriteFile(full, content, 0640))
}

func TestReadFileSuccess(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "app.py", []byte("def main():\n    pass\n"))
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "app.py"}`)
	assert.Equal(t, "def main():\n    pass\n", out)

	// Bare-string input works too.
	out = tool.Execute(context.Background(), "app.py")
	assert.Equal(t, "def main():\n    pass\n", out)
}

func TestReadFileTraversalDenied(t *testing.T) {
	deps := newTestDeps(t)
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "../../../etc/passwd"}`)
	assert.Contains(t, out, "Error: Access denied")
}

func TestReadFileNotFound(t *testing.T) {
	deps := newTestDeps(t)
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "missing.py"}`)
	assert.Contains(t, out, "not found")
}

func TestReadFileRejectsSymlink(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "real.py", []byte("x = 1\n"))
	link := filepath.Join(deps.Project.RepoPath, "link.py")
	require.NoError(t, os.Symlink(filepath.Join(deps.Project.RepoPath, "real.py"), link))
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "link.py"}`)
	assert.Contains(t, out, "symbolic link")
}

func TestReadFileDeniedThroughSymlinkedDirectory(t *testing.T) {
	deps := newTestDeps(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.py"), []byte("token = 1\n"), 0640))
	require.NoError(t, os.Symlink(outside, filepath.Join(deps.Project.RepoPath, "vendor")))
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "vendor/secret.py"}`)
	assert.Contains(t, out, "Error: Access denied")
}

func TestListFilesDeniedThroughSymlinkedDirectory(t *testing.T) {
	deps := newTestDeps(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(deps.Project.RepoPath, "vendor")))
	tool := newListFilesTool(deps)

	out := tool.Execute(context.Background(), `{"directory_path": "vendor"}`)
	assert.Contains(t, out, "Access denied")
}

func TestReadFileRejectsTooLarge(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "big.py", bytes.Repeat([]byte("a"), MaxReadFileSize+1))
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "big.py"}`)
	assert.Contains(t, out, "5MB size limit")
}

func TestReadFileRejectsDisallowedExtension(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "blob.bin", []byte{0x00, 0x01})
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "blob.bin"}`)
	assert.Contains(t, out, "extension '.bin' is not allowed")
}

func TestReadFileRejectsInvalidUTF8(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "junk.py", []byte{0xff, 0xfe, 0xfd})
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "junk.py"}`)
	assert.Contains(t, out, "not valid UTF-8")
}

func TestReadFileRejectsDirectory(t *testing.T) {
	deps := newTestDeps(t)
	require.NoError(t, os.MkdirAll(filepath.Join(deps.Project.RepoPath, "pkg"), 0750))
	tool := newReadFileTool(deps)

	out := tool.Execute(context.Background(), `{"file_path": "pkg"}`)
	assert.Contains(t, out, "not a regular file")
}

func TestListFilesPartitionsChildren(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "app.py", []byte("x"))
	writeRepoFile(t, deps, "pkg/mod.py", []byte("y"))
	tool := newListFilesTool(deps)

	out := tool.Execute(context.Background(), `{"directory_path": "."}`)

	var listing struct {
		Directories []string `json:"directories"`
		Files       []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listing))
	assert.Equal(t, []string{"pkg"}, listing.Directories)
	assert.Equal(t, []string{"app.py"}, listing.Files)
}

func TestListFilesDefaultsToRoot(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "app.py", []byte("x"))
	tool := newListFilesTool(deps)

	out := tool.Execute(context.Background(), "")
	assert.Contains(t, out, "app.py")
}

func TestListFilesErrors(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "app.py", []byte("x"))
	tool := newListFilesTool(deps)

	assert.Contains(t, tool.Execute(context.Background(), `{"directory_path": "missing"}`), "not found")
	assert.Contains(t, tool.Execute(context.Background(), `{"directory_path": "app.py"}`), "not a directory")
	assert.Contains(t, tool.Execute(context.Background(), `{"directory_path": "../.."}`), "Access denied")
}

func TestListWorkspaceFilesScopedToWorkspace(t *testing.T) {
	deps := newTestDeps(t)
	writeRepoFile(t, deps, "app.py", []byte("x"))
	require.NoError(t, os.WriteFile(
		filepath.Join(deps.Project.WorkspacePath, "test_main.py"), []byte("y"), 0640))
	tool := newListWorkspaceFilesTool(deps)

	out := tool.Execute(context.Background(), "")
	assert.Contains(t, out, "test_main.py")
	assert.NotContains(t, out, "app.py")
}
