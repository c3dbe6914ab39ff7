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
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxReadFileSize is the ReadFile ceiling.
const MaxReadFileSize = 5 * 1024 * 1024

// allowedExtensions is the ReadFile allow-list. The empty entry admits
// extensionless files like LICENSE and Makefile.
var allowedExtensions = map[string]bool{
	"":      true,
	".py":   true,
	".md":   true,
	".txt":  true,
	".rst":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".cfg":  true,
	".ini":  true,
	".sh":   true,
	".js":   true,
	".ts":   true,
	".html": true,
	".css":  true,
	".sql":  true,
	".xml":  true,
	".csv":  true,
}

// resolveUnder joins rel onto root and verifies the result cannot
// escape root. Containment is checked after resolving symlinks, so a
// symlinked directory inside root that points elsewhere is a denial,
// not a door. Returns the absolute (unresolved) path or an error
// observation.
func resolveUnder(root, rel, denialMsg string) (string, string) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", denialMsg
	}
	realRoot, err := evalExisting(absRoot)
	if err != nil {
		return "", denialMsg
	}
	abs := filepath.Join(absRoot, filepath.FromSlash(rel))
	real, err := evalExisting(abs)
	if err != nil {
		return "", denialMsg
	}
	if real != realRoot && !strings.HasPrefix(real, realRoot+string(filepath.Separator)) {
		return "", denialMsg
	}
	return abs, ""
}

// evalExisting resolves symlinks on the deepest existing ancestor of
// path and rejoins the missing tail. Targets that do not exist yet
// (workspace files about to be created) can still be containment
// checked this way.
func evalExisting(path string) (string, error) {
	suffix := ""
	for p := path; ; {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(p), suffix)
		p = parent
	}
}

// ==========================================================================
// read_file
// ==========================================================================

type readFileTool struct {
	repoPath string
}

func newReadFileTool(deps Deps) *readFileTool {
	return &readFileTool{repoPath: deps.Project.RepoPath}
}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Reads a text file from the code repository. Input: {\"file_path\": \"relative/path.py\"}. " +
		"Only repository files on the text allow-list, up to 5MB, can be read."
}

// Execute enforces the read boundary: traversal, symlinks, size,
// extension, and encoding are all checked before any content crosses
// back to the model.
func (t *readFileTool) Execute(_ context.Context, input string) string {
	relPath := singleStringInput(input, "file_path")
	if relPath == "" {
		return "Error: Input must contain a 'file_path'."
	}

	denied := "Error: Access denied. You can only read files within the project repository."
	abs, errMsg := resolveUnder(t.repoPath, relPath, denied)
	if errMsg != "" {
		return errMsg
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Sprintf("Error: File '%s' not found.", relPath)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Sprintf("Error: '%s' is a symbolic link. Symlinks cannot be read.", relPath)
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: '%s' is not a regular file.", relPath)
	}
	if info.Size() > MaxReadFileSize {
		return fmt.Sprintf("Error: File '%s' exceeds the 5MB size limit.", relPath)
	}
	if ext := strings.ToLower(filepath.Ext(abs)); !allowedExtensions[ext] {
		return fmt.Sprintf("Error: File extension '%s' is not allowed.", ext)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}
	if !utf8.Valid(content) {
		return fmt.Sprintf("Error: File '%s' is not valid UTF-8 text.", relPath)
	}
	return string(content)
}

// ==========================================================================
// list_files
// ==========================================================================

type listFilesTool struct {
	root   string
	name   string
	desc   string
	denial string
}

func newListFilesTool(deps Deps) *listFilesTool {
	return &listFilesTool{
		root: deps.Project.RepoPath,
		name: "list_files",
		desc: "Lists the immediate children of a repository directory. " +
			"Input: {\"directory_path\": \".\"}. Returns JSON with 'directories' and 'files'.",
		denial: "Error: Access denied. You can only list directories within the project repository.",
	}
}

func newListWorkspaceFilesTool(deps Deps) *listFilesTool {
	return &listFilesTool{
		root: deps.Project.WorkspacePath,
		name: "list_workspace_files",
		desc: "Lists the immediate children of a workspace directory. " +
			"Input: {\"directory_path\": \".\"}. Returns JSON with 'directories' and 'files'.",
		denial: "Error: Access denied. You can only list directories within the workspace.",
	}
}

func (t *listFilesTool) Name() string        { return t.name }
func (t *listFilesTool) Description() string { return t.desc }

func (t *listFilesTool) Execute(_ context.Context, input string) string {
	relPath := singleStringInput(input, "directory_path")
	if relPath == "" {
		relPath = "."
	}

	abs, errMsg := resolveUnder(t.root, relPath, t.denial)
	if errMsg != "" {
		return errMsg
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("Error: Directory '%s' not found.", relPath)
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: '%s' is not a directory.", relPath)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Sprintf("Error listing directory: %v", err)
	}

	listing := struct {
		Directories []string `json:"directories"`
		Files       []string `json:"files"`
	}{Directories: []string{}, Files: []string{}}

	for _, entry := range entries {
		if entry.IsDir() {
			listing.Directories = append(listing.Directories, entry.Name())
		} else {
			listing.Files = append(listing.Files, entry.Name())
		}
	}
	sort.Strings(listing.Directories)
	sort.Strings(listing.Files)

	out, err := json.Marshal(listing)
	if err != nil {
		return fmt.Sprintf("Error listing directory: %v", err)
	}
	return string(out)
}
