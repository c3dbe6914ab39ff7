// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package project resolves a project identifier into the on-disk layout
// of an indexed repository and guards every downstream component against
// unindexed or maliciously named projects.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ==========================================================================
// Errors
// ==========================================================================

var (
	// ErrInvalidProjectID indicates the identifier is empty or contains
	// path components that could escape the data directory.
	ErrInvalidProjectID = errors.New("invalid project id")

	// ErrNotIndexed indicates the project has no completed checkout under
	// the data directory.
	ErrNotIndexed = errors.New("project is not indexed")
)

// identifier charset is intentionally narrow: repo-name-shaped tokens only.
var validProjectID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ==========================================================================
// Context
// ==========================================================================

// Context holds the validated per-project paths every engine component
// operates on. Construct it with Resolve; a Context that exists is a
// proof that the project id is safe and that the checkout, vector store
// and call graph all exist on disk.
type Context struct {
	// ProjectID is the validated project identifier.
	ProjectID string

	// RepoPath is the root of the cloned repository.
	RepoPath string

	// VectorStorePath marks the project's vector index. Its presence
	// means indexing completed for this project.
	VectorStorePath string

	// GraphPath is the persisted call graph JSON file.
	GraphPath string

	// WorkspacePath is the project's scratch area. Agent tools write
	// generated artifacts here, never into RepoPath.
	WorkspacePath string
}

// Layout describes the data directory the orchestrator and worker share.
type Layout struct {
	// DataDir is the root under which repos/, vectorstores/ and graphs/
	// live. Must be non-empty.
	DataDir string
}

// ValidateID checks that id is a safe project identifier: non-empty,
// repo-name-shaped, with no path separators or parent references.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidProjectID)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q contains path components", ErrInvalidProjectID, id)
	}
	if !validProjectID.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectID, id)
	}
	return nil
}

// RepoDir returns the checkout directory for a validated project id.
func (l Layout) RepoDir(id string) string {
	return filepath.Join(l.DataDir, "repos", id)
}

// VectorStoreDir returns the vector store marker directory for an id.
func (l Layout) VectorStoreDir(id string) string {
	return filepath.Join(l.DataDir, "vectorstores", id)
}

// GraphFile returns the call graph JSON path for an id.
func (l Layout) GraphFile(id string) string {
	return filepath.Join(l.DataDir, "graphs", id+".json")
}

// WorkspaceDir returns the scratch area for an id.
func (l Layout) WorkspaceDir(id string) string {
	return filepath.Join(l.DataDir, "workspaces", id)
}

// Resolve validates the project id and confirms that ingestion finished
// for it, returning the derived paths. All three ingestion artifacts
// must be present: the checkout, the vector store marker directory, and
// the call graph file. Failing here, before any model call, keeps a
// half-ingested project from surfacing as empty answers downstream.
//
// # Outputs
//
//   - *Context on success.
//   - ErrInvalidProjectID when the id is malformed (wrapped with detail).
//   - ErrNotIndexed when any ingestion artifact is missing.
func (l Layout) Resolve(id string) (*Context, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	repoPath := l.RepoDir(id)
	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s has no repository checkout", ErrNotIndexed, id)
	}

	vectorStorePath := l.VectorStoreDir(id)
	info, err = os.Stat(vectorStorePath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s has no vector store", ErrNotIndexed, id)
	}

	graphPath := l.GraphFile(id)
	info, err = os.Stat(graphPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s has no call graph", ErrNotIndexed, id)
	}

	return &Context{
		ProjectID:       id,
		RepoPath:        repoPath,
		VectorStorePath: vectorStorePath,
		GraphPath:       graphPath,
		WorkspacePath:   l.WorkspaceDir(id),
	}, nil
}

// ListIndexed returns the ids of all projects with a completed checkout,
// sorted by the directory listing order (lexicographic on most systems).
func (l Layout) ListIndexed() ([]string, error) {
	reposRoot := filepath.Join(l.DataDir, "repos")
	entries, err := os.ReadDir(reposRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ValidateID(entry.Name()) != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}
